package model

import (
	"testing"
	"time"
)

func TestTierOrdering(t *testing.T) {
	t.Parallel()

	if !(TierFree.Rank() < TierPremium.Rank() && TierPremium.Rank() < TierAnnual.Rank()) {
		t.Fatalf("tier order broken: free=%d premium=%d annual=%d",
			TierFree.Rank(), TierPremium.Rank(), TierAnnual.Rank())
	}
	if !TierAnnual.AtLeast(TierPremium) {
		t.Fatalf("annual must satisfy a premium gate")
	}
	if TierFree.AtLeast(TierPremium) {
		t.Fatalf("free must not satisfy a premium gate")
	}
	if Tier("bogus").Valid() {
		t.Fatalf("unknown tier reported valid")
	}
	if Tier("bogus").AtLeast(TierFree) {
		t.Fatalf("unknown tier must rank below free")
	}
}

func TestEffectiveTier(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Second)

	cases := []struct {
		name    string
		tier    Tier
		expires *time.Time
		want    Tier
	}{
		{"free no expiry", TierFree, nil, TierFree},
		{"premium active", TierPremium, &future, TierPremium},
		{"premium one second past expiry", TierPremium, &past, TierFree},
		{"premium exactly at expiry", TierPremium, &now, TierFree},
		{"annual active", TierAnnual, &future, TierAnnual},
		{"premium non-expiring grant", TierPremium, nil, TierPremium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Account{MembershipTier: tc.tier, MembershipExpiresAt: tc.expires}
			if got := a.EffectiveTier(now); got != tc.want {
				t.Fatalf("EffectiveTier = %q, want %q", got, tc.want)
			}
		})
	}
}
