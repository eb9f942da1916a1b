package model

import "time"

// Tier names a membership level as stored in the `accounts.membership_tier`
// column.  The set of valid values is fixed; anything else coming from a
// client is rejected before it reaches the store.
type Tier string

// Membership tiers in ascending order of privilege.
const (
    TierFree    Tier = "free"
    TierPremium Tier = "premium"
    TierAnnual  Tier = "annual"
)

// tierRank imposes a total order on tiers: free(0) < premium(1) < annual(2).
// Unknown values rank below free so a corrupt column can never unlock a
// gated endpoint.
var tierRank = map[Tier]int{
    TierFree:    0,
    TierPremium: 1,
    TierAnnual:  2,
}

// Rank returns the numeric position of t in the tier order, or -1 for an
// unknown tier.
func (t Tier) Rank() int {
    if r, ok := tierRank[t]; ok {
        return r
    }
    return -1
}

// Valid reports whether t is one of the defined membership tiers.
func (t Tier) Valid() bool { return t.Rank() >= 0 }

// AtLeast reports whether t satisfies a gate requiring tier req.
func (t Tier) AtLeast(req Tier) bool { return t.Rank() >= req.Rank() }

// Account represents a row of the `accounts` table.  Each field corresponds
// to a column.  The json tags are omitted here because these structs are used
// internally by the repository layer; handlers define separate response types
// so the password hash can never leak into an API response by accident.
//
// Fields:
//  ID                  – primary key identifier of the account.
//  Username            – unique handle, 3–50 chars, alphanumeric plus underscore.
//  Email               – unique, lower-cased email address.
//  PasswordHash        – bcrypt hash of the password; never the plaintext.
//  MembershipTier      – stored tier; may be stale until the next login.
//  MembershipExpiresAt – when the paid tier lapses; nil means no expiry.
//  IsActive            – deactivated accounts fail all authentication.
//  EmailVerified       – informational; does not gate login.
//  CreatedAt           – timestamp of creation.
//  UpdatedAt           – timestamp of last update.
//  LastLoginAt         – last successful login; nil before the first login.
type Account struct {
    ID                  uint64     // accounts.id
    Username            string     // accounts.username
    Email               string     // accounts.email
    PasswordHash        string     // accounts.password_hash
    MembershipTier      Tier       // accounts.membership_tier
    MembershipExpiresAt *time.Time // accounts.membership_expires_at (nullable)
    IsActive            bool       // accounts.is_active
    EmailVerified       bool       // accounts.email_verified
    CreatedAt           time.Time  // accounts.created_at
    UpdatedAt           time.Time  // accounts.updated_at
    LastLoginAt         *time.Time // accounts.last_login_at (nullable)
}

// EffectiveTier applies the lazy-expiry rule: a paid tier whose expiry is at
// or before now counts as free, regardless of what the column still says.
// Expiry is exclusive of validity, so a membership is already lapsed at the
// exact expiry instant.
func (a Account) EffectiveTier(now time.Time) Tier {
    if a.MembershipTier != TierFree && a.MembershipExpiresAt != nil && !now.Before(*a.MembershipExpiresAt) {
        return TierFree
    }
    return a.MembershipTier
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each refresh
// token belongs to an account and carries metadata for expiry and revocation.
// The plain token is not stored; only its SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  AccountID – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (nil if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    AccountID uint64     // refresh_tokens.account_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}

// PasswordReset models a row of the `password_resets` table.  A reset token
// is single-use: the `used` flag flips on consumption and the row is never
// consulted again.  Only the SHA‑256 hash of the token is stored.
type PasswordReset struct {
    ID        uint64    // password_resets.id
    Email     string    // password_resets.email
    TokenHash string    // password_resets.token_hash
    ExpiresAt time.Time // password_resets.expires_at
    Used      bool      // password_resets.used
    CreatedAt time.Time // password_resets.created_at
}
