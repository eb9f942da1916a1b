package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/utilhub/membership-auth/internal/model"
	"github.com/utilhub/membership-auth/internal/queue"
	queue_publisher "github.com/utilhub/membership-auth/internal/service"
)

type upgradeReq struct {
	MembershipType string `json:"membershipType"`
}

// Grant lengths per paid tier. Annual is a calendar-ish year of 365 days;
// premium is a rolling 30 days.
var tierDuration = map[model.Tier]time.Duration{
	model.TierPremium: 30 * 24 * time.Hour,
	model.TierAnnual:  365 * 24 * time.Hour,
}

// Upgrade grants the authenticated account a paid membership tier. An
// unknown tier (including "free") is rejected with 400 before anything is
// written.
func (h *AuthHandler) Upgrade(c echo.Context) error {
	accountID, ok := c.Get("account_id").(uint64)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req upgradeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	tier := model.Tier(strings.ToLower(strings.TrimSpace(req.MembershipType)))
	dur, ok := tierDuration[tier]
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid membership type")
	}
	expiresAt := time.Now().UTC().Add(dur)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.UpgradeMembership(ctx, accountID, tier, expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "account not found")
		}
		return fail(c, http.StatusInternalServerError, "upgrade failed")
	}

	_ = queue_publisher.PublishActivity(ctx, queue.ActivityEvent{
		Type:       queue.EventMembershipUpgraded,
		AccountID:  accountID,
		Tier:       string(tier),
		ExpiresAt:  expiresAt.Format(time.RFC3339),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"membershipType": tier,
		"expiresAt":      expiresAt,
	})
}
