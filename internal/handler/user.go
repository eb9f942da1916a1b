package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/utilhub/membership-auth/internal/repository"
)

// UserHandler serves account-level read endpoints (aggregate stats and the
// feature catalogue).
type UserHandler struct {
	Accounts *repository.AccountRepo
}

func NewUserHandler(a *repository.AccountRepo) *UserHandler { return &UserHandler{Accounts: a} }

// feature describes one entry of the catalogue together with the tier that
// unlocks it.
type feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        string `json:"tier"`
}

// featureCatalog is static: the catalogue changes with deployments, not at
// runtime, which is also why the public endpoint can sit behind the
// response cache.
var featureCatalog = []feature{
	{Name: "utility-library", Description: "full client utility function catalogue", Tier: "free"},
	{Name: "interactive-demos", Description: "runnable demos for every utility", Tier: "free"},
	{Name: "advanced-validators", Description: "extended validation and formatting helpers", Tier: "premium"},
	{Name: "offline-bundles", Description: "downloadable offline documentation bundles", Tier: "premium"},
	{Name: "priority-support", Description: "priority answers from the maintainers", Tier: "premium"},
	{Name: "early-access", Description: "new utilities before general release", Tier: "annual"},
}

// Stats returns aggregate account counts for the authenticated dashboard.
func (h *UserHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Accounts.GetStats(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "stats failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"stats": echo.Map{
			"totalAccounts":  s.Total,
			"activeAccounts": s.Active,
			"paidMembers":    s.Paid,
		},
	})
}

// PremiumFeatures lists the features unlocked for paying members. The
// membership gate in front of this handler has already enforced the tier.
func (h *UserHandler) PremiumFeatures(c echo.Context) error {
	out := make([]feature, 0, len(featureCatalog))
	for _, f := range featureCatalog {
		if f.Tier != "free" {
			out = append(out, f)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "features": out})
}

// Features is the public catalogue: every feature with the tier required to
// use it. No authentication, cacheable.
func (h *UserHandler) Features(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "features": featureCatalog})
}
