package middleware // middleware provides shared request processing for handlers

import (
    "context"      // timeout for the tier read
    "database/sql" // sql.ErrNoRows detection
    "net/http"     // http package defines standard HTTP status codes
    "time"         // lookup timeout and lazy-expiry clock

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/utilhub/membership-auth/internal/model"
    "github.com/utilhub/membership-auth/internal/repository"
)

// RequireTier returns a middleware that enforces a minimum membership tier
// on the authenticated account.  Tiers are totally ordered (free < premium <
// annual), so an annual member passes a premium gate.  The current tier and
// expiry are re-read from the store on every request rather than cached or
// trusted from the token; a downgrade therefore takes effect on the very
// next gated request.  An expiry in the past makes the effective tier free
// no matter what the stored column still says; the gate never writes the
// downgrade back, that happens at the next login.  It assumes SessionAuth
// has already placed "account_id" into the context.
func RequireTier(accounts *repository.AccountRepo, required model.Tier) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            accountID, ok := c.Get("account_id").(uint64)
            if !ok {
                // SessionAuth did not run or failed to set identity.
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            a, err := accounts.GetByID(ctx, accountID)
            if err != nil {
                if err == sql.ErrNoRows {
                    // Authenticated principal vanished from the store.
                    return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "account not found"})
                }
                return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "account lookup failed"})
            }

            if !a.EffectiveTier(time.Now().UTC()).AtLeast(required) {
                return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "membership tier not sufficient"})
            }
            return next(c)
        }
    }
}
