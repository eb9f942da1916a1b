package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"  // context with timeout for the account lookup
    "database/sql" // sql.ErrNoRows check on the account lookup
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming
    "time"     // lookup timeout

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/utilhub/membership-auth/internal/repository" // account re-check against the store
    "github.com/utilhub/membership-auth/internal/utils"      // token verification
)

// SessionAuth returns an Echo middleware that validates a Bearer access token
// and then re-reads the account from the store.  The second step is what a
// self-contained token cannot do on its own: it catches accounts that were
// deactivated or deleted after the token was issued, at the cost of one
// store round-trip per request.  On success the account id and email are
// injected into the request context under "account_id" and "email".
//
// Failure mapping: a missing header or a structurally broken/forged token is
// a generic 401 "invalid token"; only expiry is named explicitly, because an
// expired token discloses nothing an attacker does not already know.
func SessionAuth(secret string, accounts *repository.AccountRepo) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // Read the Authorization header.  A valid header starts with
            // "Bearer " followed by the serialized token.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := utils.VerifyAccessToken(secret, raw)
            if err != nil {
                if err == utils.ErrTokenExpired {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "token has expired"})
                }
                // Malformed and bad-signature tokens are deliberately not
                // distinguished in the response.
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
            }

            // Liveness re-check: the token may be younger than a
            // deactivation or deletion of the account it names.
            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            a, err := accounts.GetByID(ctx, claims.AccountID)
            if err != nil {
                if err == sql.ErrNoRows {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
                }
                return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "account lookup failed"})
            }
            if !a.IsActive {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
            }

            // Store identity for handlers and downstream middleware.
            c.Set("account_id", claims.AccountID)
            c.Set("email", a.Email)
            return next(c)
        }
    }
}
