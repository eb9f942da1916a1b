package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/utilhub/membership-auth/internal/queue"
	"github.com/utilhub/membership-auth/internal/repository"
	queue_publisher "github.com/utilhub/membership-auth/internal/service"
	"github.com/utilhub/membership-auth/internal/utils"
)

type resetRequestReq struct {
	Email string `json:"email"`
}
type resetConfirmReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// RequestPasswordReset creates a single-use reset token for an account. The
// response is the same whether or not the email is registered, so the
// endpoint cannot confirm which addresses exist. Delivery of the raw token
// (the reset email) is the job of the downstream notifier; the token never
// appears in a response or a log line.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if err := utils.ValidateEmail(req.Email); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accepted := echo.Map{"success": true, "message": "if the address is registered, a reset link has been sent"}

	a, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil || !a.IsActive {
		// Unknown or deactivated address: answer exactly as on success.
		return c.JSON(http.StatusOK, accepted)
	}

	tok, err := utils.NewResetToken(time.Duration(h.Cfg.ResetTTLMin) * time.Minute)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue reset failed")
	}
	if err := h.Resets.StoreReset(ctx, a.Email, utils.HashTokenRaw(tok.Raw), tok.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save reset failed")
	}

	_ = queue_publisher.PublishActivity(ctx, queue.ActivityEvent{
		Type:       queue.EventPasswordResetRequested,
		AccountID:  a.ID,
		Email:      a.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, accepted)
}

// ConfirmPasswordReset consumes a reset token and replaces the password.
// Every refresh token of the account is revoked so stolen sessions die with
// the old password.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return fail(c, http.StatusBadRequest, "token required")
	}
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	email, err := h.Resets.Consume(ctx, utils.HashTokenRaw(strings.TrimSpace(req.Token)))
	if err != nil {
		if err == repository.ErrResetInvalid {
			return fail(c, http.StatusUnauthorized, err.Error())
		}
		return fail(c, http.StatusInternalServerError, "reset failed")
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "hash failed")
	}
	if err := h.Accounts.UpdatePasswordByEmail(ctx, email, hash); err != nil {
		if err == sql.ErrNoRows {
			// Account deleted after the token was issued.
			return fail(c, http.StatusUnauthorized, repository.ErrResetInvalid.Error())
		}
		return fail(c, http.StatusInternalServerError, "reset failed")
	}
	if a, err := h.Accounts.GetByEmail(ctx, email); err == nil {
		_ = h.Tokens.RevokeAllForAccount(ctx, a.ID)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "password updated"})
}
