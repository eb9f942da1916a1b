package handler

import (
    "context"              // provides context with cancellation for DB calls
    "database/sql"         // SQL database interactions
    "net/http"             // HTTP status codes and primitives
    "strings"              // string manipulation utilities
    "time"                 // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/utilhub/membership-auth/internal/config"     // app configuration
    "github.com/utilhub/membership-auth/internal/model"      // domain models
    "github.com/utilhub/membership-auth/internal/queue"      // activity event payloads
    "github.com/utilhub/membership-auth/internal/repository" // DB repositories
    queue_publisher "github.com/utilhub/membership-auth/internal/service"
    "github.com/utilhub/membership-auth/internal/utils" // helper functions (hashing, token issuing)
)

// dummyHash is a valid bcrypt hash of a random string. It is compared against
// when login misses the accounts table so the unknown-email path stays in the
// same timing class as a wrong-password path.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts *repository.AccountRepo
	Tokens   *repository.TokenRepo
	Resets   *repository.ResetRepo
}

func NewAuthHandler(cfg config.Config, a *repository.AccountRepo, t *repository.TokenRepo, p *repository.ResetRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: a, Tokens: t, Resets: p}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// accountPart is the public shape of an account. The password hash is not a
// field here, so it cannot be serialized no matter what a handler does.
type accountPart struct {
	ID             uint64     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	MembershipType model.Tier `json:"membershipType"`
	ExpiresAt      *time.Time `json:"membershipExpiresAt,omitempty"`
	EmailVerified  bool       `json:"emailVerified"`
}

type authResp struct {
	Success bool        `json:"success"`
	User    accountPart `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func accountToPart(a model.Account) accountPart {
	return accountPart{
		ID:             a.ID,
		Username:       a.Username,
		Email:          a.Email,
		MembershipType: a.MembershipTier,
		ExpiresAt:      a.MembershipExpiresAt,
		EmailVerified:  a.EmailVerified,
	}
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// Register: validate, create the account and return tokens immediately, so
// the client is logged in by the same call.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = utils.NormalizeEmail(req.Email)
	if err := utils.ValidateUsername(req.Username); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Pre-check both unique columns with one query. The window between this
	// check and the insert is closed by the UNIQUE keys: a lost race comes
	// back as ErrAccountExists from Create and maps to the same conflict.
	taken, err := h.Accounts.Exists(ctx, req.Username, req.Email)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "lookup failed")
	}
	if taken {
		return fail(c, http.StatusConflict, repository.ErrAccountExists.Error())
	}

	id, err := h.Accounts.Create(ctx, req.Username, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrAccountExists {
			return fail(c, http.StatusConflict, err.Error())
		}
		return fail(c, http.StatusInternalServerError, "create account failed")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, req.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, id, utils.HashTokenRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}

	// Best effort: a broker outage must not fail the registration.
	_ = queue_publisher.PublishActivity(ctx, queue.ActivityEvent{
		Type:       queue.EventAccountRegistered,
		AccountID:  id,
		Username:   req.Username,
		Email:      req.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, authResp{
		Success: true,
		User:    accountPart{ID: id, Username: req.Username, Email: req.Email, MembershipType: model.TierFree},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Login: verify credentials and return a new token pair. Unknown email, wrong
// password and deactivated account collapse into one generic 401 so the
// endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			utils.VerifyPassword(dummyHash, req.Password) // burn a compare on the miss path
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if !utils.VerifyPassword(a.PasswordHash, req.Password) || !a.IsActive {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	// Write-through lazy downgrade: a lapsed paid tier becomes free before
	// the summary is returned.
	now := time.Now().UTC()
	if a.EffectiveTier(now) != a.MembershipTier {
		if err := h.Accounts.DowngradeExpired(ctx, a.ID); err != nil {
			return fail(c, http.StatusInternalServerError, "downgrade failed")
		}
		a.MembershipTier = model.TierFree
		a.MembershipExpiresAt = nil
	}
	_ = h.Accounts.TouchLastLogin(ctx, a.ID)

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, a.ID, utils.HashTokenRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}

	return c.JSON(http.StatusOK, authResp{
		Success: true,
		User:    accountToPart(a),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh: validate by hash, revoke the old token, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashTokenRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accountID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	a, err := h.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusUnauthorized, "invalid refresh")
		}
		return fail(c, http.StatusInternalServerError, "load account failed")
	}
	if !a.IsActive {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, a.ID, utils.HashTokenRaw(newRef.Raw), newRef.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}

	return c.JSON(http.StatusOK, authResp{
		Success: true,
		User:    accountToPart(a),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// Logout revokes refresh tokens. Two modes: a bearer access token in the
// Authorization header revokes every session of that account; a
// refresh_token in the body revokes that single session. At least one of
// the two must be supplied.
func (h *AuthHandler) Logout(c echo.Context) error {
	var accountID uint64
	hasBearer := false
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		claims, err := utils.VerifyAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err == nil {
			accountID = claims.AccountID
			hasBearer = true
		}
	}

	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if hasBearer && refreshToken == "" {
		if err := h.Tokens.RevokeAllForAccount(ctx, accountID); err != nil {
			return fail(c, http.StatusInternalServerError, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	if refreshToken != "" {
		hash := utils.HashTokenRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, http.StatusInternalServerError, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	return fail(c, http.StatusBadRequest, "provide Authorization header or refresh_token")
}

// Me returns the authenticated account's profile. The row is re-read so a
// deletion between token issuance and this call surfaces as 404.
func (h *AuthHandler) Me(c echo.Context) error {
	accountID, ok := c.Get("account_id").(uint64)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "account not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	part := accountToPart(a)
	// Report the effective tier: a lapsed membership reads as free even if
	// the column has not been written back yet.
	part.MembershipType = a.EffectiveTier(time.Now().UTC())
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": part})
}
