package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/utilhub/membership-auth/internal/config"
	"github.com/utilhub/membership-auth/internal/repository"
	"github.com/utilhub/membership-auth/internal/utils"
)

const testSecret = "test-secret"

// errMySQLDup mimics the driver error for a unique-key violation.
var errMySQLDup = errors.New("Error 1062 (23000): Duplicate entry 'a@x.com' for key 'uq_accounts_email'")

func newAuthHandlerWithMock(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	cfg := config.Config{
		Env:            "test",
		JWTSecret:      testSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		ResetTTLMin:    60,
		BcryptCost:     bcrypt.MinCost,
	}
	h := NewAuthHandler(cfg,
		repository.NewAccountRepo(db),
		repository.NewTokenRepo(db),
		repository.NewResetRepo(db))
	return h, mock, db
}

func jsonCtx(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal response: %v (body=%s)", err, rec.Body.String())
	}
	return m
}

func hashOf(t *testing.T, plain string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func accountRow(id uint64, username, email, hash, tier string, expires any, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "membership_tier",
		"membership_expires_at", "is_active", "email_verified",
		"created_at", "updated_at", "last_login_at",
	}).AddRow(id, username, email, hash, tier, expires, active, false, now, now, nil)
}

// ----- register -----

func TestRegister_ValidationErrors(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	cases := []struct {
		name string
		body string
	}{
		{"bad username", `{"username":"a!","email":"a@x.com","password":"Passw0rd"}`},
		{"bad email", `{"username":"alice","email":"nope","password":"Passw0rd"}`},
		{"weak password", `{"username":"alice","email":"a@x.com","password":"short"}`},
		{"missing fields", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := jsonCtx(t, http.MethodPost, "/auth/register", tc.body)
			if err := h.Register(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (body=%s)", rec.Code, rec.Body.String())
			}
		})
	}
	// Validation failures must never touch the store.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected store access: %v", err)
	}
}

func TestRegister_Conflict(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT id FROM accounts WHERE username=\? OR email=\? LIMIT 1$`).
		WithArgs("alice", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	c, rec := jsonCtx(t, http.MethodPost, "/auth/register",
		`{"username":"alice","email":"a@x.com","password":"Passw0rd"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegister_ConflictOnInsertRace(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	// The pre-check misses but a concurrent register wins the insert; the
	// duplicate-key error must still come back as 409, not 500.
	mock.ExpectQuery(`^SELECT id FROM accounts WHERE username=\? OR email=\? LIMIT 1$`).
		WithArgs("alice", "a@x.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`^INSERT INTO accounts`).
		WithArgs("alice", "a@x.com", sqlmock.AnyArg()).
		WillReturnError(errMySQLDup)

	c, rec := jsonCtx(t, http.MethodPost, "/auth/register",
		`{"username":"alice","email":"a@x.com","password":"Passw0rd"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on insert race, got %d", rec.Code)
	}
}

func TestRegister_Success(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT id FROM accounts WHERE username=\? OR email=\? LIMIT 1$`).
		WithArgs("alice", "a@x.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`^INSERT INTO accounts`).
		WithArgs("alice", "a@x.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(`^INSERT INTO refresh_tokens`).
		WithArgs(12, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := jsonCtx(t, http.MethodPost, "/auth/register",
		`{"username":"alice","email":"A@x.com","password":"Passw0rd"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body=%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success=true")
	}
	user := body["user"].(map[string]any)
	if user["membershipType"] != "free" {
		t.Fatalf("new accounts start free, got %v", user["membershipType"])
	}
	access := body["access"].(map[string]any)
	claims, err := utils.VerifyAccessToken(testSecret, access["token"].(string))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.AccountID != 12 || claims.Email != "a@x.com" {
		t.Fatalf("token bound to wrong identity: %+v", claims)
	}
}

// ----- login -----

func TestLogin_UnknownEmail(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	c, rec := jsonCtx(t, http.MethodPost, "/auth/login",
		`{"email":"ghost@x.com","password":"Passw0rd"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid credentials" {
		t.Fatalf("unexpected message: %v", body["error"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("a@x.com").
		WillReturnRows(accountRow(5, "alice", "a@x.com", hashOf(t, "Passw0rd"), "free", nil, true))

	c, rec := jsonCtx(t, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"WrongPass1"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	// Same shape and message as the unknown-email case.
	if body := decodeBody(t, rec); body["error"] != "invalid credentials" {
		t.Fatalf("unexpected message: %v", body["error"])
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("a@x.com").
		WillReturnRows(accountRow(5, "alice", "a@x.com", hashOf(t, "Passw0rd"), "free", nil, false))

	c, rec := jsonCtx(t, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"Passw0rd"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid credentials" {
		t.Fatalf("inactive account must collapse into the generic message, got %v", body["error"])
	}
}

func TestLogin_Success(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("a@x.com").
		WillReturnRows(accountRow(5, "alice", "a@x.com", hashOf(t, "Passw0rd"), "free", nil, true))
	mock.ExpectExec(`^UPDATE accounts SET last_login_at=UTC_TIMESTAMP\(\) WHERE id=\?$`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^INSERT INTO refresh_tokens`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := jsonCtx(t, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"Passw0rd"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	if user["membershipType"] != "free" {
		t.Fatalf("unexpected membership: %v", user["membershipType"])
	}
	access := body["access"].(map[string]any)
	claims, err := utils.VerifyAccessToken(testSecret, access["token"].(string))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.AccountID != 5 {
		t.Fatalf("token bound to wrong account: %d", claims.AccountID)
	}
}

func TestLogin_LazyDowngradeOnExpiredMembership(t *testing.T) {
	h, mock, db := newAuthHandlerWithMock(t)
	defer db.Close()

	expired := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("a@x.com").
		WillReturnRows(accountRow(5, "alice", "a@x.com", hashOf(t, "Passw0rd"), "premium", expired, true))
	mock.ExpectExec(`^UPDATE accounts SET membership_tier='free', membership_expires_at=NULL`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE accounts SET last_login_at=UTC_TIMESTAMP\(\)`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^INSERT INTO refresh_tokens`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := jsonCtx(t, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"Passw0rd"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	if user["membershipType"] != "free" {
		t.Fatalf("expired premium must read as free after login, got %v", user["membershipType"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("downgrade write-through missing: %v", err)
	}
}
