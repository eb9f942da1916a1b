package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/utilhub/membership-auth/internal/model"
	"github.com/utilhub/membership-auth/internal/utils"
)

const accountColumns = "id,username,email,password_hash,membership_tier,membership_expires_at,is_active,email_verified,created_at,updated_at,last_login_at"

// AccountRepo owns all access to the 'accounts' table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Exists reports whether an active row already claims the username or email.
// It is a pre-check only; the UNIQUE keys remain the ultimate guard against
// the race between check and insert.
func (r *AccountRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM accounts WHERE username=? OR email=? LIMIT 1",
		username, email).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create hashes the password and inserts the account with the default free
// tier, returning its ID. A duplicate-key error (MySQL 1062) from either
// unique column is mapped to ErrAccountExists so a lost pre-check race still
// surfaces as a conflict, never a server error.
func (r *AccountRepo) Create(ctx context.Context, username, email, password string, cost int) (uint64, error) {
	email = utils.NormalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, membership_tier) VALUES (?,?,?,'free')",
		username, email, hash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrAccountExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.one(ctx, "SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", utils.NormalizeEmail(email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.one(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
}

func (r *AccountRepo) one(ctx context.Context, query string, arg any) (model.Account, error) {
	var (
		a         model.Account
		tier      string
		expires   sql.NullTime
		lastLogin sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &tier, &expires,
		&a.IsActive, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt, &lastLogin)
	if err != nil {
		return model.Account{}, err
	}
	a.MembershipTier = model.Tier(tier)
	if expires.Valid {
		t := expires.Time
		a.MembershipExpiresAt = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return a, nil
}

// TouchLastLogin records a successful login.
func (r *AccountRepo) TouchLastLogin(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET last_login_at=UTC_TIMESTAMP() WHERE id=?", id)
	return err
}

// DowngradeExpired writes through the lazy-expiry rule: if the account's paid
// tier has lapsed, reset it to free and clear the expiry. The WHERE clause
// re-checks the expiry so a concurrent upgrade is never clobbered.
func (r *AccountRepo) DowngradeExpired(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET membership_tier='free', membership_expires_at=NULL WHERE id=? AND membership_expires_at IS NOT NULL AND membership_expires_at<=UTC_TIMESTAMP()",
		id)
	return err
}

// UpgradeMembership grants a paid tier until expiresAt.
func (r *AccountRepo) UpgradeMembership(ctx context.Context, id uint64, tier model.Tier, expiresAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET membership_tier=?, membership_expires_at=? WHERE id=?",
		string(tier), expiresAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePasswordByEmail replaces the stored hash after a password reset.
func (r *AccountRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET password_hash=? WHERE email=?",
		passwordHash, utils.NormalizeEmail(email))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates account counts for the stats endpoint. Paid members are
// counted with the lazy-expiry rule applied, so a lapsed premium row does
// not inflate the number.
type Stats struct {
	Total  uint64
	Active uint64
	Paid   uint64
}

func (r *AccountRepo) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_active=1),0),
		        COALESCE(SUM(membership_tier<>'free' AND (membership_expires_at IS NULL OR membership_expires_at>UTC_TIMESTAMP())),0)
		   FROM accounts`).Scan(&s.Total, &s.Active, &s.Paid)
	return s, err
}
