package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/utilhub/membership-auth/internal/model"
)

func newAccountRepoWithMock(t *testing.T) (*AccountRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewAccountRepo(db), mock, db
}

func accountRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "membership_tier",
		"membership_expires_at", "is_active", "email_verified",
		"created_at", "updated_at", "last_login_at",
	})
}

func TestAccountCreate_Success(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	q := `^INSERT INTO accounts \(username, email, password_hash, membership_tier\) VALUES \(\?,\?,\?,'free'\)$`
	mock.ExpectExec(q).
		WithArgs("alice", "a@x.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Create(context.Background(), "alice", "A@x.com", "Passw0rd", 4)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != 7 {
		t.Fatalf("unexpected id: %d", id)
	}
}

func TestAccountCreate_DuplicateKey(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	// MySQL reports a unique-key violation as error 1062; both columns map
	// to the same conflict sentinel.
	mock.ExpectExec(`^INSERT INTO accounts`).
		WithArgs("alice", "a@x.com", sqlmock.AnyArg()).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'a@x.com' for key 'uq_accounts_email'"))

	_, err := repo.Create(context.Background(), "alice", "a@x.com", "Passw0rd", 4)
	if err != ErrAccountExists {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestAccountExists(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	q := `^SELECT id FROM accounts WHERE username=\? OR email=\? LIMIT 1$`

	mock.ExpectQuery(q).WithArgs("alice", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	taken, err := repo.Exists(context.Background(), "alice", "a@x.com")
	if err != nil || !taken {
		t.Fatalf("expected taken=true, got taken=%v err=%v", taken, err)
	}

	mock.ExpectQuery(q).WithArgs("bob", "b@x.com").
		WillReturnError(sql.ErrNoRows)
	taken, err = repo.Exists(context.Background(), "bob", "b@x.com")
	if err != nil || taken {
		t.Fatalf("expected taken=false, got taken=%v err=%v", taken, err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	exp := now.Add(24 * time.Hour)
	rows := accountRows(t).AddRow(
		5, "alice", "a@x.com", "$2a$04$hash", "premium", exp, true, false, now, now, nil)
	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	a, err := repo.GetByEmail(context.Background(), " A@x.com ")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if a.ID != 5 || a.MembershipTier != model.TierPremium {
		t.Fatalf("unexpected account: %+v", a)
	}
	if a.MembershipExpiresAt == nil || !a.MembershipExpiresAt.Equal(exp) {
		t.Fatalf("unexpected expiry: %v", a.MembershipExpiresAt)
	}
	if a.LastLoginAt != nil {
		t.Fatalf("expected nil last login, got %v", a.LastLoginAt)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .+ FROM accounts WHERE id=\? LIMIT 1$`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDowngradeExpired(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	q := regexp.QuoteMeta("UPDATE accounts SET membership_tier='free', membership_expires_at=NULL WHERE id=? AND membership_expires_at IS NOT NULL AND membership_expires_at<=UTC_TIMESTAMP()")
	mock.ExpectExec(q).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DowngradeExpired(context.Background(), 5); err != nil {
		t.Fatalf("DowngradeExpired error: %v", err)
	}
}

func TestUpgradeMembership_NoRow(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE accounts SET membership_tier=\?, membership_expires_at=\? WHERE id=\?$`).
		WithArgs("annual", sqlmock.AnyArg(), 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpgradeMembership(context.Background(), 99, model.TierAnnual, time.Now().Add(365*24*time.Hour))
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows for missing account, got %v", err)
	}
}

func TestGetStats(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT COUNT\(\*\),`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "paid"}).AddRow(10, 8, 3))

	s, err := repo.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if s.Total != 10 || s.Active != 8 || s.Paid != 3 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
