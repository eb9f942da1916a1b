package repository

import (
	"context"
	"database/sql"
	"time"
)

// ResetRepo persists single-use password-reset tokens. Only the SHA-256 hash
// of a token is stored; the raw value travels to the account owner out of
// band and is presented back exactly once.
type ResetRepo struct{ DB *sql.DB }

func NewResetRepo(db *sql.DB) *ResetRepo { return &ResetRepo{DB: db} }

// StoreReset inserts a reset token hash row for an email.
func (r *ResetRepo) StoreReset(ctx context.Context, email, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_resets (email, token_hash, expires_at) VALUES (?,?,?)",
		email, tokenHash, exp)
	return err
}

// Consume marks the token used and returns the email it belongs to. The
// UPDATE guards usability (unused AND unexpired) in its WHERE clause, so two
// concurrent confirmations can never both succeed: the second one matches
// zero rows and gets ErrResetInvalid.
func (r *ResetRepo) Consume(ctx context.Context, tokenHash string) (string, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE password_resets SET used=1 WHERE token_hash=? AND used=0 AND expires_at>UTC_TIMESTAMP()",
		tokenHash)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrResetInvalid
	}
	var email string
	err = r.DB.QueryRowContext(ctx,
		"SELECT email FROM password_resets WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&email)
	if err != nil {
		return "", err
	}
	return email, nil
}
