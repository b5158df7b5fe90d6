package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-api-accounts/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vinovest/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// AccountRepo stores accounts in a single SQL table. Email uniqueness is
// enforced by a UNIQUE constraint; writes are conditional on the version column.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

type accountRow struct {
	AccountID      string         `db:"account_id"`
	Email          string         `db:"email"`
	PasswordHash   string         `db:"password_hash"`
	IsVerified     bool           `db:"is_verified"`
	OTPCode        sql.NullString `db:"otp_code"`
	OTPExpiresAt   sql.NullTime   `db:"otp_expires_at"`
	ResetTokenHash sql.NullString `db:"reset_token_hash"`
	Version        int64          `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func toRow(a *domain.Account) accountRow {
	r := accountRow{
		AccountID:      a.AccountID,
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		IsVerified:     a.IsVerified,
		ResetTokenHash: sql.NullString{String: a.PendingResetToken, Valid: a.PendingResetToken != ""},
		Version:        a.Version,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}
	if a.PendingOTP != nil {
		r.OTPCode = sql.NullString{String: a.PendingOTP.Code, Valid: true}
		r.OTPExpiresAt = sql.NullTime{Time: a.PendingOTP.ExpiresAt.UTC(), Valid: true}
	}
	return r
}

func (r accountRow) toDomain() *domain.Account {
	a := &domain.Account{
		AccountID:         r.AccountID,
		Email:             r.Email,
		PasswordHash:      r.PasswordHash,
		IsVerified:        r.IsVerified,
		PendingResetToken: r.ResetTokenHash.String,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.OTPCode.Valid && r.OTPExpiresAt.Valid {
		a.PendingOTP = &domain.PendingOTP{Code: r.OTPCode.String, ExpiresAt: r.OTPExpiresAt.Time.UTC()}
	}
	return a
}

const selectAccount = `SELECT account_id, email, password_hash, is_verified, otp_code, otp_expires_at,
	reset_token_hash, version, created_at, updated_at FROM accounts`

func (s *AccountRepo) FindByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE account_id = ?`, accountID)
}

func (s *AccountRepo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE email = ?`, email)
}

func (s *AccountRepo) findOne(ctx context.Context, query, arg string) (*domain.Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO accounts
		(account_id, email, password_hash, is_verified, otp_code, otp_expires_at,
		 reset_token_hash, version, created_at, updated_at)
		VALUES (:account_id, :email, :password_hash, :is_verified, :otp_code, :otp_expires_at,
		 :reset_token_hash, :version, :created_at, :updated_at)`, toRow(a))
	if err != nil {
		switch uniqueViolation(err) {
		case "email":
			return fmt.Errorf("create account: %w", domain.ErrDuplicateEmail)
		case "pk":
			return fmt.Errorf("create account: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// Save persists the mutable fields of a if the stored version still equals
// a.Version, then advances a.Version.
func (s *AccountRepo) Save(ctx context.Context, a *domain.Account) error {
	row := toRow(a)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE accounts SET
		password_hash = ?, is_verified = ?, otp_code = ?, otp_expires_at = ?,
		reset_token_hash = ?, version = ?, updated_at = ?
		WHERE account_id = ? AND version = ?`),
		row.PasswordHash, row.IsVerified, row.OTPCode, row.OTPExpiresAt,
		row.ResetTokenHash, a.Version+1, row.UpdatedAt,
		a.AccountID, a.Version,
	)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("save account %s: %w", a.AccountID, err)
	}
	a.Version++
	return nil
}

func (s *AccountRepo) Delete(ctx context.Context, a *domain.Account) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM accounts WHERE account_id = ? AND version = ?`),
		a.AccountID, a.Version)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete account %s: %w", a.AccountID, err)
	}
	return nil
}

func (s *AccountRepo) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// uniqueViolation returns "email" or "pk" for a unique constraint failure on
// that column, and "" for any other error.
func uniqueViolation(err error) string {
	var se *sqlite.Error
	if errors.As(err, &se) {
		if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
			return ""
		}
		switch msg := se.Error(); {
		case strings.Contains(msg, "accounts.email"):
			return "email"
		case strings.Contains(msg, "accounts.account_id"):
			return "pk"
		}
		return ""
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		if pe.ConstraintName == "accounts_pkey" {
			return "pk"
		}
		return "email"
	}
	return ""
}
