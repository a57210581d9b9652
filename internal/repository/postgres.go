package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Khaos-s/car-pass/internal/domain"
)

// Compile-time interface assertion.
var _ AccountRepository = (*PostgresAccountRepo)(nil)

// PostgresAccountRepo implements AccountRepository on a pgx pool.
type PostgresAccountRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: pool}
}

const accountColumns = `id, email, password_hash, name, role, contact_id, department, email_verified, verification_token, is_active, created_at, updated_at`

func (r *PostgresAccountRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepo) GetByVerificationToken(ctx context.Context, token string) (domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE verification_token = $1`, token)
	account, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by verification token: %w", err)
	}
	return account, nil
}

const insertAccountSQL = `INSERT INTO accounts (id, email, password_hash, name, role, contact_id, department, email_verified, verification_token, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + accountColumns

func (r *PostgresAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := r.db.QueryRow(ctx, insertAccountSQL,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		string(account.Role),
		account.ContactID,
		account.Department,
		account.EmailVerified,
		account.VerificationToken,
		account.IsActive,
	)

	inserted, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return inserted, nil
}

func (r *PostgresAccountRepo) MarkEmailVerified(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET email_verified = TRUE, verification_token = '', updated_at = now() WHERE id = $1 AND NOT email_verified`, id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark email verified: %w", pgx.ErrNoRows)
	}
	return nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		account domain.Account
		role    string
	)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&role,
		&account.ContactID,
		&account.Department,
		&account.EmailVerified,
		&account.VerificationToken,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	account.Role = domain.Role(role)
	return account, nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The accounts.email constraint is the authoritative duplicate
// signal; the service's pre-check only produces a friendlier error first.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
