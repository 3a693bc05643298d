package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/rollcall/core/identity"
)

type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	PasswordHash []byte    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	LastLogin    null.Time `db:"last_login"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func toAccountRow(acc identity.Account) accountRow {
	return accountRow{
		ID:           acc.ID,
		Email:        acc.Email,
		DisplayName:  acc.DisplayName,
		PasswordHash: acc.PasswordHash,
		IsActive:     acc.IsActive,
		LastLogin:    null.NewTime(acc.LastLogin.UTC(), !acc.LastLogin.IsZero()),
		CreatedAt:    acc.CreatedAt.UTC(),
		UpdatedAt:    acc.UpdatedAt.UTC(),
	}
}

func (r accountRow) account() identity.Account {
	acc := identity.Account{
		ID:           r.ID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		acc.LastLogin = r.LastLogin.Time.UTC()
	}
	return acc
}

const accountColumns = "id, email, display_name, password_hash, is_active, last_login, created_at, updated_at"

type accountRepository struct {
	db *sqlx.DB
}

var _ identity.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) identity.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc identity.Account) (identity.Account, error) {
	q := `INSERT INTO accounts (` + accountColumns + `)
		VALUES (:id, :email, :display_name, :password_hash, :is_active, :last_login, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toAccountRow(acc)); err != nil {
		if isUniqueViolation(err) {
			return identity.Account{}, identity.ErrEmailExists
		}
		return identity.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter identity.GetFilter) (identity.Account, error) {
	var (
		row accountRow
		err error
	)
	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return identity.Account{}, identity.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, filter.Email)
	default:
		return identity.Account{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Account{}, trapNoRowsErr(err, identity.ErrNotFound, "finding account")
	}
	return row.account(), nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acc identity.Account) (identity.Account, error) {
	q := `UPDATE accounts
		SET email = :email, display_name = :display_name, password_hash = :password_hash, is_active = :is_active,
			last_login = :last_login, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toAccountRow(acc))
	if err != nil {
		if isUniqueViolation(err) {
			return identity.Account{}, identity.ErrEmailExists
		}
		return identity.Account{}, errors.Wrap(err, "updating account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.Account{}, identity.ErrNotFound
	}
	return acc, nil
}
