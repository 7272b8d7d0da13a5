package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kontoflow/ledger-service/internal/domain"
)

// PostgresAccountRepository is the AccountRepository view of PostgresStore.
type PostgresAccountRepository struct {
	*PostgresStore
}

const accountColumns = `id, user_id, name, type, number, iban, currency, active, parent_id, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var accountType, currency string
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &accountType, &a.Number, &a.IBAN, &currency, &a.Active, &a.ParentID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(accountType)
	a.Currency = domain.Currency(currency)
	return &a, nil
}

func (r *PostgresAccountRepository) findAccountBy(ctx context.Context, where string, args ...any) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where
	account, err := scanAccount(r.querier(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Account, error) {
	return r.findAccountBy(ctx, `user_id = $1 AND id = $2`, userID, id)
}

func (r *PostgresAccountRepository) FindByNumber(ctx context.Context, userID uuid.UUID, number string) (*domain.Account, error) {
	return r.findAccountBy(ctx, `user_id = $1 AND number = $2`, userID, strings.TrimSpace(number))
}

func (r *PostgresAccountRepository) FindByName(ctx context.Context, userID uuid.UUID, name string) (*domain.Account, error) {
	return r.findAccountBy(ctx, `user_id = $1 AND lower(name) = lower($2)`, userID, strings.TrimSpace(name))
}

func (r *PostgresAccountRepository) FindByIBAN(ctx context.Context, userID uuid.UUID, iban string) (*domain.Account, error) {
	return r.findAccountBy(ctx, `user_id = $1 AND iban = $2 AND iban <> ''`, userID, domain.NormalizeIBAN(iban))
}

func (r *PostgresAccountRepository) collectAccounts(ctx context.Context, query string, args ...any) ([]*domain.Account, error) {
	rows, err := r.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *PostgresAccountRepository) FindByType(ctx context.Context, userID uuid.UUID, accountType domain.AccountType) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND type = $2 ORDER BY number, name`
	return r.collectAccounts(ctx, query, userID, string(accountType))
}

func (r *PostgresAccountRepository) FindChildren(ctx context.Context, userID, parentID uuid.UUID) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND parent_id = $2 ORDER BY number, name`
	return r.collectAccounts(ctx, query, userID, parentID)
}

func (r *PostgresAccountRepository) FindAll(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY number, name`
	return r.collectAccounts(ctx, query, userID)
}

// Save upserts the account. Unique-constraint violations on (user, number) and
// (user, name) surface as the duplicate sentinel errors.
func (r *PostgresAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, name, type, number, iban, currency, active, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			number = EXCLUDED.number,
			iban = EXCLUDED.iban,
			active = EXCLUDED.active,
			parent_id = EXCLUDED.parent_id
	`
	_, err := r.querier(ctx).Exec(ctx, query,
		account.ID, account.UserID, account.Name, string(account.Type), account.Number,
		account.IBAN, string(account.Currency), account.Active, account.ParentID, account.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "accounts_user_number_key":
			return ErrDuplicateAccountNumber
		case "accounts_user_name_key":
			return ErrDuplicateAccountName
		}
	}
	return err
}
