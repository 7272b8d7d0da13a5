package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PostgresTransactionRepository is the TransactionRepository view of PostgresStore.
type PostgresTransactionRepository struct {
	*PostgresStore
}

const transactionColumns = `id, user_id, description, date, counterparty_name, counterparty_iban,
	source_iban, source, internal_transfer, metadata, status, created_at`

// transactionColumnsT is the t.-qualified variant for queries joining
// journal_entries, where bare column names would be ambiguous.
const transactionColumnsT = `t.id, t.user_id, t.description, t.date, t.counterparty_name, t.counterparty_iban,
	t.source_iban, t.source, t.internal_transfer, t.metadata, t.status, t.created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var source, status string
	var metadata []byte
	err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Date, &t.CounterpartyName, &t.CounterpartyIBAN,
		&t.SourceIBAN, &source, &t.InternalTransfer, &metadata, &status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Source = domain.SourceKind(source)
	t.Status = domain.TransactionStatus(status)
	t.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return &t, nil
}

func (r *PostgresTransactionRepository) loadEntries(ctx context.Context, tx *domain.Transaction) error {
	query := `
		SELECT id, account_id, debit::text, credit::text, currency
		FROM journal_entries
		WHERE transaction_id = $1
		ORDER BY position
	`
	rows, err := r.querier(ctx).Query(ctx, query, tx.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.JournalEntry
		var debit, credit, currency string
		if err := rows.Scan(&entry.ID, &entry.AccountID, &debit, &credit, &currency); err != nil {
			return err
		}
		debitAmount, err := decimal.NewFromString(debit)
		if err != nil {
			return fmt.Errorf("decode debit amount: %w", err)
		}
		creditAmount, err := decimal.NewFromString(credit)
		if err != nil {
			return fmt.Errorf("decode credit amount: %w", err)
		}
		if entry.Debit, err = domain.NewMoney(debitAmount, domain.Currency(currency)); err != nil {
			return err
		}
		if entry.Credit, err = domain.NewMoney(creditAmount, domain.Currency(currency)); err != nil {
			return err
		}
		tx.Entries = append(tx.Entries, entry)
	}
	return rows.Err()
}

func (r *PostgresTransactionRepository) collectTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, tx := range transactions {
		if err := r.loadEntries(ctx, tx); err != nil {
			return nil, err
		}
	}
	return transactions, nil
}

func (r *PostgresTransactionRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND id = $2`
	tx, err := scanTransaction(r.querier(ctx).QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if err := r.loadEntries(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) FindByAccount(ctx context.Context, userID, accountID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT DISTINCT ` + transactionColumnsT + `
		FROM transactions t
		JOIN journal_entries e ON e.transaction_id = t.id
		WHERE t.user_id = $1 AND e.account_id = $2
		ORDER BY t.date, t.created_at
	`
	return r.collectTransactions(ctx, query, userID, accountID)
}

func (r *PostgresTransactionRepository) FindByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date, created_at`
	return r.collectTransactions(ctx, query, userID, from, to)
}

func (r *PostgresTransactionRepository) FindByMetadata(ctx context.Context, userID uuid.UUID, key, value string) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 AND metadata->>$2 = $3 ORDER BY date, created_at`
	return r.collectTransactions(ctx, query, userID, key, value)
}

func (r *PostgresTransactionRepository) Search(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]*domain.Transaction, error) {
	query := `SELECT DISTINCT ` + transactionColumnsT + ` FROM transactions t`
	args := []any{userID}
	if filter.AccountID != nil {
		query += ` JOIN journal_entries e ON e.transaction_id = t.id`
	}
	query += ` WHERE t.user_id = $1`
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += fmt.Sprintf(` AND e.account_id = $%d`, len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(` AND t.date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(` AND t.date <= $%d`, len(args))
	}
	if filter.CounterpartyIBAN != "" {
		args = append(args, domain.NormalizeIBAN(filter.CounterpartyIBAN))
		query += fmt.Sprintf(` AND t.counterparty_iban = $%d`, len(args))
	}
	if filter.ExcludeTransfers {
		query += ` AND NOT t.internal_transfer`
	}
	query += ` ORDER BY t.date, t.created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	return r.collectTransactions(ctx, query, args...)
}

func (r *PostgresTransactionRepository) CountByStatus(ctx context.Context, userID uuid.UUID, status domain.TransactionStatus) (int, error) {
	var count int
	err := r.querier(ctx).QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE user_id = $1 AND status = $2`,
		userID, string(status)).Scan(&count)
	return count, err
}

// Save upserts the transaction row and rewrites its journal entries
// as one atomic unit, joining an ambient scope when present.
func (r *PostgresTransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		metadata, err := json.Marshal(tx.Metadata)
		if err != nil {
			return fmt.Errorf("encode transaction metadata: %w", err)
		}
		q := r.querier(ctx)
		_, err = q.Exec(ctx, `
			INSERT INTO transactions (id, user_id, description, date, counterparty_name, counterparty_iban,
				source_iban, source, internal_transfer, metadata, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				description = EXCLUDED.description,
				date = EXCLUDED.date,
				counterparty_name = EXCLUDED.counterparty_name,
				counterparty_iban = EXCLUDED.counterparty_iban,
				internal_transfer = EXCLUDED.internal_transfer,
				metadata = EXCLUDED.metadata,
				status = EXCLUDED.status
		`,
			tx.ID, tx.UserID, tx.Description, tx.Date, tx.CounterpartyName, tx.CounterpartyIBAN,
			tx.SourceIBAN, string(tx.Source), tx.InternalTransfer, metadata, string(tx.Status), tx.CreatedAt,
		)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM journal_entries WHERE transaction_id = $1`, tx.ID); err != nil {
			return err
		}
		for position, entry := range tx.Entries {
			_, err := q.Exec(ctx, `
				INSERT INTO journal_entries (id, transaction_id, account_id, debit, credit, currency, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`,
				entry.ID, tx.ID, entry.AccountID,
				entry.Debit.Amount().StringFixed(2), entry.Credit.Amount().StringFixed(2),
				string(entry.Debit.Currency()), position,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresTransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.querier(ctx).Exec(ctx,
		`DELETE FROM transactions WHERE user_id = $1 AND id = $2 AND status = $3`,
		userID, id, string(domain.StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
