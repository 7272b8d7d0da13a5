package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kontoflow/ledger-service/internal/domain"
)

// PostgresImportRecordRepository is the ImportRecordRepository view of PostgresStore.
type PostgresImportRecordRepository struct {
	*PostgresStore
}

const importRecordColumns = `id, user_id, bank_transaction_id, status, transaction_id,
	error_message, created_at, updated_at, imported_at`

func scanImportRecord(row pgx.Row) (*domain.ImportRecord, error) {
	var r domain.ImportRecord
	var status string
	err := row.Scan(&r.ID, &r.UserID, &r.BankTransactionID, &status, &r.TransactionID,
		&r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt, &r.ImportedAt)
	if err != nil {
		return nil, err
	}
	r.Status = domain.ImportStatus(status)
	return &r, nil
}

func (r *PostgresImportRecordRepository) findOne(ctx context.Context, where string, args ...any) (*domain.ImportRecord, error) {
	query := `SELECT ` + importRecordColumns + ` FROM import_records WHERE ` + where
	record, err := scanImportRecord(r.querier(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

func (r *PostgresImportRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportRecord, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresImportRecordRepository) FindByBankTransactionID(ctx context.Context, userID, bankTransactionID uuid.UUID) (*domain.ImportRecord, error) {
	return r.findOne(ctx, `user_id = $1 AND bank_transaction_id = $2`, userID, bankTransactionID)
}

func (r *PostgresImportRecordRepository) FindByTransactionID(ctx context.Context, userID, transactionID uuid.UUID) (*domain.ImportRecord, error) {
	return r.findOne(ctx, `user_id = $1 AND transaction_id = $2`, userID, transactionID)
}

func (r *PostgresImportRecordRepository) FindByStatus(ctx context.Context, userID uuid.UUID, status domain.ImportStatus) ([]*domain.ImportRecord, error) {
	query := `SELECT ` + importRecordColumns + ` FROM import_records
		WHERE user_id = $1 AND status = $2 ORDER BY created_at`
	rows, err := r.querier(ctx).Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ImportRecord
	for rows.Next() {
		record, err := scanImportRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *PostgresImportRecordRepository) CountByStatus(ctx context.Context, userID uuid.UUID, status domain.ImportStatus) (int, error) {
	var count int
	err := r.querier(ctx).QueryRow(ctx,
		`SELECT count(*) FROM import_records WHERE user_id = $1 AND status = $2`,
		userID, string(status)).Scan(&count)
	return count, err
}

func (r *PostgresImportRecordRepository) Save(ctx context.Context, record *domain.ImportRecord) error {
	_, err := r.querier(ctx).Exec(ctx, `
		INSERT INTO import_records (id, user_id, bank_transaction_id, status, transaction_id,
			error_message, created_at, updated_at, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			transaction_id = EXCLUDED.transaction_id,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			imported_at = EXCLUDED.imported_at
	`,
		record.ID, record.UserID, record.BankTransactionID, string(record.Status), record.TransactionID,
		record.ErrorMessage, record.CreatedAt, record.UpdatedAt, record.ImportedAt,
	)
	return err
}

func (r *PostgresImportRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.querier(ctx).Exec(ctx, `DELETE FROM import_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImportRecordNotFound
	}
	return nil
}

// PostgresAccountMappingRepository is the AccountMappingRepository view of PostgresStore.
type PostgresAccountMappingRepository struct {
	*PostgresStore
}

const mappingColumns = `id, user_id, iban, account_id, active, created_at`

func scanMapping(row pgx.Row) (*domain.AccountMapping, error) {
	var m domain.AccountMapping
	if err := row.Scan(&m.ID, &m.UserID, &m.IBAN, &m.AccountID, &m.Active, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresAccountMappingRepository) FindByIBAN(ctx context.Context, userID uuid.UUID, iban string) (*domain.AccountMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM account_mappings
		WHERE user_id = $1 AND iban = $2 AND active`
	mapping, err := scanMapping(r.querier(ctx).QueryRow(ctx, query, userID, domain.NormalizeIBAN(iban)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (r *PostgresAccountMappingRepository) FindAllActive(ctx context.Context, userID uuid.UUID) ([]*domain.AccountMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM account_mappings WHERE user_id = $1 AND active ORDER BY iban`
	rows, err := r.querier(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*domain.AccountMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

// Save upserts the mapping. Because mapping ids are deterministic over (user,
// iban, account), re-creating an identical mapping collides on the primary key
// and is a no-op update instead of a duplicate row.
func (r *PostgresAccountMappingRepository) Save(ctx context.Context, mapping *domain.AccountMapping) error {
	_, err := r.querier(ctx).Exec(ctx, `
		INSERT INTO account_mappings (id, user_id, iban, account_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET active = EXCLUDED.active
	`,
		mapping.ID, mapping.UserID, mapping.IBAN, mapping.AccountID, mapping.Active, mapping.CreatedAt,
	)
	return err
}
