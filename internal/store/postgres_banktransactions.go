/**
 * @description
 * PostgresBankTransactionStore is the dedup boundary for raw bank transactions.
 * Each transaction gets a SHA-256 identity hash scoped to the owning account
 * IBAN and a per-(account, hash) sequence number assigned in a single pass over
 * the batch. A uniqueness constraint on (account_iban, identity_hash,
 * hash_sequence) makes retries of identical batches store nothing new.
 *
 * The whole pass runs inside one transaction holding a per-account advisory
 * lock, so two concurrent imports for the same account cannot race on sequence
 * numbers. Different accounts are unaffected by the lock.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: Transactions and advisory locks.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PostgresBankTransactionStore is the BankTransactionStore view of PostgresStore.
type PostgresBankTransactionStore struct {
	*PostgresStore
}

const bankTransactionColumns = `id, account_iban, identity_hash, hash_sequence, booking_date,
	amount::text, currency, purpose, counterparty_name, counterparty_iban, end_to_end_reference, created_at`

func scanStoredBankTransaction(row pgx.Row) (*domain.StoredBankTransaction, error) {
	var b domain.StoredBankTransaction
	var amount, currency string
	err := row.Scan(&b.ID, &b.AccountIBAN, &b.IdentityHash, &b.HashSequence, &b.BookingDate,
		&amount, &currency, &b.Purpose, &b.CounterpartyName, &b.CounterpartyIBAN, &b.EndToEndReference, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("decode bank transaction amount: %w", err)
	}
	b.Currency = domain.Currency(currency)
	return &b, nil
}

// SaveBatchWithDeduplication processes transactions in arrival order and
// returns one stored record per input. The first occurrence of an identity
// hash gets sequence 1, the next identical one 2, and so on; occurrences
// already present from earlier batches are returned with IsNew=false.
func (s *PostgresBankTransactionStore) SaveBatchWithDeduplication(ctx context.Context, transactions []domain.BankTransaction, accountIBAN string) ([]domain.StoredBankTransaction, error) {
	iban := domain.NormalizeIBAN(accountIBAN)
	if iban == "" {
		return nil, domain.NewValidationError("bank transaction batch requires an account IBAN")
	}

	var results []domain.StoredBankTransaction
	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		// Single writer per account while sequences are assigned.
		if _, err := s.querier(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, iban); err != nil {
			return err
		}
		var err error
		results, err = dedupBatch(ctx, s, iban, transactions)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *PostgresBankTransactionStore) insertStored(ctx context.Context, stored *domain.StoredBankTransaction) (bool, error) {
	tag, err := s.querier(ctx).Exec(ctx, `
		INSERT INTO bank_transactions (id, account_iban, identity_hash, hash_sequence, booking_date,
			amount, currency, purpose, counterparty_name, counterparty_iban, end_to_end_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_iban, identity_hash, hash_sequence) DO NOTHING
	`,
		stored.ID, stored.AccountIBAN, stored.IdentityHash, stored.HashSequence, stored.BookingDate,
		stored.Amount.StringFixed(2), string(stored.Currency), stored.Purpose,
		stored.CounterpartyName, domain.NormalizeIBAN(stored.CounterpartyIBAN), stored.EndToEndReference,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresBankTransactionStore) findBySequence(ctx context.Context, iban, hash string, sequence int) (*domain.StoredBankTransaction, error) {
	query := `SELECT ` + bankTransactionColumns + ` FROM bank_transactions
		WHERE account_iban = $1 AND identity_hash = $2 AND hash_sequence = $3`
	stored, err := scanStoredBankTransaction(s.querier(ctx).QueryRow(ctx, query, iban, hash, sequence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBankTransactionNotFound
		}
		return nil, err
	}
	return stored, nil
}

func (s *PostgresBankTransactionStore) hasSuccessfulImport(ctx context.Context, bankTransactionID uuid.UUID) (bool, error) {
	var imported bool
	err := s.querier(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM import_records WHERE bank_transaction_id = $1 AND status = $2)`,
		bankTransactionID, string(domain.ImportSuccess)).Scan(&imported)
	return imported, err
}

func (s *PostgresBankTransactionStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.StoredBankTransaction, error) {
	query := `SELECT ` + bankTransactionColumns + ` FROM bank_transactions WHERE id = $1`
	stored, err := scanStoredBankTransaction(s.querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBankTransactionNotFound
		}
		return nil, err
	}
	return stored, nil
}
