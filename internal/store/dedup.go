/**
 * @description
 * The dedup pass assigns per-(account, identity hash) sequence numbers in a
 * single walk over the batch in arrival order. It is written against a narrow
 * sequencer surface so the assignment logic is testable without PostgreSQL;
 * the Postgres store supplies the advisory lock and atomicity around it.
 *
 * @dependencies
 * - github.com/google/uuid: Stored record identity.
 * - internal/domain: Bank transaction models and identity hashing.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
)

// bankTransactionSequencer is the storage surface the dedup pass runs on.
// insertStored reports whether the row was actually written; false means an
// identical (account, hash, sequence) row already exists.
type bankTransactionSequencer interface {
	findBySequence(ctx context.Context, iban, hash string, sequence int) (*domain.StoredBankTransaction, error)
	insertStored(ctx context.Context, stored *domain.StoredBankTransaction) (bool, error)
	hasSuccessfulImport(ctx context.Context, bankTransactionID uuid.UUID) (bool, error)
}

// dedupBatch walks transactions in arrival order. The first occurrence of an
// identity hash in the batch probes sequence 1, the next identical one 2, and
// so on; a sequence already stored by an earlier batch is returned with
// IsNew=false. Rerunning an identical batch therefore stores nothing new and
// yields the same (hash, sequence) pairs as the first run.
func dedupBatch(ctx context.Context, seq bankTransactionSequencer, iban string, transactions []domain.BankTransaction) ([]domain.StoredBankTransaction, error) {
	results := make([]domain.StoredBankTransaction, 0, len(transactions))
	seenInBatch := map[string]int{}
	for _, btx := range transactions {
		hash := btx.IdentityHash(iban)
		seenInBatch[hash]++
		sequence := seenInBatch[hash]

		existing, err := seq.findBySequence(ctx, iban, hash, sequence)
		if err == nil {
			existing.IsNew = false
			existing.IsImported, err = seq.hasSuccessfulImport(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			results = append(results, *existing)
			continue
		}
		if !errors.Is(err, ErrBankTransactionNotFound) {
			return nil, err
		}

		stored := domain.StoredBankTransaction{
			ID:              uuid.New(),
			AccountIBAN:     iban,
			IdentityHash:    hash,
			HashSequence:    sequence,
			BankTransaction: btx,
			IsNew:           true,
		}
		inserted, err := seq.insertStored(ctx, &stored)
		if err != nil {
			return nil, err
		}
		if !inserted {
			// Lost a conflict despite the caller's lock; fall back to the
			// stored row.
			existing, err := seq.findBySequence(ctx, iban, hash, sequence)
			if err != nil {
				return nil, err
			}
			existing.IsNew = false
			results = append(results, *existing)
			continue
		}
		results = append(results, stored)
	}
	return results, nil
}
