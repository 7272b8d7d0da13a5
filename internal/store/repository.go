/**
 * @description
 * This file defines the repository contracts the ledger core depends on. The
 * application services are written against these interfaces only, which keeps
 * the accounting logic independent of PostgreSQL and lets tests substitute
 * in-memory fakes.
 *
 * The Session interface is the ambient-transaction capability: WithinTransaction
 * opens an atomic scope only when the caller is not already inside one, so the
 * import pipeline never starts a nested database transaction.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: Entity identifiers.
 * - internal/domain: Ledger domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrBankTransactionNotFound = errors.New("bank transaction not found")
	ErrImportRecordNotFound    = errors.New("import record not found")
	ErrMappingNotFound         = errors.New("account mapping not found")
	ErrDuplicateAccountNumber  = errors.New("account number already in use")
	ErrDuplicateAccountName    = errors.New("account name already in use")
)

// AccountRepository provides user-scoped access to ledger accounts.
type AccountRepository interface {
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Account, error)
	FindByNumber(ctx context.Context, userID uuid.UUID, number string) (*domain.Account, error)
	FindByName(ctx context.Context, userID uuid.UUID, name string) (*domain.Account, error)
	FindByIBAN(ctx context.Context, userID uuid.UUID, iban string) (*domain.Account, error)
	FindByType(ctx context.Context, userID uuid.UUID, accountType domain.AccountType) ([]*domain.Account, error)
	FindChildren(ctx context.Context, userID, parentID uuid.UUID) ([]*domain.Account, error)
	FindAll(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
}

// TransactionFilter narrows a paginated transaction search.
type TransactionFilter struct {
	AccountID        *uuid.UUID
	From             *time.Time
	To               *time.Time
	CounterpartyIBAN string
	ExcludeTransfers bool
	Limit            int
	Offset           int
}

// TransactionRepository provides user-scoped access to accounting transactions
// and their journal entries.
type TransactionRepository interface {
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error)
	FindByAccount(ctx context.Context, userID, accountID uuid.UUID) ([]*domain.Transaction, error)
	FindByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error)
	FindByMetadata(ctx context.Context, userID uuid.UUID, key, value string) ([]*domain.Transaction, error)
	Search(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]*domain.Transaction, error)
	CountByStatus(ctx context.Context, userID uuid.UUID, status domain.TransactionStatus) (int, error)
	Save(ctx context.Context, tx *domain.Transaction) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// BankTransactionStore is the dedup boundary for raw bank transactions.
// SaveBatchWithDeduplication processes the batch in arrival order, assigns the
// next unused (account, identity hash) sequence to each item, and returns one
// stored record per input with IsNew/IsImported populated. Retrying an
// identical batch stores nothing new.
type BankTransactionStore interface {
	SaveBatchWithDeduplication(ctx context.Context, transactions []domain.BankTransaction, accountIBAN string) ([]domain.StoredBankTransaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.StoredBankTransaction, error)
}

// ImportRecordRepository tracks per-bank-transaction import outcomes.
type ImportRecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportRecord, error)
	FindByBankTransactionID(ctx context.Context, userID, bankTransactionID uuid.UUID) (*domain.ImportRecord, error)
	FindByTransactionID(ctx context.Context, userID, transactionID uuid.UUID) (*domain.ImportRecord, error)
	FindByStatus(ctx context.Context, userID uuid.UUID, status domain.ImportStatus) ([]*domain.ImportRecord, error)
	CountByStatus(ctx context.Context, userID uuid.UUID, status domain.ImportStatus) (int, error)
	Save(ctx context.Context, record *domain.ImportRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountMappingRepository links normalized IBANs to ledger accounts.
type AccountMappingRepository interface {
	FindByIBAN(ctx context.Context, userID uuid.UUID, iban string) (*domain.AccountMapping, error)
	FindAllActive(ctx context.Context, userID uuid.UUID) ([]*domain.AccountMapping, error)
	Save(ctx context.Context, mapping *domain.AccountMapping) error
}

// Session exposes ambient transaction participation. WithinTransaction runs fn
// inside an atomic scope; when the context already carries one, fn runs in the
// existing scope instead of a nested transaction.
type Session interface {
	InTransaction(ctx context.Context) bool
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
