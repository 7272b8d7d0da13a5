/**
 * @description
 * TransactionImportService turns deduplicated stored bank transactions into
 * balanced ledger transactions. Per item it resolves the source asset account,
 * checks the accounting-side idempotency boundary (import records), detects
 * internal transfers (triggering opening-balance reconciliation when the
 * transfer predates the counterparty's opening balance), resolves the
 * counter-account through the configured tiers, and persists transaction plus
 * import record as one atomic unit.
 *
 * Batch semantics are partial-failure: every error is captured on the item's
 * import record and the batch continues. Nothing a single item does rolls
 * back its neighbours.
 *
 * @dependencies
 * - internal/domain, internal/store: Ledger models and repository contracts.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
)

// errZeroAmount marks bank transactions that move no money; they are skipped,
// not failed.
var errZeroAmount = errors.New("bank transaction amount is zero")

// ImportOptions configures per-batch behavior.
type ImportOptions struct {
	// AutoPost posts imported transactions immediately instead of leaving
	// them draft for review.
	AutoPost bool
	// DefaultExpenseAccountNumber receives outgoing amounts no resolver
	// claimed. Empty disables the fallback.
	DefaultExpenseAccountNumber string
	// DefaultIncomeAccountNumber receives incoming amounts no resolver
	// claimed. Empty disables the fallback.
	DefaultIncomeAccountNumber string
}

// TransactionImportService orchestrates the accounting-side import of stored
// bank transactions.
type TransactionImportService struct {
	accounts       store.AccountRepository
	transactions   store.TransactionRepository
	imports        store.ImportRecordRepository
	mappings       store.AccountMappingRepository
	session        store.Session
	bankAccounts   BankAccountImporter
	resolver       CounterAccountResolver
	reconciliation *TransferReconciliationService
	opts           ImportOptions
}

// NewTransactionImportService wires the import orchestrator.
func NewTransactionImportService(
	accounts store.AccountRepository,
	transactions store.TransactionRepository,
	imports store.ImportRecordRepository,
	mappings store.AccountMappingRepository,
	session store.Session,
	bankAccounts BankAccountImporter,
	resolver CounterAccountResolver,
	reconciliation *TransferReconciliationService,
	opts ImportOptions,
) *TransactionImportService {
	return &TransactionImportService{
		accounts:       accounts,
		transactions:   transactions,
		imports:        imports,
		mappings:       mappings,
		session:        session,
		bankAccounts:   bankAccounts,
		resolver:       resolver,
		reconciliation: reconciliation,
		opts:           opts,
	}
}

// ItemResult is the outcome of one bank transaction within a batch.
type ItemResult struct {
	BankTransactionID uuid.UUID            `json:"bank_transaction_id"`
	Status            domain.ImportStatus  `json:"status"`
	TransactionID     *uuid.UUID           `json:"transaction_id,omitempty"`
	Error             string               `json:"error,omitempty"`
}

// BatchSummary is the per-item status breakdown a batch import always
// returns; there is no all-or-nothing result.
type BatchSummary struct {
	Fetched    int          `json:"fetched"`
	Imported   int          `json:"imported"`
	Duplicates int          `json:"duplicates"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Results    []ItemResult `json:"results"`
}

// ImportBatch processes items sequentially in arrival order. Item failures
// are recorded and do not abort or roll back the rest of the batch; only a
// context cancellation stops processing early.
func (s *TransactionImportService) ImportBatch(ctx context.Context, userID uuid.UUID, items []domain.StoredBankTransaction) (BatchSummary, error) {
	summary := BatchSummary{Fetched: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := s.importOne(ctx, userID, item)
		summary.Results = append(summary.Results, result)
		switch result.Status {
		case domain.ImportSuccess:
			summary.Imported++
		case domain.ImportDuplicate:
			summary.Duplicates++
		case domain.ImportSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	log.Printf("level=info component=transaction_import msg=\"batch finished\" user_id=%s fetched=%d imported=%d duplicates=%d skipped=%d failed=%d",
		userID, summary.Fetched, summary.Imported, summary.Duplicates, summary.Skipped, summary.Failed)
	return summary, nil
}

func (s *TransactionImportService) importOne(ctx context.Context, userID uuid.UUID, item domain.StoredBankTransaction) ItemResult {
	now := time.Now().UTC()

	record, err := s.imports.FindByBankTransactionID(ctx, userID, item.ID)
	switch {
	case err == nil:
		switch record.Status {
		case domain.ImportSuccess, domain.ImportDuplicate:
			// Accounting-side idempotency boundary, distinct from the
			// hash+sequence dedup at storage time.
			return ItemResult{BankTransactionID: item.ID, Status: domain.ImportDuplicate, TransactionID: record.TransactionID}
		case domain.ImportFailed, domain.ImportSkipped:
			if retryErr := record.Retry(now); retryErr != nil {
				return ItemResult{BankTransactionID: item.ID, Status: record.Status, Error: retryErr.Error()}
			}
		}
	case errors.Is(err, store.ErrImportRecordNotFound):
		record = domain.NewImportRecord(userID, item.ID)
	default:
		return ItemResult{BankTransactionID: item.ID, Status: domain.ImportFailed, Error: err.Error()}
	}

	tx, err := s.buildTransaction(ctx, userID, item)
	if err != nil {
		if errors.Is(err, errZeroAmount) {
			record.MarkSkipped(err.Error(), now)
		} else if markErr := record.MarkFailed(err.Error(), now); markErr != nil {
			record.MarkSkipped(markErr.Error(), now)
		}
		if saveErr := s.imports.Save(ctx, record); saveErr != nil {
			log.Printf("level=error component=transaction_import msg=\"import record save failed\" user_id=%s bank_transaction_id=%s err=%v",
				userID, item.ID, saveErr)
		}
		return ItemResult{BankTransactionID: item.ID, Status: record.Status, Error: record.ErrorMessage}
	}

	// Transaction and import record are one atomic unit. WithinTransaction
	// joins an ambient caller-managed scope instead of nesting.
	err = s.session.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.transactions.Save(ctx, tx); err != nil {
			return err
		}
		if err := record.MarkSuccess(tx.ID, now); err != nil {
			return err
		}
		return s.imports.Save(ctx, record)
	})
	if err != nil {
		// The atomic scope rolled back: keep the accounting side consistent
		// by recording the failure only.
		if markErr := record.MarkFailed(fmt.Sprintf("persist import: %v", err), now); markErr == nil {
			if saveErr := s.imports.Save(ctx, record); saveErr != nil {
				log.Printf("level=error component=transaction_import msg=\"import record save failed after rollback\" user_id=%s bank_transaction_id=%s err=%v",
					userID, item.ID, saveErr)
			}
		}
		return ItemResult{BankTransactionID: item.ID, Status: domain.ImportFailed, Error: record.ErrorMessage}
	}

	id := tx.ID
	return ItemResult{BankTransactionID: item.ID, Status: domain.ImportSuccess, TransactionID: &id}
}

// buildTransaction runs steps 1-5 of the import pipeline: account resolution,
// counter-account resolution (with transfer detection and opening-balance
// reconciliation), transaction construction and optional auto-post.
func (s *TransactionImportService) buildTransaction(ctx context.Context, userID uuid.UUID, item domain.StoredBankTransaction) (*domain.Transaction, error) {
	asset, err := s.bankAccounts.EnsureAccount(ctx, userID, item.AccountIBAN, item.Currency)
	if err != nil {
		return nil, fmt.Errorf("resolve source account: %w", err)
	}

	amount, err := domain.NewMoney(item.Amount, item.Currency)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, errZeroAmount
	}
	magnitude := amount.Abs()

	counter, source, transferHash, err := s.resolveCounterAccount(ctx, userID, item, asset, amount)
	if err != nil {
		return nil, err
	}

	description := domain.NormalizePurpose(item.Purpose)
	if description == "" {
		description = item.CounterpartyName
	}
	tx := domain.NewTransaction(userID, description, item.BookingDate, domain.SourceBankImport)
	tx.CounterpartyName = item.CounterpartyName
	tx.CounterpartyIBAN = domain.NormalizeIBAN(item.CounterpartyIBAN)
	tx.SourceIBAN = item.AccountIBAN
	tx.SetOriginalPurpose(item.Purpose)
	tx.SetResolutionSource(string(source))
	if transferHash != "" {
		tx.InternalTransfer = true
		tx.SetTransferHash(transferHash)
	}

	if amount.IsPositive() {
		if err = tx.AddDebit(asset, magnitude); err == nil {
			err = tx.AddCredit(counter, magnitude)
		}
	} else {
		if err = tx.AddCredit(asset, magnitude); err == nil {
			err = tx.AddDebit(counter, magnitude)
		}
	}
	if err != nil {
		return nil, err
	}

	if s.opts.AutoPost {
		if err := tx.Post(); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// resolveCounterAccount picks the account on the other side of the booking:
// internal-transfer detection first, then the configured resolver tiers, then
// the default expense/income fallback.
func (s *TransactionImportService) resolveCounterAccount(ctx context.Context, userID uuid.UUID, item domain.StoredBankTransaction, asset *domain.Account, amount domain.Money) (*domain.Account, ResolutionSource, string, error) {
	counterpartyIBAN := domain.NormalizeIBAN(item.CounterpartyIBAN)
	if counterpartyIBAN != "" && counterpartyIBAN != item.AccountIBAN {
		mapping, err := s.mappings.FindByIBAN(ctx, userID, counterpartyIBAN)
		switch {
		case err == nil:
			counter, err := s.accounts.FindByID(ctx, userID, mapping.AccountID)
			if err != nil {
				return nil, ResolutionNone, "", fmt.Errorf("resolve transfer counterparty: %w", err)
			}
			hash := domain.ComputeTransferHash(item.AccountIBAN, counterpartyIBAN, item.BookingDate, item.Amount)
			if err := s.reconcileTransfer(ctx, userID, item, counter, counterpartyIBAN, amount, hash); err != nil {
				return nil, ResolutionNone, "", err
			}
			return counter, ResolutionTransfer, hash, nil
		case !errors.Is(err, store.ErrMappingNotFound):
			return nil, ResolutionNone, "", err
		}
	}

	counter, source, err := s.resolver.Resolve(ctx, userID, item)
	if err != nil {
		return nil, ResolutionNone, "", fmt.Errorf("counter-account resolution: %w", err)
	}
	if counter != nil {
		return counter, source, "", nil
	}

	counter, err = s.defaultCounterAccount(ctx, userID, amount, asset.Currency)
	if err != nil {
		return nil, ResolutionNone, "", err
	}
	return counter, ResolutionDefault, "", nil
}

// reconcileTransfer invokes opening-balance reconciliation when the detected
// transfer predates the counterparty's opening balance.
func (s *TransactionImportService) reconcileTransfer(ctx context.Context, userID uuid.UUID, item domain.StoredBankTransaction, counter *domain.Account, counterpartyIBAN string, amount domain.Money, transferHash string) error {
	pre, err := s.reconciliation.IsPreOpeningBalance(ctx, userID, counter, item.BookingDate)
	if err != nil || !pre {
		return err
	}
	_, err = s.reconciliation.CreateAdjustmentIfNeeded(ctx, AdjustmentInput{
		UserID:              userID,
		CounterpartyAccount: counter,
		CounterpartyIBAN:    counterpartyIBAN,
		Amount:              amount.Abs(),
		Date:                item.BookingDate,
		// A negative source amount means money flowed into the counterparty.
		IncomingToCounterparty: amount.IsNegative(),
		TransferHash:           transferHash,
	})
	return err
}

// defaultCounterAccount returns the configured fallback account for the
// amount's direction, creating it on first use.
func (s *TransactionImportService) defaultCounterAccount(ctx context.Context, userID uuid.UUID, amount domain.Money, currency domain.Currency) (*domain.Account, error) {
	number := s.opts.DefaultExpenseAccountNumber
	name := "Uncategorized Expenses"
	accountType := domain.AccountTypeExpense
	if amount.IsPositive() {
		number = s.opts.DefaultIncomeAccountNumber
		name = "Uncategorized Income"
		accountType = domain.AccountTypeIncome
	}
	if number == "" {
		return nil, domain.NewBusinessRuleError("no counter-account resolved and no default account configured")
	}

	account, err := s.accounts.FindByNumber(ctx, userID, number)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return nil, err
	}
	account, err = domain.NewAccount(userID, name, accountType, number, currency)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}
