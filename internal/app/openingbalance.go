/**
 * @description
 * OpeningBalanceService back-calculates the balance a bank account had
 * immediately before the earliest imported transaction, and emits the
 * equity-offsetting transaction that seeds the ledger with it. When a bank
 * account is first connected the importer only sees the current balance and a
 * finite window of history; the true pre-window balance is
 * current − Σ(signed imported amounts).
 *
 * System-generated opening entries are posted immediately, never left draft.
 *
 * @dependencies
 * - internal/domain, internal/store: Ledger models and repository contracts.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
)

// Well-known opening-balance equity account. Created on demand the first time
// a bank account is connected.
const (
	OpeningBalanceAccountNumber = "3000"
	OpeningBalanceAccountName   = "Opening Balances"
)

// OpeningBalanceService computes and books opening balances.
type OpeningBalanceService struct {
	accounts     store.AccountRepository
	transactions store.TransactionRepository
}

// NewOpeningBalanceService creates the opening-balance service.
func NewOpeningBalanceService(accounts store.AccountRepository, transactions store.TransactionRepository) *OpeningBalanceService {
	return &OpeningBalanceService{accounts: accounts, transactions: transactions}
}

// CalculateOpeningBalance infers the balance right before the imported window:
// currentBalance minus the signed sum of the transactions being imported.
func (s *OpeningBalanceService) CalculateOpeningBalance(currentBalance domain.Money, imported []domain.BankTransaction) (domain.Money, error) {
	opening := currentBalance
	for _, btx := range imported {
		amount, err := domain.NewMoney(btx.Amount, btx.Currency)
		if err != nil {
			return domain.Money{}, err
		}
		opening, err = opening.Sub(amount)
		if err != nil {
			return domain.Money{}, err
		}
	}
	return opening, nil
}

// BuildEquityOffsetTransaction constructs a balanced, auto-posted transaction
// moving amount between an asset account and an equity account. A positive
// amount debits the asset and credits equity; a negative amount (overdraft)
// books the reverse. A zero amount returns (nil, nil): two zero journal
// entries have no economic meaning and are refused.
func (s *OpeningBalanceService) BuildEquityOffsetTransaction(asset, equity *domain.Account, amount domain.Money, date time.Time, userID uuid.UUID, description string) (*domain.Transaction, error) {
	if asset == nil || asset.Type != domain.AccountTypeAsset {
		return nil, domain.NewValidationError("opening balance requires an asset account, got %s", accountTypeOf(asset))
	}
	if equity == nil || equity.Type != domain.AccountTypeEquity {
		return nil, domain.NewValidationError("opening balance requires an equity account, got %s", accountTypeOf(equity))
	}
	if amount.IsZero() {
		return nil, nil
	}

	tx := domain.NewTransaction(userID, description, date, domain.SourceOpeningBalance)
	magnitude := amount.Abs()
	var err error
	if amount.IsPositive() {
		if err = tx.AddDebit(asset, magnitude); err == nil {
			err = tx.AddCredit(equity, magnitude)
		}
	} else {
		if err = tx.AddCredit(asset, magnitude); err == nil {
			err = tx.AddDebit(equity, magnitude)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Post(); err != nil {
		return nil, err
	}
	return tx, nil
}

// CreateOpeningBalanceTransaction builds the auto-posted opening-balance
// transaction for a newly connected bank account and tags it with the
// opening-balance markers for iban. Returns (nil, nil) when amount is zero.
// The transaction is not persisted; that is the caller's concern.
func (s *OpeningBalanceService) CreateOpeningBalanceTransaction(asset, equity *domain.Account, amount domain.Money, date time.Time, iban string, userID uuid.UUID) (*domain.Transaction, error) {
	description := fmt.Sprintf("Opening balance %s", domain.NormalizeIBAN(iban))
	tx, err := s.BuildEquityOffsetTransaction(asset, equity, amount, date, userID, description)
	if err != nil || tx == nil {
		return nil, err
	}
	tx.SourceIBAN = domain.NormalizeIBAN(iban)
	tx.MarkOpeningBalance(iban)
	return tx, nil
}

// EnsureOpeningBalanceAccount returns the user's well-known opening-balance
// equity account, creating it when absent.
func (s *OpeningBalanceService) EnsureOpeningBalanceAccount(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Account, error) {
	account, err := s.accounts.FindByNumber(ctx, userID, OpeningBalanceAccountNumber)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return nil, err
	}
	account, err = domain.NewAccount(userID, OpeningBalanceAccountName, domain.AccountTypeEquity, OpeningBalanceAccountNumber, currency)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// FindOpeningBalanceTransaction returns the opening-balance transaction booked
// for iban, or store.ErrTransactionNotFound when the account has none yet.
func (s *OpeningBalanceService) FindOpeningBalanceTransaction(ctx context.Context, userID uuid.UUID, iban string) (*domain.Transaction, error) {
	matches, err := s.transactions.FindByMetadata(ctx, userID, domain.MetaOpeningBalanceIBAN, domain.NormalizeIBAN(iban))
	if err != nil {
		return nil, err
	}
	for _, tx := range matches {
		if tx.IsOpeningBalance() {
			return tx, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func accountTypeOf(account *domain.Account) string {
	if account == nil {
		return "none"
	}
	return string(account.Type)
}
