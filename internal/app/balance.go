/**
 * @description
 * AccountBalanceService computes account balances and trial balances from a
 * transaction set. All calculations are pure folds over journal entries: no
 * account or transaction is ever mutated, and the only I/O is the descendant
 * lookup used for hierarchical roll-up.
 *
 * @dependencies
 * - internal/domain, internal/store: Ledger models and repository contracts.
 * - github.com/shopspring/decimal: Trial-balance grand totals.
 */

package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
	"github.com/shopspring/decimal"
)

// BalanceOptions narrows which entries participate in a balance calculation.
type BalanceOptions struct {
	// AsOf excludes transactions dated strictly after this point.
	AsOf *time.Time
	// IncludeDrafts folds draft transactions in as well. Default: posted only.
	IncludeDrafts bool
}

// AccountBalanceService computes balances from transactions.
type AccountBalanceService struct {
	accounts store.AccountRepository
}

// NewAccountBalanceService creates the balance service.
func NewAccountBalanceService(accounts store.AccountRepository) *AccountBalanceService {
	return &AccountBalanceService{accounts: accounts}
}

// CalculateBalance folds the journal entries touching account into a signed
// balance in the account's currency. Debit-normal accounts grow with debits;
// credit-normal accounts grow with credits.
func (s *AccountBalanceService) CalculateBalance(account *domain.Account, transactions []*domain.Transaction, opts BalanceOptions) (domain.Money, error) {
	balance := domain.ZeroMoney(account.Currency)
	for _, tx := range transactions {
		if !opts.IncludeDrafts && !tx.IsPosted() {
			continue
		}
		if opts.AsOf != nil && tx.Date.After(*opts.AsOf) {
			continue
		}
		for _, entry := range tx.Entries {
			if entry.AccountID != account.ID {
				continue
			}
			signed, err := entry.Debit.Sub(entry.Credit)
			if err != nil {
				return domain.Money{}, err
			}
			if account.IsCreditNormal() {
				signed = signed.Neg()
			}
			balance, err = balance.Add(signed)
			if err != nil {
				return domain.Money{}, err
			}
		}
	}
	return balance, nil
}

// CalculateBalanceWithChildren sums the account plus all of its descendants.
// Parents and children share type and owner by construction, so the currency
// is consistent across the subtree.
func (s *AccountBalanceService) CalculateBalanceWithChildren(ctx context.Context, account *domain.Account, transactions []*domain.Transaction, opts BalanceOptions) (domain.Money, error) {
	balance, err := s.CalculateBalance(account, transactions, opts)
	if err != nil {
		return domain.Money{}, err
	}
	children, err := s.accounts.FindChildren(ctx, account.UserID, account.ID)
	if err != nil {
		return domain.Money{}, err
	}
	for _, child := range children {
		childBalance, err := s.CalculateBalanceWithChildren(ctx, child, transactions, opts)
		if err != nil {
			return domain.Money{}, err
		}
		balance, err = balance.Add(childBalance)
		if err != nil {
			return domain.Money{}, err
		}
	}
	return balance, nil
}

// TrialBalanceLine is one account's balance converted to the debit-normal
// positive convention.
type TrialBalanceLine struct {
	Account *domain.Account
	// Signed is the balance with credit-normal accounts negated, so that the
	// sum over all lines of one currency is exactly zero for a healthy ledger.
	Signed domain.Money
}

// TrialBalance is the canonical double-entry health check over a whole ledger.
type TrialBalance struct {
	Lines  []TrialBalanceLine
	Totals map[domain.Currency]decimal.Decimal
}

// Balanced reports whether every currency's grand total is exactly zero.
func (tb TrialBalance) Balanced() bool {
	for _, total := range tb.Totals {
		if !total.IsZero() {
			return false
		}
	}
	return true
}

// GetTrialBalance converts every account balance to the single signed
// convention (debit-normal positive) and sums per currency.
func (s *AccountBalanceService) GetTrialBalance(ctx context.Context, userID uuid.UUID, transactions []*domain.Transaction, opts BalanceOptions) (TrialBalance, error) {
	accounts, err := s.accounts.FindAll(ctx, userID, false)
	if err != nil {
		return TrialBalance{}, err
	}

	tb := TrialBalance{Totals: map[domain.Currency]decimal.Decimal{}}
	for _, account := range accounts {
		balance, err := s.CalculateBalance(account, transactions, opts)
		if err != nil {
			return TrialBalance{}, err
		}
		signed := balance
		if account.IsCreditNormal() {
			signed = signed.Neg()
		}
		tb.Lines = append(tb.Lines, TrialBalanceLine{Account: account, Signed: signed})
		tb.Totals[signed.Currency()] = tb.Totals[signed.Currency()].Add(signed.Amount())
	}
	return tb, nil
}

// VerifyTrialBalance reports whether the ledger's debits and credits cancel
// out exactly across all accounts.
func (s *AccountBalanceService) VerifyTrialBalance(ctx context.Context, userID uuid.UUID, transactions []*domain.Transaction, opts BalanceOptions) (bool, error) {
	tb, err := s.GetTrialBalance(ctx, userID, transactions, opts)
	if err != nil {
		return false, err
	}
	return tb.Balanced(), nil
}
