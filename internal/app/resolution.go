/**
 * @description
 * Counter-account resolution contract. Rule-based matching is implemented
 * here; smarter tiers (embedding/NLI classification) live behind the same
 * interface in external services. The import pipeline must work correctly
 * with a resolver that never resolves anything — it then falls back to the
 * configured default expense/income accounts.
 *
 * @dependencies
 * - internal/domain, internal/store: Ledger models and repository contracts.
 */

package app

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
)

// ResolutionSource tags which tier resolved a counter-account.
type ResolutionSource string

const (
	ResolutionRule     ResolutionSource = "rule"
	ResolutionNone     ResolutionSource = "none"
	ResolutionDefault  ResolutionSource = "default"
	ResolutionTransfer ResolutionSource = "transfer"
)

// CounterAccountResolver resolves the counter-account for a bank transaction.
// A nil account with source ResolutionNone means "no opinion"; the caller
// falls back to default accounts.
type CounterAccountResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, btx domain.StoredBankTransaction) (*domain.Account, ResolutionSource, error)
}

// NullResolver never resolves. It is the degenerate tier the import service
// must function with.
type NullResolver struct{}

func (NullResolver) Resolve(ctx context.Context, userID uuid.UUID, btx domain.StoredBankTransaction) (*domain.Account, ResolutionSource, error) {
	return nil, ResolutionNone, nil
}

// ResolutionRulePattern maps a case-insensitive substring of the purpose or
// counterparty name to an account number.
type ResolutionRulePattern struct {
	Match         string
	AccountNumber string
}

// RuleBasedResolver resolves counter-accounts by substring rules.
type RuleBasedResolver struct {
	accounts store.AccountRepository
	rules    []ResolutionRulePattern
}

// NewRuleBasedResolver creates a resolver over the given rule set. Rules are
// evaluated in order; the first match wins.
func NewRuleBasedResolver(accounts store.AccountRepository, rules []ResolutionRulePattern) *RuleBasedResolver {
	return &RuleBasedResolver{accounts: accounts, rules: rules}
}

func (r *RuleBasedResolver) Resolve(ctx context.Context, userID uuid.UUID, btx domain.StoredBankTransaction) (*domain.Account, ResolutionSource, error) {
	haystack := strings.ToLower(domain.NormalizePurpose(btx.Purpose) + " " + btx.CounterpartyName)
	for _, rule := range r.rules {
		if rule.Match == "" || !strings.Contains(haystack, strings.ToLower(rule.Match)) {
			continue
		}
		account, err := r.accounts.FindByNumber(ctx, userID, rule.AccountNumber)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				continue
			}
			return nil, ResolutionNone, err
		}
		return account, ResolutionRule, nil
	}
	return nil, ResolutionNone, nil
}
