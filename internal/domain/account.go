/**
 * @description
 * Account is a ledger account with debit/credit polarity derived from its type
 * and an optional parent for hierarchy roll-up. SetParent enforces the local
 * invariants (same type, same owner, no self-reference); cycle detection across
 * the stored hierarchy is the job of app.HierarchyService, which has repository
 * access.
 *
 * @dependencies
 * - github.com/google/uuid: Stable opaque account identity.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountType classifies an account and determines its normal balance side.
type AccountType string

const (
	// AccountTypeAsset is debit-normal: balances grow with debits.
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability is credit-normal.
	AccountTypeLiability AccountType = "liability"
	// AccountTypeEquity is credit-normal.
	AccountTypeEquity AccountType = "equity"
	// AccountTypeIncome is credit-normal.
	AccountTypeIncome AccountType = "income"
	// AccountTypeExpense is debit-normal.
	AccountTypeExpense AccountType = "expense"
)

// ParseAccountType validates a raw account type string.
func ParseAccountType(raw string) (AccountType, error) {
	switch AccountType(strings.ToLower(strings.TrimSpace(raw))) {
	case AccountTypeAsset:
		return AccountTypeAsset, nil
	case AccountTypeLiability:
		return AccountTypeLiability, nil
	case AccountTypeEquity:
		return AccountTypeEquity, nil
	case AccountTypeIncome:
		return AccountTypeIncome, nil
	case AccountTypeExpense:
		return AccountTypeExpense, nil
	default:
		return "", NewValidationError("unknown account type %q", raw)
	}
}

// IsDebitNormal reports whether balances of this type grow with debits.
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// IsCreditNormal reports whether balances of this type grow with credits.
func (t AccountType) IsCreditNormal() bool { return !t.IsDebitNormal() }

// Account is a ledger account. Identity is the opaque ID, never derived from
// mutable fields.
type Account struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Type      AccountType
	Number    string
	IBAN      string // normalized, empty when the account has none
	Currency  Currency
	Active    bool
	ParentID  *uuid.UUID
	CreatedAt time.Time
}

// NewAccount creates an active account owned by userID.
func NewAccount(userID uuid.UUID, name string, accountType AccountType, number string, currency Currency) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewValidationError("account name must not be empty")
	}
	if _, ok := supportedCurrencies[currency]; !ok {
		return nil, NewValidationError("unsupported currency code %q", string(currency))
	}
	return &Account{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Type:      accountType,
		Number:    strings.TrimSpace(number),
		Currency:  currency,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NormalizeIBAN uppercases and strips all whitespace from an IBAN. An empty
// input stays empty (account without IBAN).
func NormalizeIBAN(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// SetIBAN stores the normalized form.
func (a *Account) SetIBAN(raw string) {
	a.IBAN = NormalizeIBAN(raw)
}

// SetParent links the account under parent, enforcing the local hierarchy
// invariants: a parent must share type and owner and must not be the account
// itself. Cycle detection across the stored graph is done by the hierarchy
// service before persisting.
func (a *Account) SetParent(parent *Account) error {
	if parent == nil {
		a.ParentID = nil
		return nil
	}
	if parent.ID == a.ID {
		return NewValidationError("account %s cannot be its own parent", a.ID)
	}
	if parent.Type != a.Type {
		return NewValidationError("parent account type %s does not match %s", parent.Type, a.Type)
	}
	if parent.UserID != a.UserID {
		return NewValidationError("parent account belongs to a different user")
	}
	id := parent.ID
	a.ParentID = &id
	return nil
}

// IsDebitNormal reports whether the account balance grows with debits.
func (a *Account) IsDebitNormal() bool { return a.Type.IsDebitNormal() }

// IsCreditNormal reports whether the account balance grows with credits.
func (a *Account) IsCreditNormal() bool { return a.Type.IsCreditNormal() }

// Deactivate soft-deletes the account. Accounts referenced by journal entries
// are never hard-deleted.
func (a *Account) Deactivate() { a.Active = false }
