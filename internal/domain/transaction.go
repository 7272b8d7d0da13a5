/**
 * @description
 * Transaction is the aggregate root of the ledger: an ordered list of journal
 * entries with a draft/posted lifecycle. Post() enforces the double-entry
 * invariant — for every currency present, the debit sum equals the credit sum —
 * and freezes the entry list. Metadata mixes promoted first-class fields with an
 * open key/value bag guarded by a reserved-keys set for system-managed markers.
 *
 * @dependencies
 * - github.com/google/uuid: Entity identity.
 * - github.com/shopspring/decimal: Per-currency balance sums.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceKind identifies where a transaction originated.
type SourceKind string

const (
	SourceManual         SourceKind = "manual"
	SourceBankImport     SourceKind = "bank_import"
	SourceOpeningBalance SourceKind = "opening_balance"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusDraft  TransactionStatus = "draft"
	StatusPosted TransactionStatus = "posted"
)

// Reserved metadata keys. These are written through dedicated setters; SetMeta
// refuses them so callers cannot clobber system-managed markers.
const (
	MetaOpeningBalance     = "opening_balance"
	MetaOpeningBalanceIBAN = "opening_balance_iban"
	MetaTransferHash       = "transfer_hash"
	MetaOriginalPurpose    = "original_purpose"
	MetaResolutionSource   = "resolution_source"
	MetaReversalOf         = "reversal_of"
)

var reservedMetaKeys = map[string]struct{}{
	MetaOpeningBalance:     {},
	MetaOpeningBalanceIBAN: {},
	MetaTransferHash:       {},
	MetaOriginalPurpose:    {},
	MetaResolutionSource:   {},
	MetaReversalOf:         {},
}

// JournalEntry is one leg of a transaction. Exactly one of Debit/Credit is
// non-zero; entries are immutable once attached.
type JournalEntry struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Debit     Money
	Credit    Money
}

// IsDebit reports whether the entry books on the debit side.
func (e JournalEntry) IsDebit() bool { return !e.Debit.IsZero() }

// IsCredit reports whether the entry books on the credit side.
func (e JournalEntry) IsCredit() bool { return !e.Credit.IsZero() }

// Amount returns the non-zero side of the entry.
func (e JournalEntry) Amount() Money {
	if e.IsDebit() {
		return e.Debit
	}
	return e.Credit
}

// Transaction is the balanced-entry aggregate.
type Transaction struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Description      string
	Date             time.Time
	CounterpartyName string
	CounterpartyIBAN string
	SourceIBAN       string
	Source           SourceKind
	InternalTransfer bool
	Metadata         map[string]string
	Entries          []JournalEntry
	Status           TransactionStatus
	CreatedAt        time.Time
}

// NewTransaction creates an empty draft transaction.
func NewTransaction(userID uuid.UUID, description string, date time.Time, source SourceKind) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		Date:        date,
		Source:      source,
		Metadata:    map[string]string{},
		Status:      StatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
}

func (t *Transaction) addEntry(account *Account, debit, credit Money) error {
	if t.Status == StatusPosted {
		return ErrTransactionImmutable
	}
	if account == nil {
		return NewValidationError("journal entry requires an account")
	}
	if account.UserID != t.UserID {
		return NewValidationError("journal entry account belongs to a different user")
	}
	t.Entries = append(t.Entries, JournalEntry{
		ID:        uuid.New(),
		AccountID: account.ID,
		Debit:     debit,
		Credit:    credit,
	})
	return nil
}

// AddDebit appends a debit entry against account. Fails once the transaction is
// posted. The amount must be strictly positive; the direction of a booking is
// expressed by choosing the debit or credit side, not by negative amounts.
func (t *Transaction) AddDebit(account *Account, amount Money) error {
	if !amount.IsPositive() {
		return NewValidationError("debit amount must be positive, got %s", amount)
	}
	return t.addEntry(account, amount, ZeroMoney(amount.Currency()))
}

// AddCredit appends a credit entry against account.
func (t *Transaction) AddCredit(account *Account, amount Money) error {
	if !amount.IsPositive() {
		return NewValidationError("credit amount must be positive, got %s", amount)
	}
	return t.addEntry(account, ZeroMoney(amount.Currency()), amount)
}

// Post validates the double-entry invariant and flips the transaction to
// posted. Posting a posted transaction fails; the state is terminal unless
// explicitly unposted.
func (t *Transaction) Post() error {
	if t.Status == StatusPosted {
		return ErrAlreadyPosted
	}
	if len(t.Entries) == 0 {
		return ErrNoEntries
	}
	debits := map[Currency]decimal.Decimal{}
	credits := map[Currency]decimal.Decimal{}
	for _, e := range t.Entries {
		debits[e.Debit.Currency()] = debits[e.Debit.Currency()].Add(e.Debit.Amount())
		credits[e.Credit.Currency()] = credits[e.Credit.Currency()].Add(e.Credit.Amount())
	}
	for currency, debitSum := range debits {
		if !debitSum.Equal(credits[currency]) {
			return detailf(ErrUnbalanced, "%s debits %s vs credits %s",
				currency, debitSum.StringFixed(2), credits[currency].StringFixed(2))
		}
	}
	for currency, creditSum := range credits {
		if _, ok := debits[currency]; !ok && !creditSum.IsZero() {
			return detailf(ErrUnbalanced, "%s has credits only", currency)
		}
	}
	t.Status = StatusPosted
	return nil
}

// Unpost returns a posted transaction to draft. Fails when already draft.
func (t *Transaction) Unpost() error {
	if t.Status != StatusPosted {
		return ErrNotPosted
	}
	t.Status = StatusDraft
	return nil
}

// IsPosted reports whether the transaction has been posted.
func (t *Transaction) IsPosted() bool { return t.Status == StatusPosted }

// SetMeta stores a free-form metadata value. Reserved system keys are refused.
func (t *Transaction) SetMeta(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return NewValidationError("metadata key must not be empty")
	}
	if _, reserved := reservedMetaKeys[key]; reserved {
		return ErrReservedMetadataKey
	}
	t.setMeta(key, value)
	return nil
}

// Meta returns a metadata value and whether it was present.
func (t *Transaction) Meta(key string) (string, bool) {
	v, ok := t.Metadata[key]
	return v, ok
}

func (t *Transaction) setMeta(key, value string) {
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	t.Metadata[key] = value
}

// MarkOpeningBalance tags the transaction as the opening balance for iban.
func (t *Transaction) MarkOpeningBalance(iban string) {
	t.setMeta(MetaOpeningBalance, "true")
	t.setMeta(MetaOpeningBalanceIBAN, NormalizeIBAN(iban))
}

// IsOpeningBalance reports whether the opening-balance marker is set.
func (t *Transaction) IsOpeningBalance() bool {
	v, ok := t.Metadata[MetaOpeningBalance]
	return ok && v == "true"
}

// SetTransferHash records the canonical transfer hash that produced this
// transaction, used for reconciliation idempotency.
func (t *Transaction) SetTransferHash(hash string) { t.setMeta(MetaTransferHash, hash) }

// TransferHashMeta returns the recorded transfer hash, if any.
func (t *Transaction) TransferHashMeta() (string, bool) {
	v, ok := t.Metadata[MetaTransferHash]
	return v, ok
}

// SetOriginalPurpose preserves the raw bank purpose line.
func (t *Transaction) SetOriginalPurpose(purpose string) { t.setMeta(MetaOriginalPurpose, purpose) }

// SetResolutionSource records which tier resolved the counter-account.
func (t *Transaction) SetResolutionSource(source string) { t.setMeta(MetaResolutionSource, source) }

// LinkReversalOf records the transaction this one reverses.
func (t *Transaction) LinkReversalOf(id uuid.UUID) { t.setMeta(MetaReversalOf, id.String()) }
