/**
 * @description
 * ImportRecord tracks the accounting-side outcome of one stored bank
 * transaction: pending → success | failed | duplicate | skipped, with failed
 * and skipped retryable back to pending. Its id is derived deterministically
 * from (user, bank transaction id), so re-creating the record for the same bank
 * transaction is naturally idempotent.
 *
 * @dependencies
 * - github.com/google/uuid: uuid.NewSHA1 in a fixed namespace for deterministic ids.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the per-item state of the import state machine.
type ImportStatus string

const (
	ImportPending   ImportStatus = "pending"
	ImportSuccess   ImportStatus = "success"
	ImportFailed    ImportStatus = "failed"
	ImportDuplicate ImportStatus = "duplicate"
	ImportSkipped   ImportStatus = "skipped"
)

// importRecordNamespace is the fixed UUIDv5 namespace for import record ids.
// Changing it would orphan every stored record; it is part of the data format.
var importRecordNamespace = uuid.MustParse("9f2c4e9a-1b7d-4c83-9a57-2f1e0d6b8a41")

// accountMappingNamespace is the fixed UUIDv5 namespace for IBAN→account
// mapping ids.
var accountMappingNamespace = uuid.MustParse("5d8b1f26-7e44-4a1b-b0c9-83d2a6f7c150")

// ImportRecordID derives the deterministic record id for (user, bank tx).
func ImportRecordID(userID, bankTransactionID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(importRecordNamespace, []byte(userID.String()+"/"+bankTransactionID.String()))
}

// AccountMappingID derives the deterministic mapping id for (user, iban,
// account). Re-creating an identical mapping collides on the same id instead of
// producing a duplicate row.
func AccountMappingID(userID uuid.UUID, iban string, accountID uuid.UUID) uuid.UUID {
	key := userID.String() + "/" + NormalizeIBAN(iban) + "/" + accountID.String()
	return uuid.NewSHA1(accountMappingNamespace, []byte(key))
}

// ImportRecord links a stored bank transaction to its accounting outcome.
type ImportRecord struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	BankTransactionID uuid.UUID
	Status            ImportStatus
	TransactionID     *uuid.UUID
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ImportedAt        *time.Time
}

// NewImportRecord creates a pending record with a deterministic id.
func NewImportRecord(userID, bankTransactionID uuid.UUID) *ImportRecord {
	now := time.Now().UTC()
	return &ImportRecord{
		ID:                ImportRecordID(userID, bankTransactionID),
		UserID:            userID,
		BankTransactionID: bankTransactionID,
		Status:            ImportPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// MarkSuccess records the linked accounting transaction. Success without a
// transaction id violates the record invariant and is refused.
func (r *ImportRecord) MarkSuccess(transactionID uuid.UUID, at time.Time) error {
	if transactionID == uuid.Nil {
		return ErrImportRecordIncomplete
	}
	r.Status = ImportSuccess
	id := transactionID
	r.TransactionID = &id
	r.ErrorMessage = ""
	t := at.UTC()
	r.ImportedAt = &t
	r.UpdatedAt = t
	return nil
}

// MarkFailed records a failure. Failed without a message violates the record
// invariant and is refused.
func (r *ImportRecord) MarkFailed(message string, at time.Time) error {
	if strings.TrimSpace(message) == "" {
		return ErrImportRecordIncomplete
	}
	r.Status = ImportFailed
	r.ErrorMessage = message
	r.TransactionID = nil
	r.ImportedAt = nil
	r.UpdatedAt = at.UTC()
	return nil
}

// MarkDuplicate records that the accounting side had already imported the
// underlying bank transaction.
func (r *ImportRecord) MarkDuplicate(at time.Time) {
	r.Status = ImportDuplicate
	r.UpdatedAt = at.UTC()
}

// MarkSkipped records a deliberate skip with a reason.
func (r *ImportRecord) MarkSkipped(reason string, at time.Time) {
	r.Status = ImportSkipped
	r.ErrorMessage = reason
	r.UpdatedAt = at.UTC()
}

// Retry returns a failed or skipped record to pending. Other statuses are
// terminal for retry purposes.
func (r *ImportRecord) Retry(at time.Time) error {
	if r.Status != ImportFailed && r.Status != ImportSkipped {
		return ErrImportRecordTerminal
	}
	r.Status = ImportPending
	r.ErrorMessage = ""
	r.UpdatedAt = at.UTC()
	return nil
}
