package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountMapping links a normalized IBAN to a ledger account for one user. Its
// id is deterministic over (user, iban, account), see AccountMappingID.
type AccountMapping struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IBAN      string
	AccountID uuid.UUID
	Active    bool
	CreatedAt time.Time
}

// NewAccountMapping creates an active mapping. The IBAN is normalized and must
// not be empty.
func NewAccountMapping(userID uuid.UUID, iban string, accountID uuid.UUID) (*AccountMapping, error) {
	normalized := NormalizeIBAN(iban)
	if normalized == "" {
		return nil, NewValidationError("account mapping requires a non-empty IBAN")
	}
	if accountID == uuid.Nil {
		return nil, NewValidationError("account mapping requires an account id")
	}
	return &AccountMapping{
		ID:        AccountMappingID(userID, normalized, accountID),
		UserID:    userID,
		IBAN:      normalized,
		AccountID: accountID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}
