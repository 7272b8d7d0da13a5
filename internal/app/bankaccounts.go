/**
 * @description
 * BankAccountImporter resolves the local ledger account for a bank IBAN,
 * creating the asset account and its IBAN mapping on first contact. The bank
 * wire protocol itself is an external collaborator; this service only manages
 * the ledger side of a connected account.
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

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
)

// BankAccountImporter resolves or creates the asset account for an IBAN.
type BankAccountImporter interface {
	EnsureAccount(ctx context.Context, userID uuid.UUID, iban string, currency domain.Currency) (*domain.Account, error)
}

// BankAccountService is the default BankAccountImporter backed by the account
// and mapping repositories.
type BankAccountService struct {
	accounts store.AccountRepository
	mappings store.AccountMappingRepository
}

// NewBankAccountService creates the bank-account import collaborator.
func NewBankAccountService(accounts store.AccountRepository, mappings store.AccountMappingRepository) *BankAccountService {
	return &BankAccountService{accounts: accounts, mappings: mappings}
}

// EnsureAccount returns the ledger account mapped to iban, creating an asset
// account plus mapping when the IBAN is seen for the first time. Mapping ids
// are deterministic, so concurrent first contacts collapse onto one mapping.
func (s *BankAccountService) EnsureAccount(ctx context.Context, userID uuid.UUID, iban string, currency domain.Currency) (*domain.Account, error) {
	normalized := domain.NormalizeIBAN(iban)
	if normalized == "" {
		return nil, domain.NewValidationError("bank account import requires an IBAN")
	}

	mapping, err := s.mappings.FindByIBAN(ctx, userID, normalized)
	if err == nil {
		return s.accounts.FindByID(ctx, userID, mapping.AccountID)
	}
	if !errors.Is(err, store.ErrMappingNotFound) {
		return nil, err
	}

	// No mapping yet. Reuse an account that already carries the IBAN before
	// creating a fresh one.
	account, err := s.accounts.FindByIBAN(ctx, userID, normalized)
	if errors.Is(err, store.ErrAccountNotFound) {
		account, err = domain.NewAccount(userID, fmt.Sprintf("Bank account %s", normalized), domain.AccountTypeAsset, "", currency)
		if err != nil {
			return nil, err
		}
		account.SetIBAN(normalized)
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, err
		}
		log.Printf("level=info component=bank_account_import msg=\"asset account created\" user_id=%s account_id=%s iban=%s",
			userID, account.ID, normalized)
	} else if err != nil {
		return nil, err
	}

	mapping, err = domain.NewAccountMapping(userID, normalized, account.ID)
	if err != nil {
		return nil, err
	}
	if err := s.mappings.Save(ctx, mapping); err != nil {
		return nil, err
	}
	return account, nil
}
