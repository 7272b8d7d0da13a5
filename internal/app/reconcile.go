/**
 * @description
 * TransferReconciliationService corrects opening-balance double counting
 * caused by staggered account onboarding. When account A syncs first, any
 * transfer between A and a later-synced account B dated before A's opening
 * balance was already absorbed into that opening balance; importing B's
 * matching leg would count it twice. The service books a single balanced,
 * auto-posted adjustment against the well-known opening-balance equity
 * account, tagged with the originating transfer hash so repeated detection of
 * the same transfer is a no-op.
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

// TransferReconciliationService books opening-balance adjustments for
// pre-opening-balance transfers.
type TransferReconciliationService struct {
	accounts     store.AccountRepository
	transactions store.TransactionRepository
	opening      *OpeningBalanceService
}

// NewTransferReconciliationService creates the reconciliation service.
func NewTransferReconciliationService(accounts store.AccountRepository, transactions store.TransactionRepository, opening *OpeningBalanceService) *TransferReconciliationService {
	return &TransferReconciliationService{accounts: accounts, transactions: transactions, opening: opening}
}

// AdjustmentInput describes one detected internal transfer leg from the point
// of view of the already-synced counterparty account.
type AdjustmentInput struct {
	UserID uuid.UUID
	// CounterpartyAccount is the user's already-synced account on the other
	// side of the transfer. Nil means the counterparty is external; external
	// transfers never need adjustment.
	CounterpartyAccount *domain.Account
	CounterpartyIBAN    string
	// Amount is the transfer magnitude (positive).
	Amount domain.Money
	Date   time.Time
	// IncomingToCounterparty is true when the transfer moved money INTO the
	// counterparty account. Its opening balance then already contains the
	// amount, so the adjustment subtracts; outgoing transfers add.
	IncomingToCounterparty bool
	// TransferHash is the canonical direction-independent hash of the
	// transfer, used as the idempotency key.
	TransferHash string
}

// IsPreOpeningBalance reports whether a transfer dated transferDate was
// already absorbed into the counterparty's opening balance. The comparison is
// strict: same-day transfers are not adjusted, because the opening balance's
// "as of" boundary includes that day.
func (s *TransferReconciliationService) IsPreOpeningBalance(ctx context.Context, userID uuid.UUID, counterparty *domain.Account, transferDate time.Time) (bool, error) {
	if counterparty == nil || counterparty.IBAN == "" {
		return false, nil
	}
	opening, err := s.opening.FindOpeningBalanceTransaction(ctx, userID, counterparty.IBAN)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return false, nil
		}
		return false, err
	}
	return transferDate.Before(opening.Date), nil
}

// CreateAdjustmentIfNeeded books at most one adjustment transaction for the
// given transfer. It returns (nil, nil) when no adjustment is needed: the
// transfer hash was already adjusted, the counterparty is external, or the
// opening-balance equity account does not exist yet.
func (s *TransferReconciliationService) CreateAdjustmentIfNeeded(ctx context.Context, in AdjustmentInput) (*domain.Transaction, error) {
	if in.CounterpartyAccount == nil {
		return nil, nil
	}

	if in.TransferHash != "" {
		existing, err := s.transactions.FindByMetadata(ctx, in.UserID, domain.MetaTransferHash, in.TransferHash)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, nil
		}
	}

	equity, err := s.accounts.FindByNumber(ctx, in.UserID, OpeningBalanceAccountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			// Without the target equity account there is nothing to correct
			// against. Reported, not fatal.
			log.Printf("level=warn component=transfer_reconciliation msg=\"opening balance account missing, adjustment skipped\" user_id=%s transfer_hash=%s",
				in.UserID, in.TransferHash)
			return nil, nil
		}
		return nil, err
	}

	adjustment := in.Amount.Abs()
	if in.IncomingToCounterparty {
		// The counterparty's opening balance already contains the incoming
		// amount; subtract it.
		adjustment = adjustment.Neg()
	}

	description := fmt.Sprintf("Opening balance adjustment %s", domain.NormalizeIBAN(in.CounterpartyIBAN))
	tx, err := s.opening.BuildEquityOffsetTransaction(in.CounterpartyAccount, equity, adjustment, in.Date, in.UserID, description)
	if err != nil || tx == nil {
		return nil, err
	}
	tx.CounterpartyIBAN = domain.NormalizeIBAN(in.CounterpartyIBAN)
	tx.SetTransferHash(in.TransferHash)

	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, err
	}
	log.Printf("level=info component=transfer_reconciliation msg=\"opening balance adjustment booked\" user_id=%s transaction_id=%s amount=%s transfer_hash=%s",
		in.UserID, tx.ID, adjustment, in.TransferHash)
	return tx, nil
}
