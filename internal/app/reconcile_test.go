package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
)

type reconcileFixture struct {
	userID       uuid.UUID
	accounts     *fakeAccountRepo
	transactions *fakeTransactionRepo
	opening      *OpeningBalanceService
	svc          *TransferReconciliationService
	accountA     *domain.Account
	equity       *domain.Account
	openingDate  time.Time
}

// newReconcileFixture sets up account A with IBAN A, synced with an opening
// balance dated 2024-03-01, plus the well-known equity account.
func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		userID:       uuid.New(),
		accounts:     newFakeAccountRepo(),
		transactions: newFakeTransactionRepo(),
		openingDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.opening = NewOpeningBalanceService(f.accounts, f.transactions)
	f.svc = NewTransferReconciliationService(f.accounts, f.transactions, f.opening)

	f.accountA = mustAccount(t, f.userID, "Checking", domain.AccountTypeAsset, "1000")
	f.accountA.SetIBAN("DE89370400440532013000")
	f.equity = mustAccount(t, f.userID, OpeningBalanceAccountName, domain.AccountTypeEquity, OpeningBalanceAccountNumber)
	for _, a := range []*domain.Account{f.accountA, f.equity} {
		if err := f.accounts.Save(context.Background(), a); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	opening, err := f.opening.CreateOpeningBalanceTransaction(f.accountA, f.equity, domain.MustMoney("1000.00", domain.EUR), f.openingDate, f.accountA.IBAN, f.userID)
	if err != nil {
		t.Fatalf("CreateOpeningBalanceTransaction: %v", err)
	}
	if err := f.transactions.Save(context.Background(), opening); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return f
}

func TestIsPreOpeningBalance(t *testing.T) {
	f := newReconcileFixture(t)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"before the opening balance", f.openingDate.AddDate(0, 0, -14), true},
		{"same day is already covered", f.openingDate, false},
		{"after the opening balance", f.openingDate.AddDate(0, 0, 1), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.IsPreOpeningBalance(context.Background(), f.userID, f.accountA, tc.date)
			if err != nil {
				t.Fatalf("IsPreOpeningBalance: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsPreOpeningBalance(%s) = %v, want %v", tc.date.Format("2006-01-02"), got, tc.want)
			}
		})
	}

	t.Run("account without opening balance", func(t *testing.T) {
		other := mustAccount(t, f.userID, "Savings", domain.AccountTypeAsset, "1100")
		other.SetIBAN("DE02120300000000202051")
		got, err := f.svc.IsPreOpeningBalance(context.Background(), f.userID, other, f.openingDate.AddDate(0, 0, -1))
		if err != nil {
			t.Fatalf("IsPreOpeningBalance: %v", err)
		}
		if got {
			t.Error("account without an opening balance reported as pre-opening")
		}
	})
}

func TestCreateAdjustmentIfNeeded(t *testing.T) {
	f := newReconcileFixture(t)
	transferDate := f.openingDate.AddDate(0, 0, -14)
	hash := domain.ComputeTransferHash("DE02120300000000202051", f.accountA.IBAN, transferDate, decimal.RequireFromString("200.00"))

	in := AdjustmentInput{
		UserID:                 f.userID,
		CounterpartyAccount:    f.accountA,
		CounterpartyIBAN:       f.accountA.IBAN,
		Amount:                 domain.MustMoney("200.00", domain.EUR),
		Date:                   transferDate,
		IncomingToCounterparty: true,
		TransferHash:           hash,
	}

	tx, err := f.svc.CreateAdjustmentIfNeeded(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateAdjustmentIfNeeded: %v", err)
	}
	if tx == nil {
		t.Fatal("expected an adjustment transaction")
	}
	if !tx.IsPosted() {
		t.Error("adjustment not auto-posted")
	}
	// Incoming 200 was already inside A's opening balance: the adjustment must
	// reduce A, so A's side is a credit.
	var assetEntry *domain.JournalEntry
	for i := range tx.Entries {
		if tx.Entries[i].AccountID == f.accountA.ID {
			assetEntry = &tx.Entries[i]
		}
	}
	if assetEntry == nil {
		t.Fatal("adjustment does not touch the counterparty account")
	}
	if !assetEntry.IsCredit() {
		t.Error("incoming transfer should credit the counterparty account")
	}
	if !assetEntry.Amount().Equal(domain.MustMoney("200.00", domain.EUR)) {
		t.Errorf("adjustment amount = %s, want 200.00 EUR", assetEntry.Amount())
	}
	if got, _ := tx.TransferHashMeta(); got != hash {
		t.Errorf("transfer hash meta = %q, want %q", got, hash)
	}

	// Re-detecting the same transfer (e.g. importing the other leg) is a no-op.
	again, err := f.svc.CreateAdjustmentIfNeeded(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateAdjustmentIfNeeded: %v", err)
	}
	if again != nil {
		t.Error("same transfer hash adjusted twice")
	}
	if len(f.transactions.transactions) != 2 { // opening + one adjustment
		t.Errorf("stored transactions = %d, want 2", len(f.transactions.transactions))
	}
}

func TestCreateAdjustmentOutgoingTransfer(t *testing.T) {
	f := newReconcileFixture(t)
	transferDate := f.openingDate.AddDate(0, 0, -7)
	hash := domain.ComputeTransferHash("DE02120300000000202051", f.accountA.IBAN, transferDate, decimal.RequireFromString("80.00"))

	tx, err := f.svc.CreateAdjustmentIfNeeded(context.Background(), AdjustmentInput{
		UserID:                 f.userID,
		CounterpartyAccount:    f.accountA,
		CounterpartyIBAN:       f.accountA.IBAN,
		Amount:                 domain.MustMoney("80.00", domain.EUR),
		Date:                   transferDate,
		IncomingToCounterparty: false,
		TransferHash:           hash,
	})
	if err != nil {
		t.Fatalf("CreateAdjustmentIfNeeded: %v", err)
	}
	if tx == nil {
		t.Fatal("expected an adjustment transaction")
	}
	for _, e := range tx.Entries {
		if e.AccountID == f.accountA.ID && !e.IsDebit() {
			t.Error("outgoing transfer should debit the counterparty account back up")
		}
	}
}

func TestCreateAdjustmentNoOps(t *testing.T) {
	f := newReconcileFixture(t)

	t.Run("external counterparty", func(t *testing.T) {
		tx, err := f.svc.CreateAdjustmentIfNeeded(context.Background(), AdjustmentInput{
			UserID:       f.userID,
			Amount:       domain.MustMoney("10.00", domain.EUR),
			Date:         f.openingDate.AddDate(0, 0, -1),
			TransferHash: "irrelevant",
		})
		if err != nil || tx != nil {
			t.Errorf("external counterparty: tx=%v err=%v, want nil/nil", tx, err)
		}
	})

	t.Run("missing equity account", func(t *testing.T) {
		userID := uuid.New()
		accounts := newFakeAccountRepo()
		transactions := newFakeTransactionRepo()
		svc := NewTransferReconciliationService(accounts, transactions, NewOpeningBalanceService(accounts, transactions))
		counterparty := mustAccount(t, userID, "Checking", domain.AccountTypeAsset, "1000")
		counterparty.SetIBAN("DE89370400440532013000")

		tx, err := svc.CreateAdjustmentIfNeeded(context.Background(), AdjustmentInput{
			UserID:              userID,
			CounterpartyAccount: counterparty,
			CounterpartyIBAN:    counterparty.IBAN,
			Amount:              domain.MustMoney("10.00", domain.EUR),
			Date:                time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			TransferHash:        "deadbeef",
		})
		if err != nil || tx != nil {
			t.Errorf("missing equity account: tx=%v err=%v, want nil/nil", tx, err)
		}
	})
}
