/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application services, and writing the HTTP response. They act as
 * the bridge between the web layer and the business logic layer.
 *
 * Requests are scoped to a user through the X-User-ID header; authentication is
 * terminated upstream of this service.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/rabbitmq: Import event publishing.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/app"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
	"github.com/kontoflow/ledger-service/pkg/rabbitmq"
	"github.com/shopspring/decimal"
)

// userIDHeader carries the already-authenticated caller identity.
const userIDHeader = "X-User-ID"

// LedgerHandlers holds the application services that handlers will use.
type LedgerHandlers struct {
	accounts         store.AccountRepository
	transactions     store.TransactionRepository
	imports          store.ImportRecordRepository
	bankTransactions store.BankTransactionStore
	bankAccounts     app.BankAccountImporter
	balances         *app.AccountBalanceService
	opening          *app.OpeningBalanceService
	importer         *app.TransactionImportService
	publisher        rabbitmq.Publisher
	importEventQueue string
	maxBatchItems    int
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(
	accounts store.AccountRepository,
	transactions store.TransactionRepository,
	imports store.ImportRecordRepository,
	bankTransactions store.BankTransactionStore,
	bankAccounts app.BankAccountImporter,
	balances *app.AccountBalanceService,
	opening *app.OpeningBalanceService,
	importer *app.TransactionImportService,
	publisher rabbitmq.Publisher,
	importEventQueue string,
	maxBatchItems int,
) *LedgerHandlers {
	return &LedgerHandlers{
		accounts:         accounts,
		transactions:     transactions,
		imports:          imports,
		bankTransactions: bankTransactions,
		bankAccounts:     bankAccounts,
		balances:         balances,
		opening:          opening,
		importer:         importer,
		publisher:        publisher,
		importEventQueue: importEventQueue,
		maxBatchItems:    maxBatchItems,
	}
}

// bankTransactionPayload is one raw bank transaction in an import request.
type bankTransactionPayload struct {
	BookingDate       string `json:"booking_date"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Purpose           string `json:"purpose"`
	CounterpartyName  string `json:"counterparty_name"`
	CounterpartyIBAN  string `json:"counterparty_iban"`
	EndToEndReference string `json:"end_to_end_reference"`
}

// importBatchRequest is the body of POST /v1/import/batches. CurrentBalance is
// optional; when present and the account has no opening balance yet, one is
// back-calculated and booked before the batch is imported.
type importBatchRequest struct {
	AccountIBAN    string                   `json:"account_iban"`
	Currency       string                   `json:"currency"`
	CurrentBalance string                   `json:"current_balance,omitempty"`
	Transactions   []bankTransactionPayload `json:"transactions"`
}

type importBatchResponse struct {
	AccountIBAN   string           `json:"account_iban"`
	StoredNew     int              `json:"stored_new"`
	OpeningBooked bool             `json:"opening_balance_booked"`
	Summary       app.BatchSummary `json:"summary"`
}

func (p bankTransactionPayload) toDomain() (domain.BankTransaction, error) {
	date, err := time.Parse("2006-01-02", p.BookingDate)
	if err != nil {
		return domain.BankTransaction{}, domain.NewValidationError("invalid booking_date %q: expected YYYY-MM-DD", p.BookingDate)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(p.Amount))
	if err != nil {
		return domain.BankTransaction{}, domain.NewValidationError("invalid amount %q", p.Amount)
	}
	currency, err := domain.ParseCurrency(p.Currency)
	if err != nil {
		return domain.BankTransaction{}, err
	}
	return domain.BankTransaction{
		BookingDate:       date,
		Amount:            amount,
		Currency:          currency,
		Purpose:           p.Purpose,
		CounterpartyName:  p.CounterpartyName,
		CounterpartyIBAN:  p.CounterpartyIBAN,
		EndToEndReference: p.EndToEndReference,
	}, nil
}

// ImportBatchHandler accepts a batch of raw bank transactions, deduplicates and
// stores them, books an opening balance on first contact, and runs the
// accounting-side import. The batch result is always partial-failure: the
// response carries a per-item status breakdown.
func (h *LedgerHandlers) ImportBatchHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req importBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=import_batch outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	iban := domain.NormalizeIBAN(req.AccountIBAN)
	if iban == "" {
		h.writeError(w, http.StatusBadRequest, "account_iban is required")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.maxBatchItems > 0 && len(req.Transactions) > h.maxBatchItems {
		h.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("batch exceeds the %d item limit", h.maxBatchItems))
		return
	}

	batch := make([]domain.BankTransaction, 0, len(req.Transactions))
	for i, payload := range req.Transactions {
		btx, err := payload.toDomain()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("transactions[%d]: %v", i, err))
			return
		}
		batch = append(batch, btx)
	}

	stored, err := h.bankTransactions.SaveBatchWithDeduplication(r.Context(), batch, iban)
	if err != nil {
		log.Printf("level=error component=api endpoint=import_batch outcome=failed stage=dedup user_id=%s err=%v", userID, err)
		h.writeDomainError(w, err)
		return
	}
	storedNew := 0
	for _, item := range stored {
		if item.IsNew {
			storedNew++
		}
	}

	openingBooked, err := h.bookOpeningBalanceIfFirstContact(r, userID, iban, currency, req.CurrentBalance, batch)
	if err != nil {
		log.Printf("level=error component=api endpoint=import_batch outcome=failed stage=opening_balance user_id=%s iban=%s err=%v", userID, iban, err)
		h.writeDomainError(w, err)
		return
	}

	summary, err := h.importer.ImportBatch(r.Context(), userID, stored)
	if err != nil {
		log.Printf("level=error component=api endpoint=import_batch outcome=failed stage=import user_id=%s err=%v", userID, err)
		h.writeDomainError(w, err)
		return
	}

	// Downstream consumers only need the outcome; publishing is best effort.
	event := rabbitmq.ImportEvent{
		UserID:      userID,
		AccountIBAN: iban,
		Fetched:     summary.Fetched,
		Imported:    summary.Imported,
		Duplicates:  summary.Duplicates,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.publisher.PublishImportEvent(r.Context(), h.importEventQueue, event); err != nil {
		log.Printf("level=warn component=api endpoint=import_batch msg=\"import event publish failed\" user_id=%s err=%v", userID, err)
	}

	h.writeJSON(w, http.StatusOK, importBatchResponse{
		AccountIBAN:   iban,
		StoredNew:     storedNew,
		OpeningBooked: openingBooked,
		Summary:       summary,
	})
}

// bookOpeningBalanceIfFirstContact back-calculates and persists the opening
// balance when the caller supplied the account's current balance and no opening
// balance exists yet for the IBAN. A zero opening balance books nothing.
func (h *LedgerHandlers) bookOpeningBalanceIfFirstContact(r *http.Request, userID uuid.UUID, iban string, currency domain.Currency, currentBalance string, batch []domain.BankTransaction) (bool, error) {
	if strings.TrimSpace(currentBalance) == "" {
		return false, nil
	}
	_, err := h.opening.FindOpeningBalanceTransaction(r.Context(), userID, iban)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrTransactionNotFound) {
		return false, err
	}

	current, err := domain.NewMoneyFromString(currentBalance, currency)
	if err != nil {
		return false, err
	}
	asset, err := h.bankAccounts.EnsureAccount(r.Context(), userID, iban, currency)
	if err != nil {
		return false, err
	}
	equity, err := h.opening.EnsureOpeningBalanceAccount(r.Context(), userID, currency)
	if err != nil {
		return false, err
	}
	amount, err := h.opening.CalculateOpeningBalance(current, batch)
	if err != nil {
		return false, err
	}

	// The opening balance marks the start of the imported window: it is dated
	// at the earliest booking date in the batch.
	date := time.Now().UTC().Truncate(24 * time.Hour)
	for _, btx := range batch {
		if btx.BookingDate.Before(date) {
			date = btx.BookingDate
		}
	}

	tx, err := h.opening.CreateOpeningBalanceTransaction(asset, equity, amount, date, iban, userID)
	if err != nil || tx == nil {
		return false, err
	}
	if err := h.transactions.Save(r.Context(), tx); err != nil {
		return false, err
	}
	log.Printf("level=info component=api endpoint=import_batch msg=\"opening balance booked\" user_id=%s iban=%s amount=%s", userID, iban, amount)
	return true, nil
}

type balanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	RolledUp  bool      `json:"rolled_up"`
}

// AccountBalanceHandler returns one account's balance. Query parameters:
// include_children=true rolls descendants up, include_drafts=true folds drafts
// in, as_of=YYYY-MM-DD cuts the calculation off at a date.
func (h *LedgerHandlers) AccountBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}
	account, err := h.accounts.FindByID(r.Context(), userID, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	opts := app.BalanceOptions{IncludeDrafts: r.URL.Query().Get("include_drafts") == "true"}
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid as_of date, expected YYYY-MM-DD")
			return
		}
		opts.AsOf = &asOf
	}

	transactions, err := h.transactions.FindByAccount(r.Context(), userID, accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	rollUp := r.URL.Query().Get("include_children") == "true"
	var balance domain.Money
	if rollUp {
		// Descendant entries live on other transactions; roll-up needs the
		// whole transaction set.
		transactions, err = h.transactions.Search(r.Context(), userID, store.TransactionFilter{})
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		balance, err = h.balances.CalculateBalanceWithChildren(r.Context(), account, transactions, opts)
	} else {
		balance, err = h.balances.CalculateBalance(account, transactions, opts)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: account.ID,
		Name:      account.Name,
		Balance:   balance.Amount().StringFixed(2),
		Currency:  string(balance.Currency()),
		RolledUp:  rollUp,
	})
}

type trialBalanceLineResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Number    string    `json:"number,omitempty"`
	Type      string    `json:"type"`
	Signed    string    `json:"signed_balance"`
	Currency  string    `json:"currency"`
}

type trialBalanceResponse struct {
	Lines    []trialBalanceLineResponse `json:"lines"`
	Totals   map[string]string          `json:"totals"`
	Balanced bool                       `json:"balanced"`
}

// TrialBalanceHandler returns the signed per-account balances and per-currency
// grand totals. include_drafts=true folds drafts in.
func (h *LedgerHandlers) TrialBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	opts := app.BalanceOptions{IncludeDrafts: r.URL.Query().Get("include_drafts") == "true"}

	transactions, err := h.transactions.Search(r.Context(), userID, store.TransactionFilter{})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	tb, err := h.balances.GetTrialBalance(r.Context(), userID, transactions, opts)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := trialBalanceResponse{Totals: map[string]string{}, Balanced: tb.Balanced()}
	for _, line := range tb.Lines {
		resp.Lines = append(resp.Lines, trialBalanceLineResponse{
			AccountID: line.Account.ID,
			Name:      line.Account.Name,
			Number:    line.Account.Number,
			Type:      string(line.Account.Type),
			Signed:    line.Signed.Amount().StringFixed(2),
			Currency:  string(line.Signed.Currency()),
		})
	}
	for currency, total := range tb.Totals {
		resp.Totals[string(currency)] = total.StringFixed(2)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type importRecordResponse struct {
	ID                uuid.UUID  `json:"id"`
	BankTransactionID uuid.UUID  `json:"bank_transaction_id"`
	Status            string     `json:"status"`
	TransactionID     *uuid.UUID `json:"transaction_id,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	ImportedAt        *time.Time `json:"imported_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ListImportRecordsHandler lists import records filtered by ?status=. The
// status filter is required; unfiltered listing across all statuses is not
// exposed.
func (h *LedgerHandlers) ListImportRecordsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	var status domain.ImportStatus
	switch domain.ImportStatus(raw) {
	case domain.ImportPending, domain.ImportSuccess, domain.ImportFailed, domain.ImportDuplicate, domain.ImportSkipped:
		status = domain.ImportStatus(raw)
	default:
		h.writeError(w, http.StatusBadRequest, "status must be one of pending, success, failed, duplicate, skipped")
		return
	}

	records, err := h.imports.FindByStatus(r.Context(), userID, status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := make([]importRecordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, importRecordResponse{
			ID:                record.ID,
			BankTransactionID: record.BankTransactionID,
			Status:            string(record.Status),
			TransactionID:     record.TransactionID,
			ErrorMessage:      record.ErrorMessage,
			ImportedAt:        record.ImportedAt,
			UpdatedAt:         record.UpdatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// userID extracts and validates the caller identity header.
func (h *LedgerHandlers) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid X-User-ID header format")
		return uuid.Nil, false
	}
	return userID, true
}

// writeDomainError maps a domain error kind onto an HTTP status.
func (h *LedgerHandlers) writeDomainError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.KindNotFound:
		h.writeError(w, http.StatusNotFound, err.Error())
	case domain.KindBusinessRule:
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case domain.KindConflict:
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
