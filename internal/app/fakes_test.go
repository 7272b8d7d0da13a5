package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
)

// In-memory repository fakes. They implement the store contracts over maps so
// the services can be exercised without a database. Error injection is done
// through the exported err fields.

type fakeAccountRepo struct {
	accounts map[uuid.UUID]*domain.Account
	order    []uuid.UUID
	saveErr  error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[uuid.UUID]*domain.Account{}}
}

func (f *fakeAccountRepo) Save(ctx context.Context, account *domain.Account) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.accounts[account.ID]; !ok {
		f.order = append(f.order, account.ID)
	}
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Account, error) {
	a, ok := f.accounts[id]
	if !ok || a.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccountRepo) FindByNumber(ctx context.Context, userID uuid.UUID, number string) (*domain.Account, error) {
	for _, id := range f.order {
		a := f.accounts[id]
		if a.UserID == userID && a.Number == number && number != "" {
			return a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeAccountRepo) FindByName(ctx context.Context, userID uuid.UUID, name string) (*domain.Account, error) {
	for _, id := range f.order {
		a := f.accounts[id]
		if a.UserID == userID && a.Name == name {
			return a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeAccountRepo) FindByIBAN(ctx context.Context, userID uuid.UUID, iban string) (*domain.Account, error) {
	normalized := domain.NormalizeIBAN(iban)
	for _, id := range f.order {
		a := f.accounts[id]
		if a.UserID == userID && a.IBAN == normalized && normalized != "" {
			return a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeAccountRepo) FindByType(ctx context.Context, userID uuid.UUID, accountType domain.AccountType) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, id := range f.order {
		a := f.accounts[id]
		if a.UserID == userID && a.Type == accountType {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) FindChildren(ctx context.Context, userID, parentID uuid.UUID) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, id := range f.order {
		a := f.accounts[id]
		if a.UserID == userID && a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) FindAll(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, id := range f.order {
		a := f.accounts[id]
		if a.UserID != userID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type fakeTransactionRepo struct {
	transactions map[uuid.UUID]*domain.Transaction
	order        []uuid.UUID
	saveErr      error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{transactions: map[uuid.UUID]*domain.Transaction{}}
}

func (f *fakeTransactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.transactions[tx.ID]; !ok {
		f.order = append(f.order, tx.ID)
	}
	f.transactions[tx.ID] = tx
	return nil
}

func (f *fakeTransactionRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, store.ErrTransactionNotFound
	}
	return tx, nil
}

func (f *fakeTransactionRepo) FindByAccount(ctx context.Context, userID, accountID uuid.UUID) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, id := range f.order {
		tx := f.transactions[id]
		if tx.UserID != userID {
			continue
		}
		for _, e := range tx.Entries {
			if e.AccountID == accountID {
				out = append(out, tx)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) FindByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, id := range f.order {
		tx := f.transactions[id]
		if tx.UserID != userID || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *fakeTransactionRepo) FindByMetadata(ctx context.Context, userID uuid.UUID, key, value string) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, id := range f.order {
		tx := f.transactions[id]
		if tx.UserID != userID {
			continue
		}
		if v, ok := tx.Metadata[key]; ok && v == value {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) Search(ctx context.Context, userID uuid.UUID, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, id := range f.order {
		tx := f.transactions[id]
		if tx.UserID != userID {
			continue
		}
		if filter.From != nil && tx.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.Date.After(*filter.To) {
			continue
		}
		if filter.CounterpartyIBAN != "" && tx.CounterpartyIBAN != domain.NormalizeIBAN(filter.CounterpartyIBAN) {
			continue
		}
		if filter.ExcludeTransfers && tx.InternalTransfer {
			continue
		}
		if filter.AccountID != nil {
			touched := false
			for _, e := range tx.Entries {
				if e.AccountID == *filter.AccountID {
					touched = true
					break
				}
			}
			if !touched {
				continue
			}
		}
		out = append(out, tx)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeTransactionRepo) CountByStatus(ctx context.Context, userID uuid.UUID, status domain.TransactionStatus) (int, error) {
	n := 0
	for _, tx := range f.transactions {
		if tx.UserID == userID && tx.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeTransactionRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tx, ok := f.transactions[id]
	if !ok || tx.UserID != userID {
		return store.ErrTransactionNotFound
	}
	if tx.IsPosted() {
		return domain.ErrTransactionImmutable
	}
	delete(f.transactions, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

type fakeImportRecordRepo struct {
	records map[uuid.UUID]*domain.ImportRecord
	saveErr error
}

func newFakeImportRecordRepo() *fakeImportRecordRepo {
	return &fakeImportRecordRepo{records: map[uuid.UUID]*domain.ImportRecord{}}
}

func (f *fakeImportRecordRepo) Save(ctx context.Context, record *domain.ImportRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeImportRecordRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, store.ErrImportRecordNotFound
	}
	return r, nil
}

func (f *fakeImportRecordRepo) FindByBankTransactionID(ctx context.Context, userID, bankTransactionID uuid.UUID) (*domain.ImportRecord, error) {
	for _, r := range f.records {
		if r.UserID == userID && r.BankTransactionID == bankTransactionID {
			return r, nil
		}
	}
	return nil, store.ErrImportRecordNotFound
}

func (f *fakeImportRecordRepo) FindByTransactionID(ctx context.Context, userID, transactionID uuid.UUID) (*domain.ImportRecord, error) {
	for _, r := range f.records {
		if r.UserID == userID && r.TransactionID != nil && *r.TransactionID == transactionID {
			return r, nil
		}
	}
	return nil, store.ErrImportRecordNotFound
}

func (f *fakeImportRecordRepo) FindByStatus(ctx context.Context, userID uuid.UUID, status domain.ImportStatus) ([]*domain.ImportRecord, error) {
	var out []*domain.ImportRecord
	for _, r := range f.records {
		if r.UserID == userID && r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeImportRecordRepo) CountByStatus(ctx context.Context, userID uuid.UUID, status domain.ImportStatus) (int, error) {
	out, _ := f.FindByStatus(ctx, userID, status)
	return len(out), nil
}

func (f *fakeImportRecordRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return store.ErrImportRecordNotFound
	}
	delete(f.records, id)
	return nil
}

type fakeMappingRepo struct {
	mappings map[string]*domain.AccountMapping
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{mappings: map[string]*domain.AccountMapping{}}
}

func mappingKey(userID uuid.UUID, iban string) string {
	return userID.String() + "/" + domain.NormalizeIBAN(iban)
}

func (f *fakeMappingRepo) Save(ctx context.Context, mapping *domain.AccountMapping) error {
	f.mappings[mappingKey(mapping.UserID, mapping.IBAN)] = mapping
	return nil
}

func (f *fakeMappingRepo) FindByIBAN(ctx context.Context, userID uuid.UUID, iban string) (*domain.AccountMapping, error) {
	m, ok := f.mappings[mappingKey(userID, iban)]
	if !ok || !m.Active {
		return nil, store.ErrMappingNotFound
	}
	return m, nil
}

func (f *fakeMappingRepo) FindAllActive(ctx context.Context, userID uuid.UUID) ([]*domain.AccountMapping, error) {
	var out []*domain.AccountMapping
	for _, m := range f.mappings {
		if m.UserID == userID && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeSession mirrors the ambient-scope semantics of the Postgres session: a
// context marker says "inside a scope" and nested calls join instead of
// re-entering. Scopes counts the outermost entries.
type fakeSession struct {
	Scopes int
}

type fakeScopeKey struct{}

func (s *fakeSession) InTransaction(ctx context.Context) bool {
	return ctx.Value(fakeScopeKey{}) != nil
}

func (s *fakeSession) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}
	s.Scopes++
	return fn(context.WithValue(ctx, fakeScopeKey{}, struct{}{}))
}
