/**
 * @description
 * PostgresStore is the PostgreSQL implementation of every repository interface
 * plus the Session capability. One struct implements them all so a single
 * instance can be handed to each service and the ambient transaction scope is
 * shared: repository calls made inside WithinTransaction automatically run on
 * the scope's pgx.Tx instead of the pool.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver, pooling and transactions.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements AccountRepository, TransactionRepository,
// BankTransactionStore, ImportRecordRepository, AccountMappingRepository and
// Session on top of a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Accounts returns the AccountRepository view of the store.
func (s *PostgresStore) Accounts() *PostgresAccountRepository {
	return &PostgresAccountRepository{PostgresStore: s}
}

// Transactions returns the TransactionRepository view of the store.
func (s *PostgresStore) Transactions() *PostgresTransactionRepository {
	return &PostgresTransactionRepository{PostgresStore: s}
}

// BankTransactions returns the BankTransactionStore view of the store.
func (s *PostgresStore) BankTransactions() *PostgresBankTransactionStore {
	return &PostgresBankTransactionStore{PostgresStore: s}
}

// ImportRecords returns the ImportRecordRepository view of the store.
func (s *PostgresStore) ImportRecords() *PostgresImportRecordRepository {
	return &PostgresImportRecordRepository{PostgresStore: s}
}

// Mappings returns the AccountMappingRepository view of the store.
func (s *PostgresStore) Mappings() *PostgresAccountMappingRepository {
	return &PostgresAccountMappingRepository{PostgresStore: s}
}

// dbtx is the query surface shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

// querier returns the ambient pgx.Tx when the context carries one, otherwise
// the pool.
func (s *PostgresStore) querier(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.db
}

// InTransaction reports whether ctx already carries an atomic scope.
func (s *PostgresStore) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return ok
}

// WithinTransaction runs fn atomically. When ctx is already inside a scope the
// function simply joins it — no nested transaction is started and commit or
// rollback stays with the outermost caller.
func (s *PostgresStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txContextKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
