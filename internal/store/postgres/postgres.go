// Package postgres provides pgx-backed implementations of the ledger stores.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// Store implements the ledger stores on top of a Postgres database.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool against the given DSN and verifies it with
// a ping.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ensure Store implements the ledger store interfaces.
var (
	_ ledger.AccountStore     = (*Store)(nil)
	_ ledger.TransactionStore = (*Store)(nil)
	_ ledger.RecurringStore   = (*Store)(nil)
)
