// Package inmemory provides in-memory implementations of the ledger stores.
// Data is lost on restart - for persistence, use the postgres store.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// Store is an in-memory implementation of the account, transaction and
// recurring-definition stores. It is safe for concurrent use and backs tests
// and database-less runs of the CLI.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*ledger.Account
	txs      map[string]*ledger.Transaction
	defs     map[string]*ledger.RecurringDefinition
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*ledger.Account),
		txs:      make(map[string]*ledger.Transaction),
		defs:     make(map[string]*ledger.RecurringDefinition),
	}
}

// FindAccount implements the AccountStore interface.
func (s *Store) FindAccount(ctx context.Context, id string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}

	// Return a copy to avoid external modifications
	cp := *account
	return &cp, nil
}

// CreateAccount implements the AccountStore interface.
func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if account.ID == "" {
		return fmt.Errorf("account ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

// UpdateAccount implements the AccountStore interface.
func (s *Store) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; !exists {
		return fmt.Errorf("account %s: %w", account.ID, ledger.ErrNotFound)
	}

	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

// DeleteAccount implements the AccountStore interface.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; !exists {
		return fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}

// ListAccounts implements the AccountStore interface. Accounts are returned
// sorted by ID for deterministic output.
func (s *Store) ListAccounts(ctx context.Context) ([]*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ledger.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		cp := *account
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// FindTransaction implements the TransactionStore interface.
func (s *Store) FindTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.txs[id]
	if !exists {
		return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}

	cp := *tx
	return &cp, nil
}

// CreateTransaction implements the TransactionStore interface.
func (s *Store) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	s.txs[tx.ID] = &cp
	return nil
}

// UpdateTransaction implements the TransactionStore interface.
func (s *Store) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; !exists {
		return fmt.Errorf("transaction %s: %w", tx.ID, ledger.ErrNotFound)
	}

	cp := *tx
	s.txs[tx.ID] = &cp
	return nil
}

// DeleteTransaction implements the TransactionStore interface.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[id]; !exists {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

// ListTransactions implements the TransactionStore interface. Results are
// sorted by occurrence date, then ID.
func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ledger.Transaction
	for _, tx := range s.txs {
		// Apply filters
		if filter.AccountID != "" &&
			tx.ChargedAccountID != filter.AccountID && tx.TargetAccountID != filter.AccountID {
			continue
		}
		if filter.RecurringID != "" && tx.RecurringID != filter.RecurringID {
			continue
		}
		if filter.ClearedOnly && !tx.Cleared {
			continue
		}

		cp := *tx
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// FindDefinition implements the RecurringStore interface.
func (s *Store) FindDefinition(ctx context.Context, id string) (*ledger.RecurringDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[id]
	if !exists {
		return nil, fmt.Errorf("recurring definition %s: %w", id, ledger.ErrNotFound)
	}

	cp := *def
	return &cp, nil
}

// CreateDefinition implements the RecurringStore interface.
func (s *Store) CreateDefinition(ctx context.Context, def *ledger.RecurringDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("recurring definition ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *def
	s.defs[def.ID] = &cp
	return nil
}

// UpdateDefinition implements the RecurringStore interface.
func (s *Store) UpdateDefinition(ctx context.Context, def *ledger.RecurringDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID]; !exists {
		return fmt.Errorf("recurring definition %s: %w", def.ID, ledger.ErrNotFound)
	}

	cp := *def
	s.defs[def.ID] = &cp
	return nil
}

// DeleteDefinition implements the RecurringStore interface. Transactions
// already materialized from the definition are kept.
func (s *Store) DeleteDefinition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[id]; !exists {
		return fmt.Errorf("recurring definition %s: %w", id, ledger.ErrNotFound)
	}
	delete(s.defs, id)
	return nil
}

// ListDefinitions implements the RecurringStore interface.
func (s *Store) ListDefinitions(ctx context.Context) ([]*ledger.RecurringDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ledger.RecurringDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		cp := *def
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Ensure Store implements the ledger store interfaces.
var (
	_ ledger.AccountStore     = (*Store)(nil)
	_ ledger.TransactionStore = (*Store)(nil)
	_ ledger.RecurringStore   = (*Store)(nil)
)
