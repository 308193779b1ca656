package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"
)

// mockStore is an in-test implementation of all three store interfaces with
// hooks for injecting failures and stalls.
type mockStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	txs      map[string]*Transaction
	defs     map[string]*RecurringDefinition

	// Failure hooks; a non-nil return fails the corresponding call.
	updateAccountErr func(id string) error
	updateTxErr      func(id string) error
	deleteTxErr      func(id string) error

	// When non-nil, FindTransaction blocks until the channel is closed.
	findTxGate chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: make(map[string]*Account),
		txs:      make(map[string]*Transaction),
		defs:     make(map[string]*RecurringDefinition),
	}
}

func (s *mockStore) FindAccount(ctx context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *mockStore) CreateAccount(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *mockStore) UpdateAccount(ctx context.Context, a *Account) error {
	if s.updateAccountErr != nil {
		if err := s.updateAccountErr(a.ID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return fmt.Errorf("account %s: %w", a.ID, ErrNotFound)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *mockStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}

func (s *mockStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Account
	for _, a := range s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	if s.findTxGate != nil {
		<-s.findTxGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (s *mockStore) CreateTransaction(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.txs[tx.ID] = &cp
	return nil
}

func (s *mockStore) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	if s.updateTxErr != nil {
		if err := s.updateTxErr(tx.ID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	cp := *tx
	s.txs[tx.ID] = &cp
	return nil
}

func (s *mockStore) DeleteTransaction(ctx context.Context, id string) error {
	if s.deleteTxErr != nil {
		if err := s.deleteTxErr(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func (s *mockStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Transaction
	for _, tx := range s.txs {
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
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *mockStore) FindDefinition(ctx context.Context, id string) (*RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return nil, fmt.Errorf("recurring definition %s: %w", id, ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *mockStore) CreateDefinition(ctx context.Context, d *RecurringDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.defs[d.ID] = &cp
	return nil
}

func (s *mockStore) UpdateDefinition(ctx context.Context, d *RecurringDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[d.ID]; !ok {
		return fmt.Errorf("recurring definition %s: %w", d.ID, ErrNotFound)
	}
	cp := *d
	s.defs[d.ID] = &cp
	return nil
}

func (s *mockStore) DeleteDefinition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[id]; !ok {
		return fmt.Errorf("recurring definition %s: %w", id, ErrNotFound)
	}
	delete(s.defs, id)
	return nil
}

func (s *mockStore) ListDefinitions(ctx context.Context) ([]*RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*RecurringDefinition
	for _, d := range s.defs {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var (
	_ AccountStore     = (*mockStore)(nil)
	_ TransactionStore = (*mockStore)(nil)
	_ RecurringStore   = (*mockStore)(nil)
)

// fakeClock is a fixed-time Clock for deterministic recurrence tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// mockPrompt answers every confirmation with a fixed response.
type mockPrompt struct {
	answer bool
	asked  int
}

func (p *mockPrompt) Confirm(ctx context.Context, title, message string) (bool, error) {
	p.asked++
	return p.answer, nil
}

func mustBalance(t *testing.T, store *mockStore, accountID string, want float64) {
	t.Helper()
	a, err := store.FindAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("FindAccount(%s) failed: %v", accountID, err)
	}
	if math.Abs(a.Balance-want) > 1e-9 {
		t.Errorf("account %s balance = %v, want %v", accountID, a.Balance, want)
	}
}

// checkLedgerInvariant verifies that every stored balance equals its opening
// balance plus the sum of cleared-transaction deltas touching the account.
func checkLedgerInvariant(t *testing.T, store *mockStore, opening map[string]float64) {
	t.Helper()
	ctx := context.Background()

	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	txs, err := store.ListTransactions(ctx, TransactionFilter{ClearedOnly: true})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}

	for _, a := range accounts {
		want := opening[a.ID]
		for _, tx := range txs {
			want += Delta(tx, a.ID, false)
		}
		if math.Abs(a.Balance-want) > 1e-9 {
			t.Errorf("invariant broken for account %s: balance = %v, recomputed = %v", a.ID, a.Balance, want)
		}
	}
}
