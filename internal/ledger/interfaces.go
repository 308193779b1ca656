package ledger

import (
	"context"
	"time"
)

// AccountStore is the persistence collaborator for accounts. Implementations
// must be safe for concurrent use; the engine serializes writes per account
// but reads may happen from anywhere.
type AccountStore interface {
	// FindAccount retrieves an account by ID. Returns ErrNotFound if absent.
	FindAccount(ctx context.Context, id string) (*Account, error)

	// CreateAccount stores a new account.
	CreateAccount(ctx context.Context, account *Account) error

	// UpdateAccount persists the account's current state.
	UpdateAccount(ctx context.Context, account *Account) error

	// DeleteAccount removes the account record.
	DeleteAccount(ctx context.Context, id string) error

	// ListAccounts returns all accounts.
	ListAccounts(ctx context.Context) ([]*Account, error)
}

// TransactionFilter narrows a transaction listing. Zero values mean "no
// constraint".
type TransactionFilter struct {
	// AccountID matches transactions where the account is charged or target.
	AccountID string

	// RecurringID matches transactions materialized from a definition.
	RecurringID string

	// ClearedOnly keeps only cleared transactions.
	ClearedOnly bool
}

// TransactionStore is the persistence collaborator for transactions.
type TransactionStore interface {
	// FindTransaction retrieves a transaction by ID. Returns ErrNotFound if
	// absent.
	FindTransaction(ctx context.Context, id string) (*Transaction, error)

	// CreateTransaction stores a new transaction.
	CreateTransaction(ctx context.Context, tx *Transaction) error

	// UpdateTransaction persists the transaction's current state.
	UpdateTransaction(ctx context.Context, tx *Transaction) error

	// DeleteTransaction removes the transaction record.
	DeleteTransaction(ctx context.Context, id string) error

	// ListTransactions returns transactions matching the filter.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
}

// RecurringStore is the persistence collaborator for recurring definitions.
type RecurringStore interface {
	// FindDefinition retrieves a definition by ID. Returns ErrNotFound if
	// absent.
	FindDefinition(ctx context.Context, id string) (*RecurringDefinition, error)

	// CreateDefinition stores a new definition.
	CreateDefinition(ctx context.Context, def *RecurringDefinition) error

	// UpdateDefinition persists the definition's current state.
	UpdateDefinition(ctx context.Context, def *RecurringDefinition) error

	// DeleteDefinition removes the definition record. Already-materialized
	// transactions are kept.
	DeleteDefinition(ctx context.Context, id string) error

	// ListDefinitions returns all definitions.
	ListDefinitions(ctx context.Context) ([]*RecurringDefinition, error)
}

// Clock abstracts time so recurrence processing is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the ambient system time.
type SystemClock struct{}

// Now implements the Clock interface.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ConfirmationPrompt asks the user to confirm a destructive operation. A
// false answer means "abort, no mutation".
type ConfirmationPrompt interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

// BalanceListener observes committed balance changes. Called after the store
// write succeeded, under the engine's per-account lock.
type BalanceListener func(accountID string, oldBalance, newBalance float64)

var _ Clock = SystemClock{}
