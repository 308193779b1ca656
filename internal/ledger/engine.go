package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/logger"
)

// Engine applies and reverses the balance effect of transactions. All account
// balance writes in the system go through here.
//
// Both Apply and Remove are idempotent against the Cleared flag: applying an
// already-cleared transaction or removing a never-cleared one is a no-op.
// Transfers mutate the target account leg first, mirroring the charged leg on
// removal, and the cleared flag is always the last write — a failure anywhere
// earlier leaves the transaction correctly marked not-yet-cleared and the
// call safely retryable.
type Engine struct {
	accounts AccountStore
	txs      TransactionStore

	locks    *lockTable
	inflight *inflightSet

	listenerMu sync.RWMutex
	listeners  []BalanceListener
}

// NewEngine creates an engine over the given stores.
func NewEngine(accounts AccountStore, txs TransactionStore) *Engine {
	return &Engine{
		accounts: accounts,
		txs:      txs,
		locks:    newLockTable(),
		inflight: newInflightSet(),
	}
}

// OnBalanceChanged registers a listener invoked after every committed balance
// write.
func (e *Engine) OnBalanceChanged(l BalanceListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) notifyBalance(accountID string, oldBalance, newBalance float64) {
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	for _, l := range e.listeners {
		l(accountID, oldBalance, newBalance)
	}
}

// beginOp registers an in-flight operation for the transaction and returns
// the function ending it. A second operation against the same transaction is
// rejected with ErrInFlight.
func (e *Engine) beginOp(txID string) (func(), error) {
	if !e.inflight.begin(txID) {
		return nil, fmt.Errorf("transaction %s: %w", txID, ErrInFlight)
	}
	return func() { e.inflight.end(txID) }, nil
}

// Apply clears the transaction and folds its effect into the affected
// account balances. A transaction that is already cleared, or that does not
// request immediate clearing, is left untouched.
func (e *Engine) Apply(ctx context.Context, txID string) error {
	done, err := e.beginOp(txID)
	if err != nil {
		return err
	}
	defer done()

	return e.apply(ctx, txID)
}

// ApplyAsync runs Apply on a background goroutine and reports completion on
// the returned channel. A duplicate in-flight operation is rejected
// synchronously.
func (e *Engine) ApplyAsync(ctx context.Context, txID string) <-chan error {
	ch := make(chan error, 1)

	done, err := e.beginOp(txID)
	if err != nil {
		ch <- err
		close(ch)
		return ch
	}

	go func() {
		defer done()
		ch <- e.apply(ctx, txID)
		close(ch)
	}()
	return ch
}

func (e *Engine) apply(ctx context.Context, txID string) error {
	tx, err := e.txs.FindTransaction(ctx, txID)
	if err != nil {
		return fmt.Errorf("apply: load transaction %s: %w", txID, err)
	}
	if err := ValidateTransaction(tx); err != nil {
		return fmt.Errorf("apply transaction %s: %w", txID, err)
	}

	// Idempotence: a second Apply without an intervening Remove is a no-op.
	if tx.Cleared {
		return nil
	}
	// A pending transaction has no balance effect until it is cleared.
	if !tx.ClearNow {
		return nil
	}

	unlock := e.locks.lockAccounts(tx.ChargedAccountID, tx.TargetAccountID)
	defer unlock()

	// Resolve every affected account before mutating anything; a transfer
	// whose target is missing must abort without touching the charged leg.
	charged, err := e.accounts.FindAccount(ctx, tx.ChargedAccountID)
	if err != nil {
		return fmt.Errorf("apply transaction %s: resolve charged account %s: %w",
			txID, tx.ChargedAccountID, err)
	}
	var target *Account
	if tx.IsTransfer() {
		target, err = e.accounts.FindAccount(ctx, tx.TargetAccountID)
		if err != nil {
			return fmt.Errorf("apply transaction %s: resolve target account %s: %w",
				txID, tx.TargetAccountID, err)
		}
	}

	if target != nil {
		if err := e.shiftBalance(ctx, target, Delta(tx, target.ID, false)); err != nil {
			return fmt.Errorf("apply transaction %s: target leg: %w", txID, err)
		}
	}
	if err := e.shiftBalance(ctx, charged, Delta(tx, charged.ID, false)); err != nil {
		return fmt.Errorf("apply transaction %s: charged leg: %w", txID, err)
	}

	tx.Cleared = true
	if err := e.txs.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("apply transaction %s: persist cleared flag: %w: %v",
			txID, ErrPersistence, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("transaction_id", tx.ID).
		Str("kind", string(tx.Kind)).
		Float64("amount", tx.Amount).
		Msg("transaction cleared")
	return nil
}

// Remove reverses the balance effect of a cleared transaction and marks it
// pending again. Removing a never-cleared transaction is a no-op.
func (e *Engine) Remove(ctx context.Context, txID string) error {
	done, err := e.beginOp(txID)
	if err != nil {
		return err
	}
	defer done()

	return e.remove(ctx, txID)
}

// RemoveAsync runs Remove on a background goroutine; see ApplyAsync.
func (e *Engine) RemoveAsync(ctx context.Context, txID string) <-chan error {
	ch := make(chan error, 1)

	done, err := e.beginOp(txID)
	if err != nil {
		ch <- err
		close(ch)
		return ch
	}

	go func() {
		defer done()
		ch <- e.remove(ctx, txID)
		close(ch)
	}()
	return ch
}

func (e *Engine) remove(ctx context.Context, txID string) error {
	tx, err := e.txs.FindTransaction(ctx, txID)
	if err != nil {
		return fmt.Errorf("remove: load transaction %s: %w", txID, err)
	}

	// Removing a never-applied transaction must not touch balances.
	if !tx.Cleared {
		return nil
	}

	unlock := e.locks.lockAccounts(tx.ChargedAccountID, tx.TargetAccountID)
	defer unlock()

	charged, err := e.accounts.FindAccount(ctx, tx.ChargedAccountID)
	if err != nil {
		return fmt.Errorf("remove transaction %s: resolve charged account %s: %w",
			txID, tx.ChargedAccountID, err)
	}
	var target *Account
	if tx.IsTransfer() {
		target, err = e.accounts.FindAccount(ctx, tx.TargetAccountID)
		if err != nil {
			return fmt.Errorf("remove transaction %s: resolve target account %s: %w",
				txID, tx.TargetAccountID, err)
		}
	}

	// Target leg first, inverse of Apply's ordering on the way in.
	if target != nil {
		if err := e.shiftBalance(ctx, target, Delta(tx, target.ID, true)); err != nil {
			return fmt.Errorf("remove transaction %s: target leg: %w", txID, err)
		}
	}
	if err := e.shiftBalance(ctx, charged, Delta(tx, charged.ID, true)); err != nil {
		return fmt.Errorf("remove transaction %s: charged leg: %w", txID, err)
	}

	tx.Cleared = false
	if err := e.txs.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("remove transaction %s: persist cleared flag: %w: %v",
			txID, ErrPersistence, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("transaction_id", tx.ID).
		Msg("transaction uncleared")
	return nil
}

// shiftBalance moves one account's balance by delta and persists it. The
// caller holds the account's lock.
func (e *Engine) shiftBalance(ctx context.Context, account *Account, delta float64) error {
	old := account.Balance
	account.Balance += delta
	if err := e.accounts.UpdateAccount(ctx, account); err != nil {
		account.Balance = old
		return fmt.Errorf("persist account %s: %w: %v", account.ID, ErrPersistence, err)
	}
	e.notifyBalance(account.ID, old, account.Balance)
	return nil
}

// Edit replaces a transaction's stored state with updated. Editing a cleared
// transaction reverses the old state and re-applies the new one; balances are
// never adjusted in place, so the ledger invariant survives kind and account
// changes.
func (e *Engine) Edit(ctx context.Context, updated *Transaction) error {
	if err := ValidateTransaction(updated); err != nil {
		return fmt.Errorf("edit transaction %s: %w", updated.ID, err)
	}

	done, err := e.beginOp(updated.ID)
	if err != nil {
		return err
	}
	defer done()

	old, err := e.txs.FindTransaction(ctx, updated.ID)
	if err != nil {
		return fmt.Errorf("edit: load transaction %s: %w", updated.ID, err)
	}

	wasCleared := old.Cleared
	if wasCleared {
		if err := e.remove(ctx, old.ID); err != nil {
			return err
		}
	}

	// A previously cleared transaction stays cleared after the edit.
	updated.Cleared = false
	if wasCleared {
		updated.ClearNow = true
	}
	if err := e.txs.UpdateTransaction(ctx, updated); err != nil {
		return fmt.Errorf("edit transaction %s: persist new state: %w: %v",
			updated.ID, ErrPersistence, err)
	}

	if updated.ClearNow {
		return e.apply(ctx, updated.ID)
	}
	return nil
}

// Delete removes the transaction record, reversing its balance effect first
// if it is cleared.
func (e *Engine) Delete(ctx context.Context, txID string) error {
	done, err := e.beginOp(txID)
	if err != nil {
		return err
	}
	defer done()

	if err := e.remove(ctx, txID); err != nil {
		return err
	}
	if err := e.txs.DeleteTransaction(ctx, txID); err != nil {
		return fmt.Errorf("delete transaction %s: %w: %v", txID, ErrPersistence, err)
	}
	return nil
}

// ValidateTransaction rejects transactions that would break ledger
// invariants before anything is mutated.
func ValidateTransaction(tx *Transaction) error {
	if tx.Amount <= 0 || math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return fmt.Errorf("%w: amount must be a positive finite number, got %v",
			ErrInvariant, tx.Amount)
	}
	if tx.ChargedAccountID == "" {
		return fmt.Errorf("%w: charged account is required", ErrInvariant)
	}
	switch tx.Kind {
	case KindIncome, KindExpense:
		if tx.TargetAccountID != "" {
			return fmt.Errorf("%w: target account is only valid for transfers", ErrInvariant)
		}
	case KindTransfer:
		if tx.TargetAccountID == "" {
			return fmt.Errorf("%w: transfer requires a target account", ErrInvariant)
		}
		if tx.TargetAccountID == tx.ChargedAccountID {
			return fmt.Errorf("%w: transfer accounts must be distinct", ErrInvariant)
		}
	default:
		return fmt.Errorf("%w: unknown transaction kind %q", ErrInvariant, tx.Kind)
	}
	return nil
}
