package ledger

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/logger"
)

// Cascade unwinds an account's transactions before deleting the account
// itself. User-initiated deletions are gated on the confirmation prompt.
type Cascade struct {
	engine   *Engine
	accounts AccountStore
	txs      TransactionStore
	prompt   ConfirmationPrompt
}

// NewCascade creates a deletion coordinator. prompt may be nil, in which case
// deletions proceed without confirmation (e.g. non-interactive callers).
func NewCascade(engine *Engine, accounts AccountStore, txs TransactionStore, prompt ConfirmationPrompt) *Cascade {
	return &Cascade{
		engine:   engine,
		accounts: accounts,
		txs:      txs,
		prompt:   prompt,
	}
}

// DeleteAccount removes the account and every transaction charged to or
// targeting it. Cleared transactions are reversed first, so a transfer whose
// counterpart account survives has that counterpart's balance corrected.
//
// Failures are collected rather than rolled back: the returned
// PartialCascadeError names the transaction IDs still standing, and the
// account record is only deleted once none remain. Retrying the deletion
// retries just the leftovers.
func (c *Cascade) DeleteAccount(ctx context.Context, accountID string) error {
	account, err := c.accounts.FindAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", accountID, err)
	}

	if c.prompt != nil {
		ok, err := c.prompt.Confirm(ctx, "Delete account?",
			fmt.Sprintf("Delete %q and all of its transactions?", account.Name))
		if err != nil {
			return fmt.Errorf("delete account %s: confirmation: %w", accountID, err)
		}
		if !ok {
			return fmt.Errorf("delete account %s: %w", accountID, ErrAborted)
		}
	}

	txs, err := c.txs.ListTransactions(ctx, TransactionFilter{AccountID: accountID})
	if err != nil {
		return fmt.Errorf("delete account %s: list transactions: %w", accountID, err)
	}

	log := logger.FromContext(ctx)
	var failed []string
	var errs []error
	for _, tx := range txs {
		if err := c.engine.Delete(ctx, tx.ID); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", tx.ID).
				Str("account_id", accountID).
				Msg("cascade deletion: transaction not removed")
			failed = append(failed, tx.ID)
			errs = append(errs, err)
		}
	}

	if len(failed) > 0 {
		return &PartialCascadeError{
			AccountID: accountID,
			FailedIDs: failed,
			Errs:      errs,
		}
	}

	if err := c.accounts.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("delete account %s: %w: %v", accountID, ErrPersistence, err)
	}

	log.Info().
		Str("account_id", accountID).
		Int("transactions_removed", len(txs)).
		Msg("account deleted")
	return nil
}
