package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

const transactionColumns = `
	id, kind, amount, charged_account_id, target_account_id,
	cleared, clear_now, occurred_on, recurring_id, note`

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	tx := &ledger.Transaction{}
	var targetID, recurringID *string
	err := row.Scan(
		&tx.ID,
		&tx.Kind,
		&tx.Amount,
		&tx.ChargedAccountID,
		&targetID,
		&tx.Cleared,
		&tx.ClearNow,
		&tx.Date,
		&recurringID,
		&tx.Note,
	)
	if err != nil {
		return nil, err
	}
	if targetID != nil {
		tx.TargetAccountID = *targetID
	}
	if recurringID != nil {
		tx.RecurringID = *recurringID
	}
	return tx, nil
}

// nullable maps "" to NULL so optional references stay NULL in the schema.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FindTransaction implements the TransactionStore interface.
func (s *Store) FindTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1`

	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("find transaction %s: %w", id, err)
	}
	return tx, nil
}

// CreateTransaction implements the TransactionStore interface.
func (s *Store) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		tx.ID,
		tx.Kind,
		tx.Amount,
		tx.ChargedAccountID,
		nullable(tx.TargetAccountID),
		tx.Cleared,
		tx.ClearNow,
		tx.Date,
		nullable(tx.RecurringID),
		tx.Note,
	)
	if err != nil {
		return fmt.Errorf("create transaction %s: %w", tx.ID, err)
	}
	return nil
}

// UpdateTransaction implements the TransactionStore interface.
func (s *Store) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET kind = $1, amount = $2, charged_account_id = $3, target_account_id = $4,
		    cleared = $5, clear_now = $6, occurred_on = $7, recurring_id = $8, note = $9
		WHERE id = $10`

	result, err := s.pool.Exec(ctx, query,
		tx.Kind,
		tx.Amount,
		tx.ChargedAccountID,
		nullable(tx.TargetAccountID),
		tx.Cleared,
		tx.ClearNow,
		tx.Date,
		nullable(tx.RecurringID),
		tx.Note,
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, ledger.ErrNotFound)
	}
	return nil
}

// DeleteTransaction implements the TransactionStore interface.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	query := `
		DELETE FROM transactions
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// ListTransactions implements the TransactionStore interface.
func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE ($1 = '' OR charged_account_id = $1 OR target_account_id = $1)
		  AND ($2 = '' OR recurring_id = $2)
		  AND (NOT $3 OR cleared)
		ORDER BY occurred_on, id`

	rows, err := s.pool.Query(ctx, query, filter.AccountID, filter.RecurringID, filter.ClearedOnly)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: scan: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
