package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// FindAccount implements the AccountStore interface.
func (s *Store) FindAccount(ctx context.Context, id string) (*ledger.Account, error) {
	query := `
		SELECT id, name, balance, exchange_mode
		FROM accounts
		WHERE id = $1`

	account := &ledger.Account{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Name,
		&account.Balance,
		&account.ExchangeMode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("find account %s: %w", id, err)
	}
	return account, nil
}

// CreateAccount implements the AccountStore interface.
func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		INSERT INTO accounts (id, name, balance, exchange_mode)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query,
		account.ID,
		account.Name,
		account.Balance,
		account.ExchangeMode,
	)
	if err != nil {
		return fmt.Errorf("create account %s: %w", account.ID, err)
	}
	return nil
}

// UpdateAccount implements the AccountStore interface.
func (s *Store) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, balance = $2, exchange_mode = $3
		WHERE id = $4`

	result, err := s.pool.Exec(ctx, query,
		account.Name,
		account.Balance,
		account.ExchangeMode,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("update account %s: %w", account.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", account.ID, ledger.ErrNotFound)
	}
	return nil
}

// DeleteAccount implements the AccountStore interface.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	query := `
		DELETE FROM accounts
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// ListAccounts implements the AccountStore interface.
func (s *Store) ListAccounts(ctx context.Context) ([]*ledger.Account, error) {
	query := `
		SELECT id, name, balance, exchange_mode
		FROM accounts
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		account := &ledger.Account{}
		if err := rows.Scan(&account.ID, &account.Name, &account.Balance, &account.ExchangeMode); err != nil {
			return nil, fmt.Errorf("list accounts: scan: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
