package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

const definitionColumns = `
	id, kind, amount, charged_account_id, target_account_id,
	unit, every, end_date, last_occurrence, note`

func scanDefinition(row pgx.Row) (*ledger.RecurringDefinition, error) {
	def := &ledger.RecurringDefinition{}
	var targetID *string
	err := row.Scan(
		&def.ID,
		&def.Kind,
		&def.Amount,
		&def.ChargedAccountID,
		&targetID,
		&def.Unit,
		&def.Every,
		&def.EndDate,
		&def.LastOccurrence,
		&def.Note,
	)
	if err != nil {
		return nil, err
	}
	if targetID != nil {
		def.TargetAccountID = *targetID
	}
	return def, nil
}

// FindDefinition implements the RecurringStore interface.
func (s *Store) FindDefinition(ctx context.Context, id string) (*ledger.RecurringDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM recurring_definitions
		WHERE id = $1`

	def, err := scanDefinition(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recurring definition %s: %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("find recurring definition %s: %w", id, err)
	}
	return def, nil
}

// CreateDefinition implements the RecurringStore interface.
func (s *Store) CreateDefinition(ctx context.Context, def *ledger.RecurringDefinition) error {
	query := `
		INSERT INTO recurring_definitions (` + definitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		def.ID,
		def.Kind,
		def.Amount,
		def.ChargedAccountID,
		nullable(def.TargetAccountID),
		def.Unit,
		def.Every,
		def.EndDate,
		def.LastOccurrence,
		def.Note,
	)
	if err != nil {
		return fmt.Errorf("create recurring definition %s: %w", def.ID, err)
	}
	return nil
}

// UpdateDefinition implements the RecurringStore interface.
func (s *Store) UpdateDefinition(ctx context.Context, def *ledger.RecurringDefinition) error {
	query := `
		UPDATE recurring_definitions
		SET kind = $1, amount = $2, charged_account_id = $3, target_account_id = $4,
		    unit = $5, every = $6, end_date = $7, last_occurrence = $8, note = $9
		WHERE id = $10`

	result, err := s.pool.Exec(ctx, query,
		def.Kind,
		def.Amount,
		def.ChargedAccountID,
		nullable(def.TargetAccountID),
		def.Unit,
		def.Every,
		def.EndDate,
		def.LastOccurrence,
		def.Note,
		def.ID,
	)
	if err != nil {
		return fmt.Errorf("update recurring definition %s: %w", def.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recurring definition %s: %w", def.ID, ledger.ErrNotFound)
	}
	return nil
}

// DeleteDefinition implements the RecurringStore interface. Already
// materialized transactions keep their recurring_id reference.
func (s *Store) DeleteDefinition(ctx context.Context, id string) error {
	query := `
		DELETE FROM recurring_definitions
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete recurring definition %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recurring definition %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// ListDefinitions implements the RecurringStore interface.
func (s *Store) ListDefinitions(ctx context.Context) ([]*ledger.RecurringDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM recurring_definitions
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list recurring definitions: %w", err)
	}
	defer rows.Close()

	var defs []*ledger.RecurringDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("list recurring definitions: scan: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recurring definitions: %w", err)
	}
	return defs, nil
}
