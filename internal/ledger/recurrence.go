package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/google/uuid"
)

// Materializer turns due recurring definitions into concrete transactions and
// feeds them through the engine. It decides *what* to materialize for a given
// instant; deciding *when* to run is the caller's concern (a scheduler, a
// worker loop, a CLI command).
type Materializer struct {
	engine *Engine
	txs    TransactionStore
	defs   RecurringStore
	clock  Clock
}

// NewMaterializer creates a materializer over the given engine and stores.
func NewMaterializer(engine *Engine, txs TransactionStore, defs RecurringStore, clock Clock) *Materializer {
	return &Materializer{
		engine: engine,
		txs:    txs,
		defs:   defs,
		clock:  clock,
	}
}

// ProcessDue materializes every missed occurrence of every due definition.
// Occurrences are produced one interval at a time in chronological order,
// each applied to balances before the next, so a definition three intervals
// behind yields three transactions rather than one collapsed catch-up.
// It returns the transactions created.
func (m *Materializer) ProcessDue(ctx context.Context) ([]*Transaction, error) {
	defs, err := m.defs.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("process due: list definitions: %w", err)
	}

	now := m.clock.Now()
	var created []*Transaction
	for _, def := range defs {
		txs, err := m.materializeDefinition(ctx, def, now)
		created = append(created, txs...)
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

// ProcessDefinition materializes missed occurrences of a single definition.
func (m *Materializer) ProcessDefinition(ctx context.Context, defID string) ([]*Transaction, error) {
	def, err := m.defs.FindDefinition(ctx, defID)
	if err != nil {
		return nil, fmt.Errorf("process definition %s: %w", defID, err)
	}
	return m.materializeDefinition(ctx, def, m.clock.Now())
}

func (m *Materializer) materializeDefinition(ctx context.Context, def *RecurringDefinition, now time.Time) ([]*Transaction, error) {
	log := logger.FromContext(ctx)

	var created []*Transaction
	for def.StateAt(now) == StateDue {
		occurrence := def.NextOccurrence()

		tx := def.Materialize(occurrence)
		if err := ValidateTransaction(tx); err != nil {
			return created, fmt.Errorf("materialize definition %s: %w", def.ID, err)
		}
		if err := m.txs.CreateTransaction(ctx, tx); err != nil {
			return created, fmt.Errorf("materialize definition %s: create transaction: %w: %v",
				def.ID, ErrPersistence, err)
		}
		if err := m.engine.Apply(ctx, tx.ID); err != nil {
			return created, fmt.Errorf("materialize definition %s: %w", def.ID, err)
		}

		// Advance by exactly one interval, never jump to now; each missed
		// occurrence gets its own transaction.
		def.LastOccurrence = occurrence
		if err := m.defs.UpdateDefinition(ctx, def); err != nil {
			return created, fmt.Errorf("materialize definition %s: persist last occurrence: %w: %v",
				def.ID, ErrPersistence, err)
		}

		created = append(created, tx)
		log.Info().
			Str("definition_id", def.ID).
			Str("transaction_id", tx.ID).
			Time("occurrence", occurrence).
			Msg("recurring transaction materialized")
	}
	return created, nil
}

// Materialize builds the concrete transaction for one occurrence of the
// definition. The transaction requests immediate clearing so its balance
// effect lands as soon as the engine applies it.
func (d *RecurringDefinition) Materialize(occurrence time.Time) *Transaction {
	return &Transaction{
		ID:               uuid.NewString(),
		Kind:             d.Kind,
		Amount:           d.Amount,
		ChargedAccountID: d.ChargedAccountID,
		TargetAccountID:  d.TargetAccountID,
		ClearNow:         true,
		Date:             occurrence,
		RecurringID:      d.ID,
		Note:             d.Note,
	}
}
