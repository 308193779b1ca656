package ledger

import (
	"time"
)

// TransactionKind classifies the balance effect of a transaction.
type TransactionKind string

const (
	// KindIncome increases the charged account's balance.
	KindIncome TransactionKind = "income"
	// KindExpense decreases the charged account's balance.
	KindExpense TransactionKind = "expense"
	// KindTransfer moves the amount from the charged account to the target account.
	KindTransfer TransactionKind = "transfer"
)

// Account is one ledger account with its running balance.
// Balances are mutated only through the Engine, never directly.
type Account struct {
	// ID is the unique, immutable account identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Balance is the current running balance. It equals the sum of deltas of
	// all cleared transactions touching this account.
	Balance float64 `json:"balance"`

	// ExchangeMode marks accounts involved in currency exchange. Amounts are
	// assumed already exchange-adjusted upstream; the flag is carried for
	// display and reporting only.
	ExchangeMode bool `json:"exchange_mode,omitempty"`
}

// Transaction is one financial transaction. A transaction has no balance
// effect until it is cleared.
type Transaction struct {
	// ID is the unique transaction identifier.
	ID string `json:"id"`

	// Kind is income, expense or transfer.
	Kind TransactionKind `json:"kind"`

	// Amount is the positive magnitude; the semantic sign is resolved by Kind.
	Amount float64 `json:"amount"`

	// ChargedAccountID is the account the transaction is charged to. Required.
	ChargedAccountID string `json:"charged_account_id"`

	// TargetAccountID is the receiving account of a transfer. Required for
	// transfers, forbidden otherwise.
	TargetAccountID string `json:"target_account_id,omitempty"`

	// Cleared reports whether this transaction has taken effect on balances.
	Cleared bool `json:"cleared"`

	// ClearNow requests immediate clearing on Apply. When false the
	// transaction stays pending and Apply is a no-op.
	ClearNow bool `json:"clear_now"`

	// Date is the occurrence date.
	Date time.Time `json:"date"`

	// RecurringID references the RecurringDefinition this transaction was
	// materialized from, if any. Resolved through the store, never held as a
	// live pointer.
	RecurringID string `json:"recurring_id,omitempty"`

	// Note is an optional free-form description.
	Note string `json:"note,omitempty"`
}

// IsTransfer reports whether the transaction moves money between two accounts.
func (t *Transaction) IsTransfer() bool {
	return t.Kind == KindTransfer
}

// RecurrenceUnit is the unit of a recurrence interval.
type RecurrenceUnit string

const (
	UnitDaily   RecurrenceUnit = "daily"
	UnitWeekly  RecurrenceUnit = "weekly"
	UnitMonthly RecurrenceUnit = "monthly"
	UnitYearly  RecurrenceUnit = "yearly"
)

// RecurrenceState is the lifecycle state of a RecurringDefinition at a given
// point in time.
type RecurrenceState string

const (
	// StateDue means at least one occurrence is ready to materialize.
	StateDue RecurrenceState = "due"
	// StateNotDue means the next occurrence is still in the future.
	StateNotDue RecurrenceState = "not_due"
	// StateExpired means the definition produced its last occurrence. Expired
	// definitions are kept, not deleted.
	StateExpired RecurrenceState = "expired"
)

// RecurringDefinition is the template a recurring transaction is materialized
// from.
type RecurringDefinition struct {
	// ID is the unique definition identifier.
	ID string `json:"id"`

	// Kind, Amount, ChargedAccountID and TargetAccountID seed the
	// materialized transactions.
	Kind             TransactionKind `json:"kind"`
	Amount           float64         `json:"amount"`
	ChargedAccountID string          `json:"charged_account_id"`
	TargetAccountID  string          `json:"target_account_id,omitempty"`

	// Unit and Every describe the interval: one occurrence every `Every`
	// units. Every <= 0 is treated as 1.
	Unit  RecurrenceUnit `json:"unit"`
	Every int            `json:"every,omitempty"`

	// EndDate is the last date an occurrence may fall on. Nil means no end.
	EndDate *time.Time `json:"end_date,omitempty"`

	// LastOccurrence is when the definition last materialized a transaction.
	// The next occurrence is LastOccurrence advanced by one interval.
	LastOccurrence time.Time `json:"last_occurrence"`

	// Note is copied onto materialized transactions.
	Note string `json:"note,omitempty"`
}

// NextOccurrence returns LastOccurrence advanced by exactly one interval.
func (d *RecurringDefinition) NextOccurrence() time.Time {
	step := d.Every
	if step <= 0 {
		step = 1
	}
	switch d.Unit {
	case UnitDaily:
		return d.LastOccurrence.AddDate(0, 0, step)
	case UnitWeekly:
		return d.LastOccurrence.AddDate(0, 0, 7*step)
	case UnitYearly:
		return d.LastOccurrence.AddDate(step, 0, 0)
	default:
		// Monthly is the original app's default interval.
		return d.LastOccurrence.AddDate(0, step, 0)
	}
}

// SeedFirstOccurrence positions LastOccurrence one interval before first, so
// the first materialized occurrence falls exactly on first.
func (d *RecurringDefinition) SeedFirstOccurrence(first time.Time) {
	step := d.Every
	if step <= 0 {
		step = 1
	}
	switch d.Unit {
	case UnitDaily:
		d.LastOccurrence = first.AddDate(0, 0, -step)
	case UnitWeekly:
		d.LastOccurrence = first.AddDate(0, 0, -7*step)
	case UnitYearly:
		d.LastOccurrence = first.AddDate(-step, 0, 0)
	default:
		d.LastOccurrence = first.AddDate(0, -step, 0)
	}
}

// StateAt reports the definition's state at the given instant.
func (d *RecurringDefinition) StateAt(now time.Time) RecurrenceState {
	next := d.NextOccurrence()
	if d.EndDate != nil && next.After(*d.EndDate) {
		return StateExpired
	}
	if next.After(now) {
		return StateNotDue
	}
	return StateDue
}
