package export

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/store/inmemory"
)

func TestSnapshotObjectName(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{
			name: "utc time",
			t:    time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
			want: "snapshots/2026/ledger-20260901T120000Z.json",
		},
		{
			name: "non-utc time is normalized",
			t:    time.Date(2026, 1, 1, 1, 30, 0, 0, time.FixedZone("CET", 3600)),
			want: "snapshots/2026/ledger-20260101T003000Z.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapshotObjectName(tt.t); got != tt.want {
				t.Errorf("SnapshotObjectName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSnapshot(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	if err := store.CreateAccount(ctx, &ledger.Account{ID: "a", Name: "Checking", Balance: 75}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := store.CreateTransaction(ctx, &ledger.Transaction{
		ID: "t1", Kind: ledger.KindExpense, Amount: 25, ChargedAccountID: "a", Cleared: true,
	}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if err := store.CreateDefinition(ctx, &ledger.RecurringDefinition{
		ID: "r1", Kind: ledger.KindExpense, Amount: 25, ChargedAccountID: "a", Unit: ledger.UnitMonthly,
	}); err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	snap, err := BuildSnapshot(ctx, store, store, store, now)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}

	if !snap.TakenAt.Equal(now) {
		t.Errorf("TakenAt = %v, want %v", snap.TakenAt, now)
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].ID != "a" {
		t.Errorf("snapshot accounts = %+v", snap.Accounts)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != "t1" {
		t.Errorf("snapshot transactions = %+v", snap.Transactions)
	}
	if len(snap.Definitions) != 1 || snap.Definitions[0].ID != "r1" {
		t.Errorf("snapshot definitions = %+v", snap.Definitions)
	}
}

// Definitions are optional; a nil recurring store still snapshots the rest.
func TestBuildSnapshotWithoutDefinitions(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	if err := store.CreateAccount(ctx, &ledger.Account{ID: "a"}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	snap, err := BuildSnapshot(ctx, store, store, nil, time.Now())
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.Definitions != nil {
		t.Errorf("Definitions = %+v, want nil", snap.Definitions)
	}
	if len(snap.Accounts) != 1 {
		t.Errorf("snapshot accounts = %+v", snap.Accounts)
	}
}
