package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// Snapshot is a point-in-time JSON dump of the whole ledger.
type Snapshot struct {
	TakenAt      time.Time                     `json:"taken_at"`
	Accounts     []*ledger.Account             `json:"accounts"`
	Transactions []*ledger.Transaction         `json:"transactions"`
	Definitions  []*ledger.RecurringDefinition `json:"recurring_definitions,omitempty"`
}

// BuildSnapshot reads the full ledger state from the stores.
func BuildSnapshot(ctx context.Context, accounts ledger.AccountStore, txs ledger.TransactionStore, defs ledger.RecurringStore, now time.Time) (*Snapshot, error) {
	accs, err := accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("BuildSnapshot: list accounts: %w", err)
	}
	all, err := txs.ListTransactions(ctx, ledger.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("BuildSnapshot: list transactions: %w", err)
	}

	snap := &Snapshot{
		TakenAt:      now,
		Accounts:     accs,
		Transactions: all,
	}
	if defs != nil {
		ds, err := defs.ListDefinitions(ctx)
		if err != nil {
			return nil, fmt.Errorf("BuildSnapshot: list definitions: %w", err)
		}
		snap.Definitions = ds
	}
	return snap, nil
}

// UploadSnapshot writes the snapshot as a JSON object into the given GCS
// bucket. The object name encodes the snapshot time. It returns the gs:// URI
// of the written object. It assumes Application Default Credentials unless a
// credentials file is given.
func UploadSnapshot(ctx context.Context, bucketName, credentialsFile string, snap *Snapshot) (string, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("UploadSnapshot: create storage client: %w", err)
	}
	defer client.Close()

	objectName := SnapshotObjectName(snap.TakenAt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadSnapshot: encode snapshot: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadSnapshot: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}

// SnapshotObjectName returns the object name a snapshot at the given time is
// stored under, e.g. "snapshots/2026/ledger-20260901T120000Z.json".
func SnapshotObjectName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("snapshots/%d/ledger-%s.json", t.Year(), t.Format("20060102T150405Z"))
}
