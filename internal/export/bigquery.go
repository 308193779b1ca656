// Package export ships ledger data to external destinations: a BigQuery
// archive of cleared transactions and JSON snapshots in GCS. Nothing here is
// on the balance-critical path; a failed export never touches the ledger.
package export

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/option"

	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// TransactionRow is the BigQuery archive schema for one cleared transaction.
type TransactionRow struct {
	TransactionID    string              `bigquery:"transaction_id"`
	Kind             string              `bigquery:"kind"`
	Amount           float64             `bigquery:"amount"`
	ChargedAccountID string              `bigquery:"charged_account_id"`
	TargetAccountID  bigquery.NullString `bigquery:"target_account_id"`
	RecurringID      bigquery.NullString `bigquery:"recurring_id"`
	OccurredOn       civil.Date          `bigquery:"occurred_on"`
	Note             string              `bigquery:"note"`
	ArchivedTS       time.Time           `bigquery:"archived_ts"`
}

// Archiver writes cleared transactions into a BigQuery table.
type Archiver struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewArchiver creates an archiver for the given project/dataset/table.
// credentialsFile may be empty, in which case Application Default Credentials
// are used.
func NewArchiver(ctx context.Context, projectID, datasetID, tableID, credentialsFile string) (*Archiver, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewArchiver: bigquery client: %w", err)
	}
	return &Archiver{
		client:  client,
		dataset: datasetID,
		table:   tableID,
	}, nil
}

// Close releases the underlying client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// ArchiveCleared inserts the cleared transactions among txs into the archive
// table. Pending transactions are skipped; they have no balance effect yet.
func (a *Archiver) ArchiveCleared(ctx context.Context, txs []*ledger.Transaction) (int, error) {
	rows := make([]*TransactionRow, 0, len(txs))
	now := time.Now()
	for _, tx := range txs {
		if !tx.Cleared {
			continue
		}
		rows = append(rows, &TransactionRow{
			TransactionID:    tx.ID,
			Kind:             string(tx.Kind),
			Amount:           tx.Amount,
			ChargedAccountID: tx.ChargedAccountID,
			TargetAccountID:  bigquery.NullString{StringVal: tx.TargetAccountID, Valid: tx.TargetAccountID != ""},
			RecurringID:      bigquery.NullString{StringVal: tx.RecurringID, Valid: tx.RecurringID != ""},
			OccurredOn:       civil.DateOf(tx.Date),
			Note:             tx.Note,
			ArchivedTS:       now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	inserter := a.client.Dataset(a.dataset).Table(a.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return 0, fmt.Errorf("ArchiveCleared: inserting rows: %w", err)
	}
	return len(rows), nil
}
