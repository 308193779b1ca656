package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/store/inmemory"
	"github.com/dvloznov/finance-ledger/internal/store/postgres"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "accounts":
		runAccounts(log)
	case "add-account":
		runAddAccount(log)
	case "delete-account":
		runDeleteAccount(log)
	case "add":
		runAdd(log)
	case "clear":
		runClear(log)
	case "unclear":
		runUnclear(log)
	case "delete":
		runDelete(log)
	case "recurring":
		runRecurring(log)
	case "process-due":
		runProcessDue(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  accounts        List accounts and balances")
	fmt.Println("  add-account     Create an account")
	fmt.Println("  delete-account  Delete an account and its transactions")
	fmt.Println("  add             Record an income, expense or transfer")
	fmt.Println("  clear           Clear a pending transaction")
	fmt.Println("  unclear         Reverse a cleared transaction back to pending")
	fmt.Println("  delete          Delete a transaction")
	fmt.Println("  recurring       Create a recurring definition")
	fmt.Println("  process-due     Materialize due recurring transactions")
	fmt.Println("  export          Snapshot to GCS / archive to BigQuery")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env holds the wired-up collaborators every command needs.
type env struct {
	accounts ledger.AccountStore
	txs      ledger.TransactionStore
	defs     ledger.RecurringStore
	engine   *ledger.Engine
	cfg      *config.Config
	close    func()
}

func setup(ctx context.Context, log zerolog.Logger) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	e := &env{cfg: cfg, close: func() {}}
	if cfg.Database.URL != "" {
		pg, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		e.accounts, e.txs, e.defs = pg, pg, pg
		e.close = pg.Close
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory stores (state is not persisted)")
		mem := inmemory.NewStore()
		e.accounts, e.txs, e.defs = mem, mem, mem
	}

	e.engine = ledger.NewEngine(e.accounts, e.txs)
	return e, nil
}

func cliContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	return logger.WithContext(ctx, log), cancel
}

// terminalPrompt asks for confirmation on stdin.
type terminalPrompt struct{}

// Confirm implements the ledger.ConfirmationPrompt interface.
func (terminalPrompt) Confirm(ctx context.Context, title, message string) (bool, error) {
	fmt.Printf("%s\n%s [y/N]: ", title, message)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func runAccounts(log zerolog.Logger) {
	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	accounts, err := e.accounts.ListAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Listing accounts failed")
	}

	for _, a := range accounts {
		fmt.Printf("%-36s  %-20s  %12.2f\n", a.ID, a.Name, a.Balance)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts.")
	}
}

func runAddAccount(log zerolog.Logger) {
	fs := flag.NewFlagSet("add-account", flag.ExitOnError)
	name := fs.String("name", "", "display name (required)")
	balance := fs.Float64("balance", 0, "opening balance")
	exchange := fs.Bool("exchange", false, "account is involved in currency exchange")
	fs.Parse(os.Args[2:])

	if *name == "" {
		log.Fatal().Msg("Error: --name is required")
	}

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	account := &ledger.Account{
		ID:           uuid.NewString(),
		Name:         *name,
		Balance:      *balance,
		ExchangeMode: *exchange,
	}
	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		log.Fatal().Err(err).Msg("Creating account failed")
	}
	fmt.Printf("Created account %s (%s)\n", account.ID, account.Name)
}

func runDeleteAccount(log zerolog.Logger) {
	fs := flag.NewFlagSet("delete-account", flag.ExitOnError)
	id := fs.String("id", "", "account ID (required)")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	var prompt ledger.ConfirmationPrompt
	if !*yes {
		prompt = terminalPrompt{}
	}
	cascade := ledger.NewCascade(e.engine, e.accounts, e.txs, prompt)
	if err := cascade.DeleteAccount(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Deleting account failed")
	}
	fmt.Println("Account deleted.")
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	kind := fs.String("kind", "expense", "income, expense or transfer")
	amount := fs.Float64("amount", 0, "positive amount (required)")
	from := fs.String("from", "", "charged account ID (required)")
	to := fs.String("to", "", "target account ID (transfers only)")
	date := fs.String("date", "", "occurrence date YYYY-MM-DD (default today)")
	note := fs.String("note", "", "free-form note")
	pending := fs.Bool("pending", false, "leave the transaction pending instead of clearing it now")
	fs.Parse(os.Args[2:])

	if *amount <= 0 || *from == "" {
		log.Fatal().Msg("Error: --amount and --from are required")
	}

	occurred := time.Now()
	if *date != "" {
		var err error
		occurred, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --date")
		}
	}

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	tx := &ledger.Transaction{
		ID:               uuid.NewString(),
		Kind:             ledger.TransactionKind(*kind),
		Amount:           *amount,
		ChargedAccountID: *from,
		TargetAccountID:  *to,
		ClearNow:         !*pending,
		Date:             occurred,
		Note:             *note,
	}
	if err := ledger.ValidateTransaction(tx); err != nil {
		log.Fatal().Err(err).Msg("Invalid transaction")
	}
	if err := e.txs.CreateTransaction(ctx, tx); err != nil {
		log.Fatal().Err(err).Msg("Creating transaction failed")
	}
	if err := e.engine.Apply(ctx, tx.ID); err != nil {
		log.Fatal().Err(err).Msg("Applying transaction failed")
	}
	fmt.Printf("Recorded %s %s of %.2f\n", *kind, tx.ID, *amount)
}

func runClear(log zerolog.Logger) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	id := fs.String("id", "", "transaction ID (required)")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	// Flip the intent flag, then let the engine fold the effect in.
	tx, err := e.txs.FindTransaction(ctx, *id)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading transaction failed")
	}
	if !tx.ClearNow {
		tx.ClearNow = true
		if err := e.txs.UpdateTransaction(ctx, tx); err != nil {
			log.Fatal().Err(err).Msg("Updating transaction failed")
		}
	}
	if err := e.engine.Apply(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Clearing transaction failed")
	}
	fmt.Println("Transaction cleared.")
}

func runUnclear(log zerolog.Logger) {
	fs := flag.NewFlagSet("unclear", flag.ExitOnError)
	id := fs.String("id", "", "transaction ID (required)")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	if err := e.engine.Remove(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Unclearing transaction failed")
	}
	fmt.Println("Transaction reversed to pending.")
}

func runDelete(log zerolog.Logger) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "transaction ID (required)")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	if err := e.engine.Delete(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Deleting transaction failed")
	}
	fmt.Println("Transaction deleted.")
}

func runRecurring(log zerolog.Logger) {
	fs := flag.NewFlagSet("recurring", flag.ExitOnError)
	kind := fs.String("kind", "expense", "income, expense or transfer")
	amount := fs.Float64("amount", 0, "positive amount (required)")
	from := fs.String("from", "", "charged account ID (required)")
	to := fs.String("to", "", "target account ID (transfers only)")
	unit := fs.String("unit", "monthly", "daily, weekly, monthly or yearly")
	every := fs.Int("every", 1, "interval multiplier, e.g. every 2 weeks")
	start := fs.String("start", "", "date of the first occurrence YYYY-MM-DD (required)")
	end := fs.String("end", "", "optional end date YYYY-MM-DD")
	note := fs.String("note", "", "free-form note")
	fs.Parse(os.Args[2:])

	if *amount <= 0 || *from == "" || *start == "" {
		log.Fatal().Msg("Error: --amount, --from and --start are required")
	}
	first, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --start")
	}

	def := &ledger.RecurringDefinition{
		ID:               uuid.NewString(),
		Kind:             ledger.TransactionKind(*kind),
		Amount:           *amount,
		ChargedAccountID: *from,
		TargetAccountID:  *to,
		Unit:             ledger.RecurrenceUnit(*unit),
		Every:            *every,
		Note:             *note,
	}
	if *end != "" {
		endDate, err := time.Parse("2006-01-02", *end)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --end")
		}
		def.EndDate = &endDate
	}

	def.SeedFirstOccurrence(first)

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	if err := e.defs.CreateDefinition(ctx, def); err != nil {
		log.Fatal().Err(err).Msg("Creating recurring definition failed")
	}
	fmt.Printf("Created recurring definition %s\n", def.ID)
}

func runProcessDue(log zerolog.Logger) {
	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	m := ledger.NewMaterializer(e.engine, e.txs, e.defs, ledger.SystemClock{})
	created, err := m.ProcessDue(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("materialized", len(created)).Msg("Processing due definitions failed")
	}
	fmt.Printf("Materialized %d transaction(s).\n", len(created))
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	skipSnapshot := fs.Bool("skip-snapshot", false, "do not upload a GCS snapshot")
	skipArchive := fs.Bool("skip-archive", false, "do not archive to BigQuery")
	fs.Parse(os.Args[2:])

	ctx, cancel := cliContext(log)
	defer cancel()

	e, err := setup(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}
	defer e.close()

	if !*skipSnapshot && e.cfg.Export.GCSBucket != "" {
		snap, err := export.BuildSnapshot(ctx, e.accounts, e.txs, e.defs, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Building snapshot failed")
		}
		uri, err := export.UploadSnapshot(ctx, e.cfg.Export.GCSBucket, e.cfg.Export.CredentialsFile, snap)
		if err != nil {
			log.Fatal().Err(err).Msg("Uploading snapshot failed")
		}
		fmt.Printf("Snapshot written to %s\n", uri)
	}

	if !*skipArchive && e.cfg.Export.ProjectID != "" {
		archiver, err := export.NewArchiver(ctx, e.cfg.Export.ProjectID,
			e.cfg.Export.DatasetID, e.cfg.Export.TableID, e.cfg.Export.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Creating archiver failed")
		}
		defer archiver.Close()

		txs, err := e.txs.ListTransactions(ctx, ledger.TransactionFilter{ClearedOnly: true})
		if err != nil {
			log.Fatal().Err(err).Msg("Listing transactions failed")
		}
		n, err := archiver.ArchiveCleared(ctx, txs)
		if err != nil {
			log.Fatal().Err(err).Msg("Archiving transactions failed")
		}
		fmt.Printf("Archived %d cleared transaction(s).\n", n)
	}
}
