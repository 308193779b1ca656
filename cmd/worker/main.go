package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	jobsmem "github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	storemem "github.com/dvloznov/finance-ledger/internal/store/inmemory"
	"github.com/dvloznov/finance-ledger/internal/store/postgres"
)

// The worker is the scheduling side of recurrence processing: it publishes a
// sweep job on a fixed interval and consumes the queue, handing each sweep to
// the materializer. The materializer itself never decides when to run.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var (
		accounts ledger.AccountStore
		txs      ledger.TransactionStore
		defs     ledger.RecurringStore
	)
	if cfg.Database.URL != "" {
		pg, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer pg.Close()
		accounts, txs, defs = pg, pg, pg
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory stores (state is not persisted)")
		mem := storemem.NewStore()
		accounts, txs, defs = mem, mem, mem
	}

	engine := ledger.NewEngine(accounts, txs)
	materializer := ledger.NewMaterializer(engine, txs, defs, ledger.SystemClock{})

	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(cfg.Worker.QueueSize, jobStore)

	log.Info().
		Dur("sweep_interval", cfg.Worker.SweepInterval).
		Msg("Starting recurrence worker")

	handler := func(ctx context.Context, job jobs.Job) error {
		sweep, ok := job.(*jobs.SweepJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", sweep.JobID).
			Msg("Processing recurrence sweep")

		var created []*ledger.Transaction
		var err error
		if sweep.DefinitionID != "" {
			created, err = materializer.ProcessDefinition(ctx, sweep.DefinitionID)
		} else {
			created, err = materializer.ProcessDue(ctx)
		}
		sweep.Materialized = len(created)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", sweep.JobID).
				Int("materialized", len(created)).
				Msg("Recurrence sweep failed")
			return err
		}

		log.Info().
			Str("job_id", sweep.JobID).
			Int("materialized", len(created)).
			Msg("Recurrence sweep completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Publish one sweep immediately, then on every tick.
	publish := func() {
		if err := jobQueue.PublishSweep(ctx, &jobs.SweepJob{}); err != nil {
			log.Error().Err(err).Msg("Failed to publish sweep job")
		}
	}
	publish()

	ticker := time.NewTicker(cfg.Worker.SweepInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				publish()
			}
		}
	}()

	log.Info().Msg("Recurrence worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down recurrence worker...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Recurrence worker stopped")
}
