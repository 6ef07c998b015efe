package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/browser"
	"github.com/xkilldash9x/bulksend/internal/compose"
	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/delivery"
	"github.com/xkilldash9x/bulksend/internal/locator"
	"github.com/xkilldash9x/bulksend/internal/orchestrator"
	"github.com/xkilldash9x/bulksend/internal/pacing"
	"github.com/xkilldash9x/bulksend/internal/results"
	"github.com/xkilldash9x/bulksend/internal/store"
)

// Function variables for dependency injection in tests.
var (
	startRunners   = startBrowserRunners
	persistTimeout = 30 * time.Second
)

// batchComponents holds the sinks opened for one batch.
type batchComponents struct {
	Sink    results.MultiSink
	CSV     *results.CSVSink
	Store   *store.Store
	closers []func()
}

// Shutdown releases everything in reverse order of acquisition.
func (bc *batchComponents) Shutdown() {
	for i := len(bc.closers) - 1; i >= 0; i-- {
		bc.closers[i]()
	}
}

func initializeSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*batchComponents, error) {
	bc := &batchComponents{CSV: results.NewCSVSink(cfg.Results.Dir, logger)}
	bc.Sink = append(bc.Sink, bc.CSV)

	if cfg.Database.URL == "" {
		return bc, nil
	}
	st, closePool, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.Table, logger)
	if err != nil {
		return bc, fmt.Errorf("failed to initialize database store: %w", err)
	}
	bc.closers = append(bc.closers, closePool)
	if err := st.Migrate(ctx); err != nil {
		return bc, err
	}
	bc.Store = st
	bc.Sink = append(bc.Sink, st)
	return bc, nil
}

// startBrowserRunners launches one browser per worker, waits for each to be
// logged in and wraps its session in a delivery machine.
func startBrowserRunners(ctx context.Context, cfg *config.Config, n int, settler delivery.Settler, logger *zap.Logger) ([]orchestrator.Runner, func(), error) {
	ladders, err := locator.NewLadders(cfg.Locators)
	if err != nil {
		return nil, nil, err
	}

	var managers []*browser.Manager
	shutdown := func() {
		for _, m := range managers {
			if err := m.Close(); err != nil {
				logger.Warn("Error during browser shutdown", zap.Error(err))
			}
		}
	}

	runners := make([]orchestrator.Runner, 0, n)
	for i := 0; i < n; i++ {
		profile := browser.ProfileDirFor(cfg.Browser.ProfileDir, i, n)
		m, err := browser.NewManager(ctx, cfg.Browser, profile, logger)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
		managers = append(managers, m)
		if err := m.Login(ctx); err != nil {
			shutdown()
			return nil, nil, err
		}
		machine := delivery.NewMachine(m.NewSession(), locator.NewResolver(logger), ladders, cfg.Locators, logger,
			delivery.WithSettler(settler))
		runners = append(runners, machine)
	}
	return runners, shutdown, nil
}

// runBatch sends to list and persists whatever was processed, including a
// partial result after an interruption.
func runBatch(ctx context.Context, cfg *config.Config, list []schemas.Contact, dryRun bool, out io.Writer, logger *zap.Logger) error {
	composer, err := compose.New(cfg.Message, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize composer: %w", err)
	}
	if dryRun {
		return previewBatch(composer, list, out, logger)
	}
	if len(list) == 0 {
		logger.Warn("No contacts to process.")
		fmt.Fprintln(out, "No contacts to process.")
		return nil
	}

	components, err := initializeSinks(ctx, cfg, logger)
	if err != nil {
		components.Shutdown()
		return err
	}
	defer components.Shutdown()

	scheduler := pacing.NewScheduler(cfg.Pacing, logger)
	processor, err := orchestrator.New(scheduler, logger)
	if err != nil {
		return err
	}

	workers := min(cfg.Browser.Sessions, len(list))
	runners, stopRunners, err := startRunners(ctx, cfg, workers, scheduler, logger)
	if err != nil {
		return fmt.Errorf("failed to start sessions: %w", err)
	}
	defer stopRunners()

	result, runErr := processor.RunParallel(ctx, runners, list, composer.Compose)
	if result == nil {
		return runErr
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := components.Sink.Persist(persistCtx, result); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to persist results: %w", err))
	}
	if components.Store != nil {
		if counts, err := components.Store.Counts(persistCtx, result.RunID); err != nil {
			logger.Warn("Could not read back stored outcomes.", zap.Error(err))
		} else {
			logger.Info("Stored outcomes verified.", zap.Any("counts", counts))
		}
	}

	printSummary(out, result, components.CSV.Dir())
	return runErr
}

func previewBatch(composer *compose.Composer, list []schemas.Contact, out io.Writer, logger *zap.Logger) error {
	for _, c := range list {
		intent, err := composer.Compose(c)
		if err != nil {
			logger.Warn("Could not compose message.", zap.Int("row", c.Row), zap.Error(err))
			continue
		}
		logger.Debug("Dry run.", zap.Int("row", c.Row), zap.String("number", c.Number()), zap.String("kind", intent.Kind.String()))
		body := strings.ReplaceAll(intent.Body, "\n", `\n`)
		if intent.Kind == schemas.IntentMedia {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\n", c.Row, c.Number(), intent.Kind, intent.MediaPath, body)
		} else {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", c.Row, c.Number(), intent.Kind, body)
		}
	}
	fmt.Fprintf(out, "Dry run: %d contacts, nothing sent.\n", len(list))
	return nil
}

func printSummary(out io.Writer, result *schemas.BatchResult, dir string) {
	counts := result.Counts()
	fmt.Fprintf(out, "\nRun %s: %d contacts.\n", result.RunID, result.Len())
	for _, kind := range schemas.OutcomeKinds {
		fmt.Fprintf(out, "  %-15s %d\n", kind, counts[kind])
	}
	fmt.Fprintf(out, "Results written to %s\n", dir)
	if n := len(result.Retryable()); n > 0 {
		fmt.Fprintf(out, "%d contacts can be retried with: bulksend retry\n", n)
	}
}
