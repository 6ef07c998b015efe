// Package orchestrator runs batches of contacts through delivery machines.
// It performs no UI interaction itself.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/pacing"
)

// Runner takes one contact through its conversation and returns its outcome.
// *delivery.Machine implements it.
type Runner interface {
	Run(ctx context.Context, c schemas.Contact, intent schemas.MessageIntent) schemas.Outcome
}

// IntentFunc chooses the message for a contact.
type IntentFunc func(schemas.Contact) (schemas.MessageIntent, error)

// Processor drives contacts through a Runner, pacing each one.
type Processor struct {
	scheduler *pacing.Scheduler
	logger    *zap.Logger
	now       func() time.Time
	newRunID  func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock replaces time.Now for outcome timestamps.
func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

// WithRunID replaces the run identifier generator.
func WithRunID(fn func() string) Option { return func(p *Processor) { p.newRunID = fn } }

// New creates a Processor.
func New(scheduler *pacing.Scheduler, logger *zap.Logger, opts ...Option) (*Processor, error) {
	if scheduler == nil || logger == nil {
		return nil, errors.New("cannot initialize processor with nil dependencies")
	}
	p := &Processor{
		scheduler: scheduler,
		logger:    logger.Named("orchestrator"),
		now:       time.Now,
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run processes contacts one at a time, in order, against a single runner.
// Cancellation is honored between contacts; the partial result is returned
// together with the context error.
func (p *Processor) Run(ctx context.Context, runner Runner, contacts []schemas.Contact, intentFor IntentFunc) (*schemas.BatchResult, error) {
	runID := p.newRunID()
	p.logger.Info("Starting batch.", zap.String("run_id", runID), zap.Int("contacts", len(contacts)))
	result, err := p.run(ctx, runID, runner, contacts, intentFor)
	p.logSummary(result, err)
	return result, err
}

func (p *Processor) run(ctx context.Context, runID string, runner Runner, contacts []schemas.Contact, intentFor IntentFunc) (*schemas.BatchResult, error) {
	result := &schemas.BatchResult{
		RunID:     runID,
		StartedAt: p.now(),
		Records:   make([]schemas.Record, 0, len(contacts)),
	}
	defer func() { result.FinishedAt = p.now() }()

	state := p.scheduler.NewState()
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		intent, err := intentFor(c)
		if err != nil {
			p.record(result, c, schemas.Failure(fmt.Sprintf("compose message: %v", err)))
			continue
		}

		if state, err = p.scheduler.BeforeAction(ctx, state); err != nil {
			return result, err
		}

		p.record(result, c, p.runOne(ctx, runner, c, intent))

		if state, err = p.scheduler.AfterAction(ctx, state); err != nil {
			return result, err
		}
	}
	return result, nil
}

// runOne shields the batch from a contact that panics. The runner gets a
// context that outlives cancellation so an in-flight UI step is not cut off.
func (p *Processor) runOne(ctx context.Context, runner Runner, c schemas.Contact, intent schemas.MessageIntent) (out schemas.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic while processing contact.",
				zap.Int("row", c.Row),
				zap.String("number", c.Number()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			out = schemas.Failure(fmt.Sprintf("panic: %v", r))
		}
	}()
	return runner.Run(context.WithoutCancel(ctx), c, intent)
}

func (p *Processor) record(result *schemas.BatchResult, c schemas.Contact, out schemas.Outcome) {
	result.Append(schemas.Record{Contact: c, Outcome: out, Timestamp: p.now()})
}

func (p *Processor) logSummary(result *schemas.BatchResult, err error) {
	counts := result.Counts()
	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Len()),
	}
	for _, kind := range schemas.OutcomeKinds {
		fields = append(fields, zap.Int(kind.String(), counts[kind]))
	}
	if err != nil {
		p.logger.Warn("Batch interrupted.", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Info("Batch complete.", fields...)
}

// RunParallel splits contacts into contiguous shards, one per runner, and
// processes the shards concurrently. Each runner must own its own session.
// Every shard gets its own pacing state; the merged result is in input order.
func (p *Processor) RunParallel(ctx context.Context, runners []Runner, contacts []schemas.Contact, intentFor IntentFunc) (*schemas.BatchResult, error) {
	if len(runners) == 0 {
		return nil, errors.New("no runners available")
	}
	if len(runners) == 1 {
		return p.Run(ctx, runners[0], contacts, intentFor)
	}

	runID := p.newRunID()
	shards := Shard(contacts, len(runners))
	p.logger.Info("Starting parallel batch.",
		zap.String("run_id", runID),
		zap.Int("contacts", len(contacts)),
		zap.Int("workers", len(shards)))

	parts := make([]*schemas.BatchResult, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			res, err := p.run(gctx, runID, runners[i], shard, intentFor)
			parts[i] = res
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()

	merged := schemas.MergeResults(runID, parts...)
	p.logSummary(merged, err)
	return merged, err
}

// Shard splits contacts into at most n contiguous, near-equal slices.
func Shard(contacts []schemas.Contact, n int) [][]schemas.Contact {
	if n < 1 {
		n = 1
	}
	if n > len(contacts) {
		n = len(contacts)
	}
	shards := make([][]schemas.Contact, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := len(contacts) / n
		if i < len(contacts)%n {
			size++
		}
		shards = append(shards, contacts[start:start+size])
		start += size
	}
	return shards
}
