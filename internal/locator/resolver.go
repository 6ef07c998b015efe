package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// Result is the outcome of one Resolve call. Found is false when every
// strategy was tried without success, which is not an error.
type Result struct {
	Handle   schemas.ElementHandle
	Strategy string
	Index    int
	Found    bool
}

// Resolver walks ladders against a session.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("locator")}
}

// Resolve tries each strategy in order, giving each up to perStrategy to
// succeed. Not-found and per-strategy timeouts move on to the next strategy;
// any other error is returned immediately. Resolution stops at the first hit.
func (r *Resolver) Resolve(ctx context.Context, s schemas.Session, ladder Ladder, perStrategy time.Duration) (Result, error) {
	for i, strategy := range ladder {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, perStrategy)
		handle, err := strategy.Find(attemptCtx, s)
		cancel()

		switch {
		case err == nil && handle != nil:
			r.logger.Debug("Locator resolved.",
				zap.String("strategy", strategy.Description),
				zap.Int("rung", i))
			return Result{Handle: handle, Strategy: strategy.Description, Index: i, Found: true}, nil
		case err == nil, errors.Is(err, schemas.ErrNotFound):
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		default:
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			return Result{}, fmt.Errorf("locator %q: %w", strategy.Description, err)
		}
		r.logger.Debug("Locator strategy missed.", zap.String("strategy", strategy.Description), zap.Int("rung", i))
	}
	return Result{}, nil
}
