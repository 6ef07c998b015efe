// internal/humanoid/humanoid.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/internal/config"
)

const stepInterval = 12 * time.Millisecond

// Humanoid turns clicks and typing into timed, human-looking input.
type Humanoid struct {
	// mu guards pos and rng. It is held for the whole of an action.
	mu       sync.Mutex
	cfg      config.HumanoidConfig
	logger   *zap.Logger
	executor Executor
	pos      Point
	rng      *rand.Rand
}

// New creates a Humanoid. A nil rng is replaced by a time-seeded one.
func New(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor, rng *rand.Rand) *Humanoid {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.MoveSteps < 1 {
		cfg.MoveSteps = 1
	}
	return &Humanoid{
		cfg:      cfg,
		logger:   logger.Named("humanoid"),
		executor: executor,
		rng:      rng,
	}
}

// moveTo assumes h.mu is held. Intermediate points follow an ease-in-out
// curve with a little jitter; the final point is exact.
func (h *Humanoid) moveTo(ctx context.Context, target Point) error {
	start := h.pos
	steps := h.cfg.MoveSteps
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		eased := (1 - math.Cos(math.Pi*t)) / 2
		p := start.Lerp(target, eased)
		if i < steps {
			p.X += (h.rng.Float64() - 0.5) * 2
			p.Y += (h.rng.Float64() - 0.5) * 2
		}
		if err := h.executor.DispatchMouseEvent(ctx, MouseEventData{Type: MouseMove, X: p.X, Y: p.Y, Button: ButtonNone}); err != nil {
			return err
		}
		h.pos = p
		if i < steps {
			if err := h.executor.Sleep(ctx, stepInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// pauseDuration samples a normally distributed hesitation scaled from the
// configured mean and deviation.
func (h *Humanoid) pauseDuration(meanScale, stdDevScale float64) time.Duration {
	ms := h.cfg.PauseMeanMs*meanScale + h.rng.NormFloat64()*h.cfg.PauseStdDevMs*stdDevScale
	return time.Duration(ms * float64(time.Millisecond))
}
