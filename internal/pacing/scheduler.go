// Package pacing spaces out contact actions and inserts cooldowns.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/bulksend/internal/config"
)

// State is the running tally owned by one processing flow. The scheduler
// returns a new value from every call; callers thread it through.
type State struct {
	ActionsSinceLastBreak int
	NextBreakThreshold    int
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Scheduler samples delays from the configured ranges. It holds no
// per-flow state, so one Scheduler may serve several flows.
type Scheduler struct {
	cfg     config.PacingConfig
	sleeper Sleeper
	limiter *rate.Limiter
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithSleeper(s Sleeper) Option { return func(sc *Scheduler) { sc.sleeper = s } }

func WithRand(rng *rand.Rand) Option { return func(sc *Scheduler) { sc.rng = rng } }

// WithLimiter replaces the limiter derived from max_per_minute.
func WithLimiter(l *rate.Limiter) Option { return func(sc *Scheduler) { sc.limiter = l } }

// NewScheduler creates a Scheduler. A non-zero cfg.Seed makes sampling reproducible.
func NewScheduler(cfg config.PacingConfig, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		sleeper: timerSleeper{},
		logger:  logger.Named("pacing"),
	}
	if cfg.MaxPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerMinute/60.0), 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	return s
}

// NewState starts a flow with a freshly sampled threshold.
func (s *Scheduler) NewState() State {
	return State{NextBreakThreshold: s.sampleThreshold()}
}

// BeforeAction waits for the rate limiter, if any, and then for a short
// sampled delay. The state is returned unchanged.
func (s *Scheduler) BeforeAction(ctx context.Context, st State) (State, error) {
	st = s.ensure(st)
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return st, err
		}
	}
	return st, s.sleeper.Sleep(ctx, s.sampleSeconds(s.cfg.ShortDelay))
}

// AfterAction counts one action. When the count reaches the threshold it
// resets the count, samples a new threshold and sleeps for a cooldown.
// The returned state is final even if the cooldown was interrupted.
func (s *Scheduler) AfterAction(ctx context.Context, st State) (State, error) {
	st = s.ensure(st)
	next := State{
		ActionsSinceLastBreak: st.ActionsSinceLastBreak + 1,
		NextBreakThreshold:    st.NextBreakThreshold,
	}
	if next.ActionsSinceLastBreak < next.NextBreakThreshold {
		return next, nil
	}

	cooldown := time.Duration(s.sampleInt(s.cfg.LongBreak)) * time.Second
	next = State{NextBreakThreshold: s.sampleThreshold()}
	s.logger.Info("Taking a cooldown.",
		zap.Int("actions", st.ActionsSinceLastBreak+1),
		zap.Duration("duration", cooldown),
		zap.Int("next_threshold", next.NextBreakThreshold))
	return next, s.sleeper.Sleep(ctx, cooldown)
}

// Settle waits for the post-send settle delay.
func (s *Scheduler) Settle(ctx context.Context) error {
	return s.sleeper.Sleep(ctx, s.sampleSeconds(s.cfg.SettleDelay))
}

// ensure repairs a zero State so a caller that never called NewState
// still gets a valid threshold.
func (s *Scheduler) ensure(st State) State {
	if st.NextBreakThreshold <= 0 {
		st.NextBreakThreshold = s.sampleThreshold()
	}
	if st.ActionsSinceLastBreak < 0 || st.ActionsSinceLastBreak >= st.NextBreakThreshold {
		st.ActionsSinceLastBreak = 0
	}
	return st
}

func (s *Scheduler) sampleThreshold() int {
	n := s.sampleInt(s.cfg.MessageThreshold)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Scheduler) sampleInt(r config.IntRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.Min + s.rng.Intn(r.Max-r.Min+1)
}

func (s *Scheduler) sampleSeconds(r config.FloatRange) time.Duration {
	secs := r.Min
	if r.Max > r.Min {
		s.mu.Lock()
		secs += s.rng.Float64() * (r.Max - r.Min)
		s.mu.Unlock()
	}
	return time.Duration(secs * float64(time.Second))
}
