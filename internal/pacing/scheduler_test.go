package pacing

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/bulksend/internal/config"
)

// recordingSleeper captures requested durations without sleeping.
type recordingSleeper struct {
	mu        sync.Mutex
	durations []time.Duration
	err       error
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, d)
	if r.err != nil {
		return r.err
	}
	return ctx.Err()
}

func (r *recordingSleeper) calls() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.durations...)
}

func testConfig() config.PacingConfig {
	return config.PacingConfig{
		ShortDelay:       config.FloatRange{Min: 0.5, Max: 2},
		LongBreak:        config.IntRange{Min: 30, Max: 60},
		MessageThreshold: config.IntRange{Min: 10, Max: 15},
		SettleDelay:      config.FloatRange{Min: 1, Max: 2},
	}
}

func newTestScheduler(t *testing.T, seed int64, cfg config.PacingConfig) (*Scheduler, *recordingSleeper) {
	t.Helper()
	sleeper := &recordingSleeper{}
	s := NewScheduler(cfg, zaptest.NewLogger(t), WithSleeper(sleeper), WithRand(rand.New(rand.NewSource(seed))))
	return s, sleeper
}

func TestNewState_ThresholdInRange(t *testing.T) {
	s, _ := newTestScheduler(t, 1, testConfig())
	for i := 0; i < 200; i++ {
		st := s.NewState()
		assert.Zero(t, st.ActionsSinceLastBreak)
		assert.GreaterOrEqual(t, st.NextBreakThreshold, 10)
		assert.LessOrEqual(t, st.NextBreakThreshold, 15)
	}
}

func TestBeforeAction_ShortDelay(t *testing.T) {
	s, sleeper := newTestScheduler(t, 2, testConfig())
	st := s.NewState()

	for i := 0; i < 100; i++ {
		next, err := s.BeforeAction(context.Background(), st)
		require.NoError(t, err)
		assert.Equal(t, st, next, "BeforeAction does not count actions")
	}
	for _, d := range sleeper.calls() {
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
	assert.Len(t, sleeper.calls(), 100)
}

// The cooldown fires on the call that brings the count to the threshold,
// for every threshold in the configured range.
func TestAfterAction_CooldownAtThreshold(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		s, sleeper := newTestScheduler(t, seed, testConfig())
		st := s.NewState()
		threshold := st.NextBreakThreshold

		var err error
		for i := 1; i < threshold; i++ {
			st, err = s.AfterAction(context.Background(), st)
			require.NoError(t, err)
			require.Equal(t, i, st.ActionsSinceLastBreak)
			require.Empty(t, sleeper.calls(), "no cooldown before the threshold")
		}

		st, err = s.AfterAction(context.Background(), st)
		require.NoError(t, err)
		assert.Zero(t, st.ActionsSinceLastBreak, "counter resets when the cooldown fires")
		assert.GreaterOrEqual(t, st.NextBreakThreshold, 10)
		assert.LessOrEqual(t, st.NextBreakThreshold, 15)

		cooldowns := sleeper.calls()
		require.Len(t, cooldowns, 1, "exactly one cooldown per crossing")
		assert.GreaterOrEqual(t, cooldowns[0], 30*time.Second)
		assert.LessOrEqual(t, cooldowns[0], 60*time.Second)
		assert.Equal(t, time.Duration(0), cooldowns[0]%time.Second, "cooldowns are whole seconds")
	}
}

func TestAfterAction_InvariantHoldsAcrossManyActions(t *testing.T) {
	s, sleeper := newTestScheduler(t, 99, testConfig())
	st := s.NewState()
	actions := 500

	var err error
	for i := 0; i < actions; i++ {
		st, err = s.AfterAction(context.Background(), st)
		require.NoError(t, err)
		require.Less(t, st.ActionsSinceLastBreak, st.NextBreakThreshold)
	}
	n := len(sleeper.calls())
	assert.GreaterOrEqual(t, n, actions/15)
	assert.LessOrEqual(t, n, actions/10)
}

func TestAfterAction_CancelledCooldownLeavesResetState(t *testing.T) {
	cfg := testConfig()
	cfg.MessageThreshold = config.IntRange{Min: 2, Max: 2}
	s, sleeper := newTestScheduler(t, 5, cfg)
	sleeper.err = context.Canceled

	st := s.NewState()
	st, err := s.AfterAction(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 1, st.ActionsSinceLastBreak)

	st, err = s.AfterAction(context.Background(), st)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, State{ActionsSinceLastBreak: 0, NextBreakThreshold: 2}, st)
}

func TestAfterAction_RepairsZeroState(t *testing.T) {
	s, _ := newTestScheduler(t, 3, testConfig())
	st, err := s.AfterAction(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActionsSinceLastBreak)
	assert.GreaterOrEqual(t, st.NextBreakThreshold, 10)

	st, err = s.AfterAction(context.Background(), State{ActionsSinceLastBreak: 40, NextBreakThreshold: 12})
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActionsSinceLastBreak)
}

func TestDegenerateRanges(t *testing.T) {
	cfg := config.PacingConfig{
		ShortDelay:       config.FloatRange{Min: 1, Max: 1},
		LongBreak:        config.IntRange{Min: 5, Max: 5},
		MessageThreshold: config.IntRange{Min: 1, Max: 1},
		SettleDelay:      config.FloatRange{},
	}
	s, sleeper := newTestScheduler(t, 1, cfg)
	st := s.NewState()

	st, err := s.BeforeAction(context.Background(), st)
	require.NoError(t, err)
	st, err = s.AfterAction(context.Background(), st)
	require.NoError(t, err)
	require.NoError(t, s.Settle(context.Background()))

	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 0}, sleeper.calls())
	assert.Equal(t, State{NextBreakThreshold: 1}, st)
}

func TestTimerSleeper(t *testing.T) {
	var ts timerSleeper

	start := time.Now()
	require.NoError(t, ts.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start = time.Now()
	err := ts.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "the wait must be interruptible")
}

func TestRateCeiling(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	s, _ := newTestScheduler(t, 1, testConfig())
	s.limiter = limiter

	st := s.NewState()
	_, err := s.BeforeAction(context.Background(), st)
	require.NoError(t, err, "the first token is available immediately")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.BeforeAction(ctx, st)
	assert.Error(t, err, "the second action must wait for the limiter")
}

func TestNewScheduler_LimiterFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerMinute = 30
	s := NewScheduler(cfg, zaptest.NewLogger(t))
	require.NotNil(t, s.limiter)
	assert.InDelta(t, 0.5, float64(s.limiter.Limit()), 1e-9)

	cfg.MaxPerMinute = 0
	assert.Nil(t, NewScheduler(cfg, zaptest.NewLogger(t)).limiter)
}

func TestSeedIsReproducible(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 42
	a := NewScheduler(cfg, zaptest.NewLogger(t))
	b := NewScheduler(cfg, zaptest.NewLogger(t))
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.NewState(), b.NewState())
	}
}
