// internal/humanoid/humanoid_test.go
package humanoid

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bulksend/internal/config"
)

func testConfig() config.HumanoidConfig {
	return config.HumanoidConfig{
		Enabled:          true,
		ClickHoldMinMs:   20,
		ClickHoldMaxMs:   200,
		PauseMeanMs:      150,
		PauseStdDevMs:    40,
		KeyDelayMeanMs:   60,
		KeyDelayStdDevMs: 20,
		MoveSteps:        8,
	}
}

func setupTest(t *testing.T) (*Humanoid, *mockExecutor) {
	t.Helper()
	mock := newMockExecutor()
	h := New(testConfig(), zaptest.NewLogger(t), mock, rand.New(rand.NewSource(1)))
	return h, mock
}

func TestClick_GlidesToTarget(t *testing.T) {
	h, mock := setupTest(t)
	target := Point{X: 300, Y: 200}

	require.NoError(t, h.Click(context.Background(), target))

	events, sleeps := mock.snapshot()
	require.Len(t, events, 10)
	moves := events[:8]
	for _, e := range moves {
		assert.Equal(t, MouseMove, e.Type)
		assert.Equal(t, int64(0), e.Buttons)
	}
	assert.Equal(t, target, Point{X: moves[7].X, Y: moves[7].Y}, "the last step lands exactly")
	assert.Equal(t, target, h.pos)
	assert.Less(t, moves[0].X, moves[4].X, "movement progresses toward the target")
	require.GreaterOrEqual(t, len(sleeps), 7)
	for _, d := range sleeps[:7] {
		assert.Equal(t, stepInterval, d)
	}
}

func TestClick_Sequence(t *testing.T) {
	h, mock := setupTest(t)
	target := Point{X: 125, Y: 125}

	require.NoError(t, h.Click(context.Background(), target))

	events, _ := mock.snapshot()
	pressIdx, releaseIdx := -1, -1
	for i, e := range events {
		switch e.Type {
		case MousePress:
			pressIdx = i
			assert.Equal(t, int64(1), e.Buttons)
			assert.Equal(t, ButtonLeft, e.Button)
		case MouseRelease:
			releaseIdx = i
			assert.Equal(t, int64(0), e.Buttons)
		}
	}
	require.NotEqual(t, -1, pressIdx)
	require.NotEqual(t, -1, releaseIdx)
	assert.Greater(t, pressIdx, 0, "should move before pressing")
	assert.Equal(t, pressIdx+1, releaseIdx)
	assert.Equal(t, target.X, events[pressIdx].X)
	assert.Equal(t, target.Y, events[releaseIdx].Y)
}

func TestClick_HoldWithinRange(t *testing.T) {
	for seed := int64(1); seed <= 30; seed++ {
		mock := newMockExecutor()
		var hold time.Duration
		pressed := false
		mock.MockDispatchMouseEvent = func(ctx context.Context, data MouseEventData) error {
			pressed = data.Type == MousePress
			return mock.DefaultDispatchMouseEvent(ctx, data)
		}
		mock.MockSleep = func(ctx context.Context, d time.Duration) error {
			if pressed {
				hold = d
			}
			return mock.DefaultSleep(ctx, d)
		}

		h := New(testConfig(), zaptest.NewLogger(t), mock, rand.New(rand.NewSource(seed)))
		require.NoError(t, h.Click(context.Background(), Point{X: 10, Y: 10}))
		assert.GreaterOrEqual(t, hold, 20*time.Millisecond)
		assert.LessOrEqual(t, hold, 200*time.Millisecond)
	}
}

func TestClick_ReleasesAfterInterruptedHold(t *testing.T) {
	h, mock := setupTest(t)
	ctx, cancel := context.WithCancel(context.Background())

	pressed := false
	mock.MockDispatchMouseEvent = func(c context.Context, data MouseEventData) error {
		if data.Type == MousePress {
			pressed = true
		}
		return mock.DefaultDispatchMouseEvent(c, data)
	}
	mock.MockSleep = func(c context.Context, d time.Duration) error {
		if pressed {
			cancel()
			return context.Canceled
		}
		return mock.DefaultSleep(c, d)
	}

	err := h.Click(ctx, Point{X: 50, Y: 50})
	assert.ErrorIs(t, err, context.Canceled)

	events, _ := mock.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, MouseRelease, last.Type, "the button must not stay pressed")
}

func TestClick_MoveFails(t *testing.T) {
	h, mock := setupTest(t)
	mock.failWith = errors.New("target closed")

	err := h.Click(context.Background(), Point{X: 1, Y: 1})
	assert.EqualError(t, err, "target closed")
	events, _ := mock.snapshot()
	assert.Len(t, events, 1)
}

func TestPauseDuration(t *testing.T) {
	h, _ := setupTest(t)
	var total time.Duration
	const n = 200
	for i := 0; i < n; i++ {
		total += h.pauseDuration(1.0, 1.0)
	}
	mean := total / n
	assert.InDelta(t, float64(150*time.Millisecond), float64(mean), float64(30*time.Millisecond))
}

func TestClick_ZeroPauseDoesNotSleep(t *testing.T) {
	cfg := testConfig()
	cfg.PauseMeanMs = 0
	cfg.PauseStdDevMs = 0
	mock := newMockExecutor()
	h := New(cfg, zaptest.NewLogger(t), mock, rand.New(rand.NewSource(1)))

	require.NoError(t, h.Click(context.Background(), Point{X: 40, Y: 40}))

	_, sleeps := mock.snapshot()
	assert.Len(t, sleeps, 8, "seven step intervals and the hold")
}

func TestType(t *testing.T) {
	h, mock := setupTest(t)
	require.NoError(t, h.Type(context.Background(), "Hi ü"))

	assert.Equal(t, []string{"H", "i", " ", "ü"}, mock.typed)
	_, sleeps := mock.snapshot()
	assert.LessOrEqual(t, len(sleeps), 3, "no gap after the last character")
	for _, d := range sleeps {
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestType_Cancelled(t *testing.T) {
	h, _ := setupTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Type(ctx, "abc"), context.Canceled)
}
