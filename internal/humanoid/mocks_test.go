// internal/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"sync"
	"time"
)

// mockExecutor records every call. Override funcs replace the default
// behavior and may call the Default* methods themselves.
type mockExecutor struct {
	mu       sync.Mutex
	events   []MouseEventData
	typed    []string
	sleeps   []time.Duration
	calls    []string
	failWith error

	MockSleep              func(ctx context.Context, d time.Duration) error
	MockDispatchMouseEvent func(ctx context.Context, data MouseEventData) error
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{}
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if m.MockSleep != nil {
		return m.MockSleep(ctx, d)
	}
	return m.DefaultSleep(ctx, d)
}

func (m *mockExecutor) DefaultSleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	m.calls = append(m.calls, "sleep")
	return ctx.Err()
}

func (m *mockExecutor) DispatchMouseEvent(ctx context.Context, data MouseEventData) error {
	if m.MockDispatchMouseEvent != nil {
		return m.MockDispatchMouseEvent(ctx, data)
	}
	return m.DefaultDispatchMouseEvent(ctx, data)
}

func (m *mockExecutor) DefaultDispatchMouseEvent(ctx context.Context, data MouseEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Record first so releases sent on a detached context are still visible.
	m.events = append(m.events, data)
	m.calls = append(m.calls, string(data.Type))
	if m.failWith != nil {
		return m.failWith
	}
	return ctx.Err()
}

func (m *mockExecutor) InsertText(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typed = append(m.typed, text)
	m.calls = append(m.calls, "text")
	return ctx.Err()
}

func (m *mockExecutor) snapshot() ([]MouseEventData, []time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MouseEventData(nil), m.events...), append([]time.Duration(nil), m.sleeps...)
}
