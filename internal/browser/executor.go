package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/internal/humanoid"
)

const (
	mouseEventTimeout = 10 * time.Second
	insertTextTimeout = 10 * time.Second
)

// cdpExecutor performs humanoid input on one tab.
type cdpExecutor struct {
	logger *zap.Logger
	run    func(ctx context.Context, actions ...chromedp.Action) error
}

var _ humanoid.Executor = (*cdpExecutor)(nil)

func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data humanoid.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))

	opCtx, cancel := context.WithTimeout(ctx, mouseEventTimeout)
	defer cancel()
	err := e.run(opCtx, p)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		e.logger.Debug("cdpExecutor DispatchMouseEvent timed out.", zap.Duration("timeout", mouseEventTimeout))
		return fmt.Errorf("cdpExecutor DispatchMouseEvent timed out after %v: %w", mouseEventTimeout, opCtx.Err())
	}
	return err
}

func (e *cdpExecutor) InsertText(ctx context.Context, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, insertTextTimeout)
	defer cancel()
	err := e.run(opCtx, input.InsertText(text))
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("cdpExecutor InsertText timed out after %v: %w", insertTextTimeout, opCtx.Err())
	}
	return err
}
