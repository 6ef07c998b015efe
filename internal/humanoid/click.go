// internal/humanoid/click.go
package humanoid

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Click moves to target, hesitates, then presses and releases the left
// button with a sampled hold. The release is attempted even if the hold is
// interrupted so the page is never left with a pressed button.
func (h *Humanoid) Click(ctx context.Context, target Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.moveTo(ctx, target); err != nil {
		return err
	}
	if d := h.pauseDuration(1.0, 1.0); d > 0 {
		if err := h.executor.Sleep(ctx, d); err != nil {
			return err
		}
	}

	press := MouseEventData{Type: MousePress, X: target.X, Y: target.Y, Button: ButtonLeft, ClickCount: 1, Buttons: 1}
	if err := h.executor.DispatchMouseEvent(ctx, press); err != nil {
		return err
	}

	holdErr := h.executor.Sleep(ctx, h.holdDuration())

	releaseCtx := ctx
	if holdErr != nil {
		releaseCtx = context.WithoutCancel(ctx)
	}
	release := MouseEventData{Type: MouseRelease, X: target.X, Y: target.Y, Button: ButtonLeft, ClickCount: 1, Buttons: 0}
	if err := h.executor.DispatchMouseEvent(releaseCtx, release); err != nil {
		h.logger.Debug("Mouse release failed.", zap.Error(err))
		if holdErr == nil {
			return err
		}
	}
	return holdErr
}

func (h *Humanoid) holdDuration() time.Duration {
	lo, hi := h.cfg.ClickHoldMinMs, h.cfg.ClickHoldMaxMs
	ms := lo
	if hi > lo {
		ms += h.rng.Intn(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}
