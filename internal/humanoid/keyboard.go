// internal/humanoid/keyboard.go
package humanoid

import (
	"context"
	"time"
)

// Type enters text one character at a time with a sampled gap between
// characters. The target element must already have focus.
func (h *Humanoid) Type(ctx context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	runes := []rune(text)
	for i, r := range runes {
		if err := h.executor.InsertText(ctx, string(r)); err != nil {
			return err
		}
		if i == len(runes)-1 {
			break
		}
		if d := h.keyDelay(); d > 0 {
			if err := h.executor.Sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Humanoid) keyDelay() time.Duration {
	ms := h.cfg.KeyDelayMeanMs + h.rng.NormFloat64()*h.cfg.KeyDelayStdDevMs
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
