// internal/humanoid/types.go
package humanoid

import (
	"context"
	"time"
)

// MouseEventType names a low-level pointer event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
)

// MouseButton names a pointer button.
type MouseButton string

const (
	ButtonNone MouseButton = "none"
	ButtonLeft MouseButton = "left"
)

// MouseEventData holds one pointer event. Buttons is the bitfield of
// currently pressed buttons (1 = left).
type MouseEventData struct {
	Type       MouseEventType
	X          float64
	Y          float64
	Button     MouseButton
	ClickCount int
	Buttons    int64
}

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X, Y float64
}

// Lerp returns the point a fraction t of the way from p to q.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// Executor performs the raw input the Humanoid plans.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data MouseEventData) error
	// InsertText types text into the focused element.
	InsertText(ctx context.Context, text string) error
}
