package browser

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/humanoid"
)

type elementHandle struct {
	s    *Session
	node *cdp.Node
	desc string
}

var _ schemas.ElementHandle = (*elementHandle)(nil)

func (h *elementHandle) Describe() string { return h.desc }

// Click clicks the element. A dialog raised by the click is reported as a
// TransientUIError.
func (h *elementHandle) Click(ctx context.Context) error {
	if err := h.s.pendingDialog(); err != nil {
		return err
	}
	var err error
	if h.s.human != nil {
		err = h.humanClick(ctx)
	} else {
		err = h.s.run(ctx, chromedp.MouseClickNode(h.node))
	}
	if derr := h.s.pendingDialog(); derr != nil {
		return derr
	}
	if err != nil {
		return fmt.Errorf("click %s: %w", h.desc, err)
	}
	return nil
}

func (h *elementHandle) humanClick(ctx context.Context) error {
	var box *dom.BoxModel
	err := h.s.run(ctx,
		dom.ScrollIntoViewIfNeeded().WithNodeID(h.node.NodeID),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			box, err = dom.GetBoxModel().WithNodeID(h.node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("locate %s: %w", h.desc, err)
	}
	return h.s.human.Click(ctx, quadCenter(box.Content))
}

// SendKeys focuses the element and types text. A lone carriage return or
// newline is sent as an Enter key press.
func (h *elementHandle) SendKeys(ctx context.Context, text string) error {
	if err := h.s.pendingDialog(); err != nil {
		return err
	}
	if err := h.s.run(ctx, dom.Focus().WithNodeID(h.node.NodeID)); err != nil {
		return fmt.Errorf("focus %s: %w", h.desc, err)
	}

	var err error
	switch {
	case text == "\r" || text == "\n":
		err = h.s.run(ctx, chromedp.KeyEvent(kb.Enter))
	case h.s.human != nil:
		err = h.s.human.Type(ctx, text)
	default:
		err = h.s.run(ctx, input.InsertText(text))
	}
	if derr := h.s.pendingDialog(); derr != nil {
		return derr
	}
	if err != nil {
		return fmt.Errorf("type into %s: %w", h.desc, err)
	}
	return nil
}

// SetFiles attaches local files to a file input.
func (h *elementHandle) SetFiles(ctx context.Context, paths ...string) error {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		abs = append(abs, a)
	}
	if err := h.s.run(ctx, dom.SetFileInputFiles(abs).WithNodeID(h.node.NodeID)); err != nil {
		return fmt.Errorf("set files on %s: %w", h.desc, err)
	}
	return nil
}

// quadCenter returns the centroid of a box model quad.
func quadCenter(q dom.Quad) humanoid.Point {
	var p humanoid.Point
	if len(q) < 8 {
		return p
	}
	for i := 0; i < 8; i += 2 {
		p.X += q[i]
		p.Y += q[i+1]
	}
	p.X /= 4
	p.Y /= 4
	return p
}
