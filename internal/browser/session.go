package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/browser/stealth"
	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/humanoid"
)

const (
	queryPollInterval = 250 * time.Millisecond
	dismissPause      = time.Second
)

var errNoConversation = errors.New("no conversation is open")

// visibleJS runs with the element as this. Elements hidden through style
// keep their layout box, so the computed style is checked as well.
const visibleJS = `function() {
	const style = window.getComputedStyle(this);
	if (style.display === 'none' || style.visibility === 'hidden' || style.visibility === 'collapse') {
		return false;
	}
	if (parseFloat(style.opacity) === 0) {
		return false;
	}
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// Session opens one conversation tab at a time on a shared browser. It is
// not safe for concurrent conversations.
type Session struct {
	browserCtx context.Context
	cfg        config.BrowserConfig
	logger     *zap.Logger
	rng        *rand.Rand
	human      *humanoid.Humanoid

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc

	dialogMu sync.Mutex
	dialog   *page.EventJavascriptDialogOpening
}

var _ schemas.Session = (*Session)(nil)

func (s *Session) currentTab() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabCtx
}

// run executes actions on the open tab, bounded by ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tab := s.currentTab()
	if tab == nil {
		return errNoConversation
	}
	runCtx, stop := CombineContext(tab, ctx)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventJavascriptDialogOpening:
		s.logger.Warn("JavaScript dialog opened.", zap.String("type", string(e.Type)), zap.String("message", e.Message))
		s.setDialog(e)
	case *page.EventJavascriptDialogClosed:
		s.setDialog(nil)
	}
}

func (s *Session) setDialog(e *page.EventJavascriptDialogOpening) {
	s.dialogMu.Lock()
	s.dialog = e
	s.dialogMu.Unlock()
}

// pendingDialog reports an open JavaScript dialog as a TransientUIError.
func (s *Session) pendingDialog() error {
	s.dialogMu.Lock()
	defer s.dialogMu.Unlock()
	if s.dialog == nil {
		return nil
	}
	return &schemas.TransientUIError{Kind: string(s.dialog.Type), Message: s.dialog.Message}
}

// OpenConversation opens a new tab on the chat deep link for number and waits
// for the document, then a sampled settle delay for the client to render.
func (s *Session) OpenConversation(ctx context.Context, number, prefill string) error {
	if s.currentTab() != nil {
		if err := s.CloseConversation(ctx); err != nil {
			s.logger.Warn("Failed to close previous conversation.", zap.Error(err))
		}
	}
	target, err := SendURL(s.cfg.BaseURL, number, prefill)
	if err != nil {
		return err
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	chromedp.ListenTarget(tabCtx, s.onTargetEvent)
	// The first Run creates the target and must use the tab context itself.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return fmt.Errorf("failed to open tab: %w", err)
	}
	s.mu.Lock()
	s.tabCtx, s.tabCancel = tabCtx, tabCancel
	s.mu.Unlock()

	openCtx, cancel := context.WithTimeout(ctx, s.cfg.OpenTimeout)
	defer cancel()
	err = s.run(openCtx,
		stealth.Apply(s.cfg.Stealth, s.logger),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(openCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("conversation did not load within %v: %w", s.cfg.OpenTimeout, openCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	settle := s.sampleSettle()
	s.logger.Debug("Conversation opened.", zap.String("number", number), zap.Duration("settle", settle))
	return sleepCtx(ctx, settle)
}

func (s *Session) sampleSettle() time.Duration {
	r := s.cfg.OpenSettle
	secs := r.Min
	if r.Max > r.Min {
		secs += s.rng.Float64() * (r.Max - r.Min)
	}
	return time.Duration(secs * float64(time.Second))
}

// Query polls until an element matching q exists, and is rendered and
// enabled when q.Actionable is set. Expiry of ctx's deadline is reported as
// schemas.ErrNotFound.
func (s *Session) Query(ctx context.Context, q schemas.ElementQuery) (schemas.ElementHandle, error) {
	if s.currentTab() == nil {
		return nil, schemas.ErrNotFound
	}
	for {
		if err := s.pendingDialog(); err != nil {
			return nil, err
		}

		var nodes []*cdp.Node
		err := s.run(ctx, chromedp.Nodes(q.XPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
		if err == nil {
			for _, n := range nodes {
				if !q.Actionable || s.actionable(ctx, n) {
					return &elementHandle{s: s, node: n, desc: q.Description}, nil
				}
			}
		}

		if derr := s.pendingDialog(); derr != nil {
			return nil, derr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, schemas.ErrNotFound
			}
			return nil, ctxErr
		}
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q.Description, err)
		}
		if err := sleepCtx(ctx, queryPollInterval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, schemas.ErrNotFound
			}
			return nil, err
		}
	}
}

// actionable reports whether n is visible and not disabled.
func (s *Session) actionable(ctx context.Context, n *cdp.Node) bool {
	if hasAttribute(n, "disabled") || n.AttributeValue("aria-disabled") == "true" {
		return false
	}
	var visible bool
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.CallFunctionOnNode(ctx, n, visibleJS, &visible)
	}))
	if err != nil {
		s.logger.Debug("Visibility check failed.", zap.Error(err))
		return false
	}
	return visible
}

// DismissInterstitial accepts an open JavaScript dialog and gives the page a
// moment to recover. It is a no-op when nothing is open.
func (s *Session) DismissInterstitial(ctx context.Context) error {
	if s.pendingDialog() == nil {
		s.logger.Debug("No dialog to dismiss.")
		return nil
	}
	if err := s.run(ctx, page.HandleJavaScriptDialog(true)); err != nil {
		return fmt.Errorf("failed to accept dialog: %w", err)
	}
	s.setDialog(nil)
	return sleepCtx(ctx, dismissPause)
}

// CloseConversation closes the conversation tab and brings the main tab back
// to the front.
func (s *Session) CloseConversation(ctx context.Context) error {
	s.mu.Lock()
	tab, cancel := s.tabCtx, s.tabCancel
	s.tabCtx, s.tabCancel = nil, nil
	s.mu.Unlock()
	s.setDialog(nil)
	if tab == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(tab) }()

	var err error
	select {
	case err = <-done:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-ctx.Done():
		err = fmt.Errorf("closing conversation tab: %w", ctx.Err())
	}
	cancel()

	frontCtx, stop := CombineContext(s.browserCtx, ctx)
	defer stop()
	if ferr := chromedp.Run(frontCtx, page.BringToFront()); ferr != nil {
		s.logger.Debug("Failed to bring main tab to front.", zap.Error(ferr))
	}
	return err
}

func hasAttribute(n *cdp.Node, name string) bool {
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if n.Attributes[i] == name {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
