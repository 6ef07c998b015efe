package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/browser/stealth"
	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/humanoid"
)

const shutdownTimeout = 15 * time.Second

// Manager owns one Chrome process and its persistent profile.
type Manager struct {
	cfg        config.BrowserConfig
	profileDir string
	logger     *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

// NewManager prepares profileDir and launches Chrome. The process is not
// tied to ctx; it lives until Close. Failures are *schemas.SetupError.
func NewManager(ctx context.Context, cfg config.BrowserConfig, profileDir string, logger *zap.Logger) (*Manager, error) {
	logger = logger.Named("browser").With(zap.String("profile", profileDir))
	if err := PrepareProfile(profileDir); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(cfg, profileDir)...)
	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(logger.Sugar().Errorf)}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(logger.Sugar().Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	m := &Manager{
		cfg:           cfg,
		profileDir:    profileDir,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	// The first Run allocates the browser and must use the chromedp context itself.
	if err := chromedp.Run(browserCtx); err != nil {
		m.Close()
		return nil, &schemas.SetupError{Stage: "launch", Err: err}
	}
	m.logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return m, nil
}

// Login opens the client home page and waits for the chat list. On a fresh
// profile this is where the operator scans the QR code.
func (m *Manager) Login(ctx context.Context) error {
	loginCtx, cancel := context.WithTimeout(ctx, m.cfg.LoginTimeout)
	defer cancel()
	runCtx, stop := CombineContext(m.browserCtx, loginCtx)
	defer stop()

	m.logger.Info("Waiting for the chat list. Scan the QR code if prompted.",
		zap.String("url", m.cfg.BaseURL),
		zap.Duration("timeout", m.cfg.LoginTimeout))

	err := chromedp.Run(runCtx,
		stealth.Apply(m.cfg.Stealth, m.logger),
		chromedp.Navigate(m.cfg.BaseURL),
		chromedp.WaitVisible(m.cfg.ReadyXPath, chromedp.BySearch),
	)
	if err != nil {
		if errors.Is(loginCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("chat list did not appear within %v: %w", m.cfg.LoginTimeout, loginCtx.Err())
		} else if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &schemas.SetupError{Stage: "login", Err: err}
	}
	m.logger.Info("Logged in.")
	return nil
}

// NewSession returns a Session that opens conversations as tabs of this browser.
func (m *Manager) NewSession() *Session {
	s := &Session{
		browserCtx: m.browserCtx,
		cfg:        m.cfg,
		logger:     m.logger.Named("session"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if m.cfg.Humanoid.Enabled {
		exec := &cdpExecutor{logger: s.logger, run: s.run}
		s.human = humanoid.New(m.cfg.Humanoid, s.logger, exec, s.rng)
	}
	return s
}

// Close shuts Chrome down, waiting up to a grace period for it to exit.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(m.browserCtx) }()

		select {
		case err = <-done:
			if errors.Is(err, context.Canceled) {
				err = nil
			}
		case <-time.After(shutdownTimeout):
			m.logger.Warn("Browser shutdown timed out; killing the process.", zap.Duration("timeout", shutdownTimeout))
		}
		m.browserCancel()
		m.allocCancel()
		m.logger.Debug("Browser closed.")
	})
	return err
}
