// Package compose turns message templates into per-contact intents.
package compose

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/config"
)

// Placeholder is replaced by the contact's greeting name.
const Placeholder = "{first_name}"

// Personalize fills tmpl for one recipient. Templates without the
// placeholder get a salutation prepended.
func Personalize(tmpl, greeting string) string {
	if strings.Contains(tmpl, Placeholder) {
		return strings.ReplaceAll(tmpl, Placeholder, greeting)
	}
	return fmt.Sprintf("Hello %s, %s", greeting, tmpl)
}

// LoadTemplates reads every template file. A file that cannot be read is
// logged and replaced by fallback so that one bad path does not stop a run.
func LoadTemplates(paths []string, fallback string, logger *zap.Logger) []string {
	if len(paths) == 0 {
		return []string{fallback}
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		body, err := os.ReadFile(p)
		if err != nil {
			logger.Error("Template unavailable, using default.", zap.String("path", p), zap.Error(err))
			out = append(out, fallback)
			continue
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			logger.Warn("Template is empty, using default.", zap.String("path", p))
			text = fallback
		}
		out = append(out, text)
	}
	return out
}

// Composer picks a random template per contact and wraps the result in a
// MessageIntent of the configured kind.
type Composer struct {
	templates []string
	kind      schemas.IntentKind
	mediaPath string
	logger    *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

var _ schemas.Composer = (*Composer)(nil)

// Option configures a Composer.
type Option func(*Composer)

// WithRand sets the random source used for template selection.
func WithRand(rng *rand.Rand) Option {
	return func(c *Composer) { c.rng = rng }
}

// New builds a Composer from the message configuration.
func New(cfg config.MessageConfig, logger *zap.Logger, opts ...Option) (*Composer, error) {
	kind, err := schemas.ParseIntentKind(cfg.Type)
	if err != nil {
		return nil, err
	}
	if kind == schemas.IntentMedia {
		if cfg.MediaPath == "" {
			return nil, errors.New("media intent requires a media path")
		}
		if _, err := os.Stat(cfg.MediaPath); err != nil {
			return nil, fmt.Errorf("media file not accessible: %w", err)
		}
	}

	log := logger.Named("compose")
	c := &Composer{
		templates: LoadTemplates(cfg.Templates, cfg.DefaultTemplate, log),
		kind:      kind,
		mediaPath: cfg.MediaPath,
		logger:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c, nil
}

// Templates returns the loaded template bodies.
func (c *Composer) Templates() []string {
	return append([]string(nil), c.templates...)
}

// Compose implements schemas.Composer.
func (c *Composer) Compose(contact schemas.Contact) (schemas.MessageIntent, error) {
	c.mu.Lock()
	tmpl := c.templates[c.rng.Intn(len(c.templates))]
	c.mu.Unlock()

	greeting := contact.Normalized.GreetingName
	if greeting == "" {
		greeting = "there"
	}
	body := Personalize(tmpl, greeting)

	if c.kind == schemas.IntentMedia {
		return schemas.MediaIntent(c.mediaPath, body), nil
	}
	return schemas.TextIntent(body), nil
}
