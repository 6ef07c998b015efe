// Package browser drives the messaging web client in Chrome over the
// DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/bulksend/internal/config"
)

// flag is one Chrome command-line switch. A false bool omits the switch.
type flag struct {
	name  string
	value interface{}
}

// allocatorFlags lists the switches applied on top of chromedp's defaults.
// Later entries win, so user args can override anything here.
func allocatorFlags(cfg config.BrowserConfig, profileDir string) []flag {
	flags := []flag{
		{"headless", cfg.Headless},
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"user-data-dir", profileDir},
	}
	if cfg.DisableGPU {
		flags = append(flags, flag{"disable-gpu", true})
	}
	if cfg.Stealth.Enabled {
		flags = append(flags, flag{"disable-blink-features", "AutomationControlled"})
		if cfg.Stealth.UserAgent != "" {
			flags = append(flags, flag{"user-agent", cfg.Stealth.UserAgent})
		}
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			flags = append(flags, flag{key, value})
		} else {
			flags = append(flags, flag{key, true})
		}
	}
	return flags
}

// AllocatorOptions returns the exec allocator options for one browser
// process using profileDir as its user data directory.
func AllocatorOptions(cfg config.BrowserConfig, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range allocatorFlags(cfg, profileDir) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}

// SendURL builds the client's deep link that opens a chat with number and
// optionally pre-fills the composer with text.
func SendURL(baseURL, number, text string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/send")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	q := url.Values{}
	q.Set("phone", strings.TrimPrefix(number, "+"))
	if text != "" {
		q.Set("text", text)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ProfileDirFor returns the user data directory of worker i out of n.
// A single worker uses base unchanged.
func ProfileDirFor(base string, i, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", strings.TrimRight(base, "/"), i+1)
}

// CombineContext returns a context that carries parent's values and is
// cancelled when either parent or secondary is done.
func CombineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
