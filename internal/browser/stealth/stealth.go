// Package stealth masks the most common automation fingerprints and applies
// an optional persona to each tab.
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/internal/config"
)

//go:embed evasions.js
var evasionsScript string

// personaData is exposed to evasions.js before it runs.
type personaData struct {
	Platform  string   `json:"platform,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// Script returns the JavaScript injected into every new document.
func Script(cfg config.StealthConfig) (string, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(personaData{
		Platform:  cfg.Platform,
		Languages: cfg.Languages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("window.__bulksendPersona = %s;\n%s", data, evasionsScript), nil
}

// AcceptLanguage builds an Accept-Language header value with descending q-values.
func AcceptLanguage(languages []string) string {
	parts := make([]string, 0, len(languages))
	for i, lang := range languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - float64(i)*0.1
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// Apply returns the actions that apply cfg to the current tab. It must run
// before the tab navigates. Disabled configs produce no actions.
func Apply(cfg config.StealthConfig, logger *zap.Logger) chromedp.Tasks {
	if !cfg.Enabled {
		return nil
	}
	if logger != nil {
		logger.Debug("Applying browser stealth persona.",
			zap.String("user_agent", cfg.UserAgent),
			zap.String("platform", cfg.Platform),
			zap.String("timezone", cfg.Timezone))
	}

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := Script(cfg)
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}

	if cfg.UserAgent != "" {
		ua := emulation.SetUserAgentOverride(cfg.UserAgent)
		if cfg.Platform != "" {
			ua = ua.WithPlatform(cfg.Platform)
		}
		if len(cfg.Languages) > 0 {
			ua = ua.WithAcceptLanguage(AcceptLanguage(cfg.Languages))
		}
		tasks = append(tasks, ua)
	}
	if len(cfg.Languages) > 0 {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": AcceptLanguage(cfg.Languages),
		}))
	}
	if cfg.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(cfg.Timezone))
	}
	if cfg.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(cfg.Locale))
	}
	return tasks
}
