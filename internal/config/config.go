// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration for a bulksend run.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Pacing   PacingConfig   `mapstructure:"pacing" yaml:"pacing"`
	Locators LocatorConfig  `mapstructure:"locators" yaml:"locators"`
	Message  MessageConfig  `mapstructure:"message" yaml:"message"`
	Contacts ContactsConfig `mapstructure:"contacts" yaml:"contacts"`
	Results  ResultsConfig  `mapstructure:"results" yaml:"results"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance and the messaging web client.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless" yaml:"headless"`
	DisableGPU bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Debug      bool          `mapstructure:"debug" yaml:"debug"`
	ProfileDir string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	ReadyXPath string        `mapstructure:"ready_xpath" yaml:"ready_xpath"`
	// LoginTimeout bounds the wait for the client to show the chat list,
	// which includes the time needed to scan a QR code on first use.
	LoginTimeout time.Duration  `mapstructure:"login_timeout" yaml:"login_timeout"`
	OpenTimeout  time.Duration  `mapstructure:"open_timeout" yaml:"open_timeout"`
	OpenSettle   FloatRange     `mapstructure:"open_settle" yaml:"open_settle"`
	Sessions     int            `mapstructure:"sessions" yaml:"sessions"`
	Args         []string       `mapstructure:"args" yaml:"args"`
	Humanoid     HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
	Stealth      StealthConfig  `mapstructure:"stealth" yaml:"stealth"`
}

// StealthConfig overrides the browser fingerprint. Empty fields keep the
// browser's own values.
type StealthConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
}

// FloatRange is an inclusive range of seconds.
type FloatRange struct {
	Min float64 `mapstructure:"min" yaml:"min"`
	Max float64 `mapstructure:"max" yaml:"max"`
}

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

// PacingConfig controls the delays between contacts and the cooldowns.
type PacingConfig struct {
	ShortDelay       FloatRange `mapstructure:"short_delay" yaml:"short_delay"`
	LongBreak        IntRange   `mapstructure:"long_break" yaml:"long_break"`
	MessageThreshold IntRange   `mapstructure:"message_threshold" yaml:"message_threshold"`
	SettleDelay      FloatRange `mapstructure:"settle_delay" yaml:"settle_delay"`
	// MaxPerMinute caps the contact rate. Zero disables the cap.
	MaxPerMinute float64 `mapstructure:"max_per_minute" yaml:"max_per_minute"`
	Seed         int64   `mapstructure:"seed" yaml:"seed"`
}

// LocatorSpec describes one strategy of a fallback ladder.
type LocatorSpec struct {
	Description string `mapstructure:"description" yaml:"description"`
	XPath       string `mapstructure:"xpath" yaml:"xpath"`
	// Mode is one of actionable, present or keyboard.
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// LocatorConfig holds the element resolution timeouts and optional ladder overrides.
type LocatorConfig struct {
	PerLocatorTimeout    time.Duration `mapstructure:"per_locator_timeout" yaml:"per_locator_timeout"`
	ValidityProbeTimeout time.Duration `mapstructure:"validity_probe_timeout" yaml:"validity_probe_timeout"`
	CleanupTimeout       time.Duration `mapstructure:"cleanup_timeout" yaml:"cleanup_timeout"`
	TransientRetryBudget int           `mapstructure:"transient_retry_budget" yaml:"transient_retry_budget"`

	Send             []LocatorSpec `mapstructure:"send" yaml:"send"`
	Attach           []LocatorSpec `mapstructure:"attach" yaml:"attach"`
	FileInput        []LocatorSpec `mapstructure:"file_input" yaml:"file_input"`
	Caption          []LocatorSpec `mapstructure:"caption" yaml:"caption"`
	MediaSend        []LocatorSpec `mapstructure:"media_send" yaml:"media_send"`
	InvalidIndicator []LocatorSpec `mapstructure:"invalid_indicator" yaml:"invalid_indicator"`
}

// MessageConfig selects what is sent to every contact.
type MessageConfig struct {
	Type            string   `mapstructure:"type" yaml:"type"`
	MediaPath       string   `mapstructure:"media_path" yaml:"media_path"`
	Templates       []string `mapstructure:"templates" yaml:"templates"`
	DefaultTemplate string   `mapstructure:"default_template" yaml:"default_template"`
	CountryCode     string   `mapstructure:"country_code" yaml:"country_code"`
}

// ContactsConfig locates the contact table.
type ContactsConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	NameColumn   string `mapstructure:"name_column" yaml:"name_column"`
	NumberColumn string `mapstructure:"number_column" yaml:"number_column"`
}

// ResultsConfig controls where result tables are written.
type ResultsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables the database sink.
type DatabaseConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Table string `mapstructure:"table" yaml:"table"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "bulksend")
	v.SetDefault("logger.log_file", "bulksend.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.profile_dir", "./chrome_profile")
	v.SetDefault("browser.base_url", "https://web.whatsapp.com")
	v.SetDefault("browser.ready_xpath", "//div[@title='Chats']")
	v.SetDefault("browser.login_timeout", "60s")
	v.SetDefault("browser.open_timeout", "45s")
	v.SetDefault("browser.open_settle.min", 2.0)
	v.SetDefault("browser.open_settle.max", 4.0)
	v.SetDefault("browser.sessions", 1)
	v.SetDefault("browser.stealth.enabled", true)
	setHumanoidDefaults(v)

	// -- Pacing --
	v.SetDefault("pacing.short_delay.min", 0.5)
	v.SetDefault("pacing.short_delay.max", 2.0)
	v.SetDefault("pacing.long_break.min", 30)
	v.SetDefault("pacing.long_break.max", 60)
	v.SetDefault("pacing.message_threshold.min", 10)
	v.SetDefault("pacing.message_threshold.max", 15)
	v.SetDefault("pacing.settle_delay.min", 1.0)
	v.SetDefault("pacing.settle_delay.max", 2.0)
	v.SetDefault("pacing.max_per_minute", 0)
	v.SetDefault("pacing.seed", 0)

	// -- Locators --
	v.SetDefault("locators.per_locator_timeout", "15s")
	v.SetDefault("locators.validity_probe_timeout", "10s")
	v.SetDefault("locators.cleanup_timeout", "10s")
	v.SetDefault("locators.transient_retry_budget", 1)

	// -- Message --
	v.SetDefault("message.type", "text")
	v.SetDefault("message.media_path", "")
	v.SetDefault("message.templates", []string{"message1.txt", "message2.txt"})
	v.SetDefault("message.default_template", "Hello {first_name}, this is a default message.")
	v.SetDefault("message.country_code", "+91")

	// -- Contacts / Results / Database --
	v.SetDefault("contacts.path", "contacts.csv")
	v.SetDefault("contacts.name_column", "Name")
	v.SetDefault("contacts.number_column", "Contact No")
	v.SetDefault("results.dir", "results")
	v.SetDefault("database.url", "")
	v.SetDefault("database.table", "delivery_outcomes")
}

// NewConfigFromViper unmarshals, expands and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in every filesystem path.
func (c *Config) ExpandPaths() error {
	paths := []*string{
		&c.Browser.ProfileDir,
		&c.Contacts.Path,
		&c.Results.Dir,
		&c.Message.MediaPath,
		&c.Logger.LogFile,
	}
	for i := range c.Message.Templates {
		paths = append(paths, &c.Message.Templates[i])
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("%s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.Sessions <= 0 {
		return fmt.Errorf("browser.sessions must be a positive integer")
	}
	if c.Browser.ProfileDir == "" {
		return fmt.Errorf("browser.profile_dir is required")
	}
	if c.Browser.LoginTimeout <= 0 || c.Browser.OpenTimeout <= 0 {
		return fmt.Errorf("browser.login_timeout and browser.open_timeout must be positive")
	}
	if err := c.Browser.OpenSettle.validate("browser.open_settle"); err != nil {
		return err
	}
	if err := c.Browser.Humanoid.Validate(); err != nil {
		return fmt.Errorf("browser.humanoid configuration invalid: %w", err)
	}
	if err := c.Pacing.Validate(); err != nil {
		return fmt.Errorf("pacing configuration invalid: %w", err)
	}
	if err := c.Locators.Validate(); err != nil {
		return fmt.Errorf("locators configuration invalid: %w", err)
	}
	if err := c.Message.Validate(); err != nil {
		return fmt.Errorf("message configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the pacing ranges.
func (p *PacingConfig) Validate() error {
	if err := p.ShortDelay.validate("short_delay"); err != nil {
		return err
	}
	if err := p.SettleDelay.validate("settle_delay"); err != nil {
		return err
	}
	if err := p.LongBreak.validate("long_break", 0); err != nil {
		return err
	}
	if err := p.MessageThreshold.validate("message_threshold", 1); err != nil {
		return err
	}
	if p.MaxPerMinute < 0 {
		return fmt.Errorf("max_per_minute cannot be negative")
	}
	return nil
}

// Validate checks the locator timeouts and ladder overrides.
func (l *LocatorConfig) Validate() error {
	if l.PerLocatorTimeout <= 0 {
		return fmt.Errorf("per_locator_timeout must be positive")
	}
	if l.ValidityProbeTimeout <= 0 {
		return fmt.Errorf("validity_probe_timeout must be positive")
	}
	if l.CleanupTimeout <= 0 {
		return fmt.Errorf("cleanup_timeout must be positive")
	}
	if l.TransientRetryBudget < 0 {
		return fmt.Errorf("transient_retry_budget cannot be negative")
	}
	ladders := map[string][]LocatorSpec{
		"send":              l.Send,
		"attach":            l.Attach,
		"file_input":        l.FileInput,
		"caption":           l.Caption,
		"media_send":        l.MediaSend,
		"invalid_indicator": l.InvalidIndicator,
	}
	for name, specs := range ladders {
		for i, s := range specs {
			if s.XPath == "" {
				return fmt.Errorf("%s[%d]: xpath is required", name, i)
			}
			switch s.Mode {
			case "", "actionable", "present", "keyboard":
			default:
				return fmt.Errorf("%s[%d]: unknown mode %q", name, i, s.Mode)
			}
		}
	}
	return nil
}

// Validate checks the message type and its dependent fields.
func (m *MessageConfig) Validate() error {
	switch m.Type {
	case "text":
	case "media":
		if m.MediaPath == "" {
			return fmt.Errorf("media_path is required when type is media")
		}
	default:
		return fmt.Errorf("type must be text or media, got %q", m.Type)
	}
	if m.CountryCode == "" || m.CountryCode[0] != '+' {
		return fmt.Errorf("country_code must start with '+'")
	}
	return nil
}

func (r FloatRange) validate(name string) error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%s cannot be negative", name)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s.min (%v) must not exceed %s.max (%v)", name, r.Min, name, r.Max)
	}
	return nil
}

func (r IntRange) validate(name string, floor int) error {
	if r.Min < floor {
		return fmt.Errorf("%s.min must be at least %d", name, floor)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s.min (%d) must not exceed %s.max (%d)", name, r.Min, name, r.Max)
	}
	return nil
}
