package pagecapture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// MaxConfigSize limits config file input.
const MaxConfigSize = 1 << 20

// ErrConfig is returned for unreadable or invalid configuration files.
var ErrConfig = errors.New("pagecapture: invalid config")

// Config is the YAML configuration file read by the command line tool.
//
//	browser:
//	  chrome_path: /usr/bin/chromium
//	  no_sandbox: true
//	  timeout: 90s
//	export:
//	  size: letter
//	  scale: 1.5
//	  background: "#f4f4f4"
//	server:
//	  addr: ":8080"
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Export  ExportConfig  `yaml:"export"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// BrowserConfig configures the Exporter's browser.
type BrowserConfig struct {
	ChromePath     string `yaml:"chrome_path"`
	NoSandbox      bool   `yaml:"no_sandbox"`
	AutoDownload   bool   `yaml:"auto_download"`
	Timeout        string `yaml:"timeout"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// ExportConfig holds defaults for every export.
type ExportConfig struct {
	Selector        string   `yaml:"selector"`
	Scale           float64  `yaml:"scale"`
	Background      string   `yaml:"background"`
	Size            string   `yaml:"size"`
	Orientation     string   `yaml:"orientation"`
	Encoding        string   `yaml:"encoding"`
	JPEGQuality     int      `yaml:"jpeg_quality"`
	SettleDelay     string   `yaml:"settle_delay"`
	RevealPrefixes  []string `yaml:"reveal_prefixes"`
	StrictResources bool     `yaml:"strict_resources"`
	MaxPages        int      `yaml:"max_pages"`
	Title           string   `yaml:"title"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	// Concurrency bounds simultaneous exports. Zero uses GOMAXPROCS.
	Concurrency int `yaml:"concurrency"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// LoadConfig reads a YAML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration and validates every value.
func ParseConfig(data []byte) (*Config, error) {
	if len(data) > MaxConfigSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrConfig, len(data), MaxConfigSize)
	}
	var cfg Config
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that YAML decoding cannot.
func (c *Config) Validate() error {
	if _, err := c.ExportOptions(); err != nil {
		return fmt.Errorf("%w: export: %w", ErrConfig, err)
	}
	if _, err := parseDuration(c.Browser.Timeout); err != nil {
		return fmt.Errorf("%w: browser.timeout: %w", ErrConfig, err)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrConfig, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrConfig, c.Log.Format)
	}
	if c.Server.MaxBodyBytes < 0 || c.Server.Concurrency < 0 {
		return fmt.Errorf("%w: server limits must not be negative", ErrConfig)
	}
	return nil
}

// ExportOptions converts the export section into per-call options.
func (c *Config) ExportOptions() (*ExportOptions, error) {
	e := c.Export
	o := &ExportOptions{
		Selector:        e.Selector,
		Scale:           e.Scale,
		JPEGQuality:     e.JPEGQuality,
		RevealPrefixes:  e.RevealPrefixes,
		StrictResources: e.StrictResources,
		MaxPages:        e.MaxPages,
		Title:           e.Title,
	}
	var err error
	if e.Background != "" {
		if o.Background, err = ParseColor(e.Background); err != nil {
			return nil, err
		}
	}
	if e.Size != "" {
		if o.Size, err = ParsePageSize(e.Size); err != nil {
			return nil, err
		}
	}
	if o.Orientation, err = ParseOrientation(e.Orientation); err != nil {
		return nil, err
	}
	if o.Encoding, err = ParseEncoding(e.Encoding); err != nil {
		return nil, err
	}
	if o.SettleDelay, err = parseDuration(e.SettleDelay); err != nil {
		return nil, err
	}
	if err := o.resolved().validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// ExporterOptions converts the browser section into Exporter options.
func (c *Config) ExporterOptions(logger *slog.Logger) []Option {
	b := c.Browser
	opts := []Option{WithLogger(logger), WithViewport(b.ViewportWidth, b.ViewportHeight)}
	if b.ChromePath != "" {
		opts = append(opts, WithChromePath(b.ChromePath))
	}
	if b.NoSandbox {
		opts = append(opts, WithNoSandbox())
	}
	if b.AutoDownload {
		opts = append(opts, WithAutoDownload())
	}
	if d, err := parseDuration(b.Timeout); err == nil && d > 0 {
		opts = append(opts, WithTimeout(d))
	}
	return opts
}

// ParseLogLevel maps a level name to a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return l, nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
