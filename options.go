package pagecapture

import (
	"fmt"
	"image/color"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Export defaults.
const (
	DefaultScale       = 2.0
	DefaultSelector    = "body"
	DefaultJPEGQuality = 92
	DefaultSettleDelay = 100 * time.Millisecond
)

var discardLogger = slog.New(slog.DiscardHandler)

// exporterConfig holds internal configuration for an Exporter.
type exporterConfig struct {
	chromePath     string
	timeout        time.Duration
	noSandbox      bool
	autoDownload   bool
	headless       string
	viewportWidth  int
	viewportHeight int
	logger         *slog.Logger
	fetcher        Fetcher
}

func defaultConfig() exporterConfig {
	return exporterConfig{
		timeout:        60 * time.Second,
		headless:       "new",
		viewportWidth:  1280,
		viewportHeight: 800,
		logger:         discardLogger,
	}
}

// Option configures an [Exporter].
type Option func(*exporterConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *exporterConfig) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration for a single export.
// Defaults to 60 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *exporterConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *exporterConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload fetches a compatible Chromium build when no explicit
// path is configured.
func WithAutoDownload() Option {
	return func(c *exporterConfig) {
		c.autoDownload = true
	}
}

// WithViewport sets the window size used to lay out pages loaded by the
// Exporter itself.
func WithViewport(width, height int) Option {
	return func(c *exporterConfig) {
		if width > 0 {
			c.viewportWidth = width
		}
		if height > 0 {
			c.viewportHeight = height
		}
	}
}

// WithLogger sets the structured logger. Nothing is logged by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *exporterConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFetcher replaces the HTTP fetcher used to inline images.
func WithFetcher(f Fetcher) Option {
	return func(c *exporterConfig) {
		c.fetcher = f
	}
}

// ExportOptions controls a single export.
//
// A nil ExportOptions or zero-value fields use the defaults: selector
// "body", scale 2, opaque white background, A4 portrait, PNG encoding.
type ExportOptions struct {
	// Selector is the CSS selector of the capture target for pages the
	// Exporter loads itself. [Exporter.Export] and [Pipeline.Export] use
	// the surface's own target and ignore it.
	Selector string

	// Scale magnifies the capture uniformly. Defaults to 2.
	Scale float64

	// Background fills transparent regions. Defaults to opaque white.
	Background color.Color

	// Size is the paper format. Defaults to A4.
	Size PageSize

	// Orientation defaults to Portrait.
	Orientation Orientation

	// Encoding of the embedded bitmap. Defaults to PNG.
	Encoding ImageEncoding

	// JPEGQuality applies to EncodingJPEG. Defaults to 92.
	JPEGQuality int

	// SettleDelay is waited after freezing and before capturing so the
	// style change takes visual effect. Defaults to 100ms.
	SettleDelay time.Duration

	// RevealPrefixes lists class fragments of entrance-animated elements
	// that are forced visible. Nil uses DefaultRevealPrefixes; an empty
	// non-nil slice disables the reveal.
	RevealPrefixes []string

	// Exclude is an extra opt-in exclusion hook evaluated on the clone, on
	// top of the data-export-ignore="true" marker.
	Exclude func(*html.Node) bool

	// StrictResources fails with a taint CaptureError when an image its
	// origin refused is still referenced at capture time.
	StrictResources bool

	// MaxPages bounds the document length. Defaults to DefaultMaxPages.
	MaxPages int

	// Title is written to the document metadata.
	Title string
}

// DefaultExportOptions returns ExportOptions with every default filled in.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Selector:       DefaultSelector,
		Scale:          DefaultScale,
		Background:     color.White,
		Size:           A4,
		Orientation:    Portrait,
		Encoding:       EncodingPNG,
		JPEGQuality:    DefaultJPEGQuality,
		SettleDelay:    DefaultSettleDelay,
		RevealPrefixes: DefaultRevealPrefixes,
		MaxPages:       DefaultMaxPages,
	}
}

// resolved returns ExportOptions with all zero values replaced by defaults.
func (o *ExportOptions) resolved() ExportOptions {
	d := DefaultExportOptions()
	if o == nil {
		return d
	}
	r := *o
	if strings.TrimSpace(r.Selector) == "" {
		r.Selector = d.Selector
	}
	if r.Scale <= 0 {
		r.Scale = d.Scale
	}
	if r.Background == nil {
		r.Background = d.Background
	}
	if r.Size == (PageSize{}) {
		r.Size = d.Size
	}
	if r.JPEGQuality <= 0 {
		r.JPEGQuality = d.JPEGQuality
	}
	if r.SettleDelay <= 0 {
		r.SettleDelay = d.SettleDelay
	}
	if r.RevealPrefixes == nil {
		r.RevealPrefixes = d.RevealPrefixes
	}
	if r.MaxPages <= 0 {
		r.MaxPages = d.MaxPages
	}
	return r
}

// validate rejects values that have no sensible default.
func (o ExportOptions) validate() error {
	if o.Scale > 8 {
		return fmt.Errorf("%w: scale %g above 8", ErrInvalidOption, o.Scale)
	}
	if o.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality %d above 100", ErrInvalidOption, o.JPEGQuality)
	}
	return o.Size.Geometry(o.Orientation).Validate()
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return nil, fmt.Errorf("%w: color %q", ErrInvalidOption, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: color %q", ErrInvalidOption, s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
