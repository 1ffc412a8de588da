package pagecapture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// Exporter exports web documents to paginated PDF files.
//
// An Exporter manages a headless browser instance that is reused across
// exports. It is safe for concurrent use; every export works in its own
// tabs.
//
// Call [Exporter.Close] when the Exporter is no longer needed to release
// browser resources.
type Exporter struct {
	cfg           exporterConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewExporter creates an Exporter with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Exporter.Close] when finished.
func NewExporter(opts ...Option) (*Exporter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser(context.Background(), cfg.logger)
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
		chromedp.WindowSize(cfg.viewportWidth, cfg.viewportHeight),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("pagecapture: starting browser: %w", err)
	}

	cfg.logger.Debug("browser started", "chrome", cfg.chromePath, "headless", cfg.headless)
	return &Exporter{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases all resources held by the Exporter, including the
// browser process. Close is idempotent.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.browserCancel()
	e.allocCancel()
	return nil
}

// ExportHTML exports an HTML string. The markup is loaded into a blank
// document, so it is treated like remote content: relative references do
// not resolve and file:// images are neither loaded nor inlined. Use
// [Exporter.ExportFile] for documents that reference local files.
func (e *Exporter) ExportHTML(ctx context.Context, html, filename string, opts *ExportOptions) (*Result, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	return e.exportPage(ctx, htmlSource(html), filename, opts)
}

// ExportURL exports the web page at rawURL.
func (e *Exporter) ExportURL(ctx context.Context, rawURL, filename string, opts *ExportOptions) (*Result, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("pagecapture: invalid URL %q: %w", rawURL, err)
	}
	return e.exportPage(ctx, urlSource(u), filename, opts)
}

// ExportFile exports a local HTML file. Images next to the file are
// inlined from disk.
func (e *Exporter) ExportFile(ctx context.Context, path, filename string, opts *ExportOptions) (*Result, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("pagecapture: resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("pagecapture: %w", err)
	}
	return e.exportPage(ctx, urlSource(&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}), filename, opts)
}

// Export runs the pipeline on a caller-owned surface, typically a
// [ChromeSurface] over a tab the caller already drives. Rasterization
// happens in a tab of the Exporter's browser. The surface's own selector
// picks the capture target; opts.Selector is not consulted.
func (e *Exporter) Export(ctx context.Context, s Surface, filename string, opts *ExportOptions) (*Result, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.pipeline(false).Export(ctx, s, filename, opts)
}

// pageSource describes how a document reaches the export tab.
type pageSource struct {
	name string
	load chromedp.Action
	// local grants file:// access to the image fetcher.
	local bool
}

func htmlSource(html string) pageSource {
	return pageSource{
		name: "inline HTML",
		load: chromedp.Tasks{chromedp.Navigate("about:blank"), setDocumentContent(html)},
	}
}

func urlSource(u *url.URL) pageSource {
	return pageSource{
		name:  u.String(),
		load:  chromedp.Navigate(u.String()),
		local: u.Scheme == "file",
	}
}

// exportPage loads src in a new tab and exports it.
func (e *Exporter) exportPage(ctx context.Context, src pageSource, filename string, opts *ExportOptions) (*Result, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)
	defer tabCancel()

	err := runLinked(ctx, tabCtx,
		emulation.SetDeviceMetricsOverride(int64(e.cfg.viewportWidth), int64(e.cfg.viewportHeight), 1, false),
		src.load,
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("pagecapture: loading %s: %w", src.name, err)
	}

	selector := DefaultSelector
	if opts != nil && opts.Selector != "" {
		selector = opts.Selector
	}
	return e.pipeline(src.local).Export(ctx, NewChromeSurface(tabCtx, selector), filename, opts)
}

func (e *Exporter) pipeline(local bool) *Pipeline {
	fetcher := e.cfg.fetcher
	if fetcher == nil {
		fetcher = DefaultFetcher(local)
	}
	return &Pipeline{
		Inliner: &Inliner{Fetcher: fetcher, Logger: e.cfg.logger},
		Engine:  &CaptureEngine{Rasterizer: NewChromeRasterizer(e.browserCtx), Logger: e.cfg.logger},
		Logger:  e.cfg.logger,
	}
}

func (e *Exporter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Exporter) checkClosed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// --- Package-level convenience functions ---

// ExportHTML exports an HTML string using a temporary [Exporter].
// This is convenient for one-off exports. For repeated use, create an
// [Exporter] with [NewExporter] to reuse the browser instance.
func ExportHTML(ctx context.Context, html, filename string, eo *ExportOptions, opts ...Option) (*Result, error) {
	exp, err := NewExporter(opts...)
	if err != nil {
		return nil, err
	}
	defer exp.Close()
	return exp.ExportHTML(ctx, html, filename, eo)
}

// ExportURL exports a web page using a temporary [Exporter].
func ExportURL(ctx context.Context, rawURL, filename string, eo *ExportOptions, opts ...Option) (*Result, error) {
	exp, err := NewExporter(opts...)
	if err != nil {
		return nil, err
	}
	defer exp.Close()
	return exp.ExportURL(ctx, rawURL, filename, eo)
}

// ExportFile exports a local HTML file using a temporary [Exporter].
func ExportFile(ctx context.Context, path, filename string, eo *ExportOptions, opts ...Option) (*Result, error) {
	exp, err := NewExporter(opts...)
	if err != nil {
		return nil, err
	}
	defer exp.Close()
	return exp.ExportFile(ctx, path, filename, eo)
}
