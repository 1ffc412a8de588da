package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	pagecapture "github.com/porticus-lab/go-page-capture"
)

// browserFlags configure the Exporter.
type browserFlags struct {
	chromePath   string
	noSandbox    bool
	autoDownload bool
	timeout      time.Duration
}

// layoutFlags override the export section of the config file.
type layoutFlags struct {
	selector    string
	scale       float64
	background  string
	size        string
	orientation string
	encoding    string
	title       string
	strict      bool
	maxPages    int
}

type logFlags struct {
	level  string
	format string
}

type exportFlags struct {
	config  string
	output  string
	name    string
	browser browserFlags
	layout  layoutFlags
	log     logFlags
}

func addBrowserFlags(fs *flag.FlagSet, f *browserFlags) {
	fs.StringVar(&f.chromePath, "chrome", "", "Chrome or Chromium executable")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox (needed as root)")
	fs.BoolVar(&f.autoDownload, "auto-download", false, "download Chromium when none is installed")
	fs.DurationVar(&f.timeout, "timeout", 0, "maximum duration of one export (default 60s)")
}

func addLayoutFlags(fs *flag.FlagSet, f *layoutFlags) {
	fs.StringVarP(&f.selector, "selector", "s", "", "CSS selector of the capture target (default body)")
	fs.Float64Var(&f.scale, "scale", 0, "capture scale factor (default 2)")
	fs.StringVar(&f.background, "background", "", "background color as #rgb, #rrggbb or #rrggbbaa")
	fs.StringVarP(&f.size, "size", "p", "", "paper size: a3, a4, a5, letter, legal, tabloid")
	fs.StringVar(&f.orientation, "orientation", "", "portrait or landscape")
	fs.StringVar(&f.encoding, "encoding", "", "embedded bitmap encoding: png or jpeg")
	fs.StringVar(&f.title, "title", "", "document title metadata")
	fs.BoolVar(&f.strict, "strict", false, "fail when an image refused by its origin is still referenced")
	fs.IntVar(&f.maxPages, "max-pages", 0, "maximum number of pages")
}

func addLogFlags(fs *flag.FlagSet, f *logFlags) {
	fs.StringVar(&f.level, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.format, "log-format", "", "log format: text or json")
}

func parseExportFlags(args []string, stderr io.Writer) (*exportFlags, []string, error) {
	var f exportFlags
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.config, "config", "c", "", "YAML config file")
	fs.StringVarP(&f.output, "output", "o", ".", "output directory")
	fs.StringVarP(&f.name, "name", "n", "", "base name of the PDF (default from the input)")
	addBrowserFlags(fs, &f.browser)
	addLayoutFlags(fs, &f.layout)
	addLogFlags(fs, &f.log)
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return &f, fs.Args(), nil
}

// apply overlays flag values on the config file.
func (f *exportFlags) apply(cfg *pagecapture.Config) {
	b := &cfg.Browser
	if f.browser.chromePath != "" {
		b.ChromePath = f.browser.chromePath
	}
	b.NoSandbox = b.NoSandbox || f.browser.noSandbox
	b.AutoDownload = b.AutoDownload || f.browser.autoDownload
	if f.browser.timeout > 0 {
		b.Timeout = f.browser.timeout.String()
	}
	f.layout.apply(&cfg.Export)
	if f.log.level != "" {
		cfg.Log.Level = f.log.level
	}
	if f.log.format != "" {
		cfg.Log.Format = f.log.format
	}
}

func (l *layoutFlags) apply(e *pagecapture.ExportConfig) {
	if l.selector != "" {
		e.Selector = l.selector
	}
	if l.scale != 0 {
		e.Scale = l.scale
	}
	if l.background != "" {
		e.Background = l.background
	}
	if l.size != "" {
		e.Size = l.size
	}
	if l.orientation != "" {
		e.Orientation = l.orientation
	}
	if l.encoding != "" {
		e.Encoding = l.encoding
	}
	if l.title != "" {
		e.Title = l.title
	}
	if l.maxPages != 0 {
		e.MaxPages = l.maxPages
	}
	e.StrictResources = e.StrictResources || l.strict
}

// baseName derives the document name from the input.
func baseName(input string) string {
	if input == "-" || isURL(input) {
		return "export"
	}
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if name == "" || name == "." {
		return "export"
	}
	return name
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://")
}

func runExport(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, rest, err := parseExportFlags(args, stderr)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: export takes exactly one input", errUsage)
	}
	input := rest[0]

	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	opts, err := cfg.ExportOptions()
	if err != nil {
		return err
	}
	name := f.name
	if name == "" {
		name = baseName(input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exp, err := pagecapture.NewExporter(cfg.ExporterOptions(logger)...)
	if err != nil {
		return err
	}
	defer exp.Close()

	var res *pagecapture.Result
	switch {
	case input == "-":
		html, rerr := io.ReadAll(stdin)
		if rerr != nil {
			return fmt.Errorf("reading stdin: %w", rerr)
		}
		res, err = exp.ExportHTML(ctx, string(html), name, opts)
	case isURL(input):
		res, err = exp.ExportURL(ctx, input, name, opts)
	default:
		res, err = exp.ExportFile(ctx, input, name, opts)
	}
	if err != nil {
		return err
	}

	path, err := res.Save(f.output)
	if err != nil {
		return err
	}
	for _, sk := range res.Skipped() {
		fmt.Fprintf(stderr, "warning: %v\n", sk)
	}
	fmt.Fprintf(stdout, "%s (%d pages, %d bytes)\n", path, res.PageCount(), res.Len())
	return nil
}
