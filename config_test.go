package pagecapture

import (
	"errors"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
browser:
  chrome_path: /usr/bin/chromium
  no_sandbox: true
  timeout: 90s
  viewport_width: 1440
export:
  selector: "#dashboard"
  scale: 1.5
  background: "#f4f4f4"
  size: letter
  orientation: landscape
  encoding: jpeg
  jpeg_quality: 80
  settle_delay: 250ms
  reveal_prefixes: [fade-]
  strict_resources: true
  max_pages: 20
  title: Weekly
server:
  addr: ":9090"
  max_body_bytes: 1048576
  concurrency: 2
log:
  level: debug
  format: json
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Browser.ChromePath != "/usr/bin/chromium" || !cfg.Browser.NoSandbox || cfg.Browser.ViewportWidth != 1440 {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.Concurrency != 2 || cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("server = %+v", cfg.Server)
	}

	o, err := cfg.ExportOptions()
	if err != nil {
		t.Fatalf("ExportOptions: %v", err)
	}
	if o.Selector != "#dashboard" || o.Scale != 1.5 || o.Size != Letter || o.Orientation != Landscape {
		t.Errorf("export options = %+v", o)
	}
	if o.Encoding != EncodingJPEG || o.JPEGQuality != 80 || o.SettleDelay != 250*time.Millisecond {
		t.Errorf("export options = %+v", o)
	}
	if o.Background != (color.NRGBA{R: 0xf4, G: 0xf4, B: 0xf4, A: 0xff}) {
		t.Errorf("background = %v", o.Background)
	}
	if len(o.RevealPrefixes) != 1 || o.RevealPrefixes[0] != "fade-" || !o.StrictResources || o.MaxPages != 20 || o.Title != "Weekly" {
		t.Errorf("export options = %+v", o)
	}

	exp := defaultConfig()
	for _, opt := range cfg.ExporterOptions(slog.New(slog.DiscardHandler)) {
		opt(&exp)
	}
	if exp.chromePath != "/usr/bin/chromium" || !exp.noSandbox || exp.timeout != 90*time.Second || exp.viewportWidth != 1440 {
		t.Errorf("exporter config = %+v", exp)
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	o, err := cfg.ExportOptions()
	if err != nil {
		t.Fatalf("ExportOptions: %v", err)
	}
	if r := o.resolved(); r.Size != A4 || r.Scale != DefaultScale {
		t.Errorf("empty config resolved = %+v", r)
	}
	exp := defaultConfig()
	for _, opt := range cfg.ExporterOptions(nil) {
		opt(&exp)
	}
	if exp.timeout != 60*time.Second || exp.logger == nil {
		t.Errorf("empty config changed exporter defaults: %+v", exp)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":     "export:\n  colour: red\n",
		"bad yaml":        "export: [\n",
		"bad size":        "export:\n  size: b9\n",
		"bad color":       "export:\n  background: blue\n",
		"bad orientation": "export:\n  orientation: diagonal\n",
		"bad timeout":     "browser:\n  timeout: soon\n",
		"negative delay":  "export:\n  settle_delay: -1s\n",
		"bad level":       "log:\n  level: loud\n",
		"bad format":      "log:\n  format: xml\n",
		"scale too large": "export:\n  scale: 12\n",
		"negative limit":  "server:\n  concurrency: -1\n",
	}
	for name, doc := range tests {
		if _, err := ParseConfig([]byte(doc)); !errors.Is(err, ErrConfig) {
			t.Errorf("%s: error = %v, want ErrConfig", name, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecapture.yaml")
	if err := os.WriteFile(path, []byte("export:\n  size: a3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Export.Size != "a3" {
		t.Errorf("size = %q", cfg.Export.Size)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfig) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", in, got, err)
		}
	}
}
