package pagecapture

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	body := []byte("image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			if r.Header.Get("User-Agent") != "pagecapture-test" {
				http.Error(w, "bad agent", http.StatusBadRequest)
				return
			}
			w.Write(body)
		case "/forbidden.png":
			http.Error(w, "no", http.StatusForbidden)
		case "/auth.png":
			http.Error(w, "no", http.StatusUnauthorized)
		case "/big.png":
			w.Write(bytes.Repeat([]byte("x"), 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), UserAgent: "pagecapture-test", MaxBytes: 32}
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("Fetch ok: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("Fetch body = %q", got)
	}

	for _, path := range []string{"/forbidden.png", "/auth.png"} {
		if _, err := f.Fetch(ctx, srv.URL+path); !errors.Is(err, ErrPermission) {
			t.Errorf("Fetch %s error = %v, want ErrPermission", path, err)
		}
	}

	_, err = f.Fetch(ctx, srv.URL+"/missing.png")
	if err == nil || errors.Is(err, ErrPermission) {
		t.Errorf("Fetch 404 error = %v, want plain failure", err)
	}

	if _, err := f.Fetch(ctx, srv.URL+"/big.png"); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Fetch oversized error = %v", err)
	}
}

func TestHTTPFetcher_Schemes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.png")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}
	locator := "file://" + filepath.ToSlash(path)
	ctx := context.Background()

	if _, err := (&HTTPFetcher{}).Fetch(ctx, locator); !errors.Is(err, ErrPermission) {
		t.Errorf("file locator without AllowFiles error = %v", err)
	}
	got, err := (&HTTPFetcher{AllowFiles: true}).Fetch(ctx, locator)
	if err != nil || string(got) != "local" {
		t.Errorf("file locator = %q, %v", got, err)
	}
	if _, err := (&HTTPFetcher{}).Fetch(ctx, "ftp://example.test/a.png"); err == nil {
		t.Error("unsupported scheme accepted")
	}
}

func TestHTTPFetcher_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&HTTPFetcher{Client: srv.Client()}).Fetch(ctx, srv.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestExporterFileAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.png")
	if err := os.WriteFile(path, []byte("PRIVATE"), 0o644); err != nil {
		t.Fatal(err)
	}
	locator := "file://" + filepath.ToSlash(path)
	e := &Exporter{cfg: defaultConfig()}
	ctx := context.Background()

	if src := htmlSource("<img>"); src.local {
		t.Error("inline HTML loaded as a local document")
	}
	if _, err := e.pipeline(htmlSource("<img>").local).Inliner.Fetcher.Fetch(ctx, locator); !errors.Is(err, ErrPermission) {
		t.Errorf("inline HTML fetched %s: %v", locator, err)
	}
	for _, raw := range []string{"https://example.test/", "http://example.test/"} {
		u, _ := url.Parse(raw)
		if urlSource(u).local {
			t.Errorf("%s treated as local", raw)
		}
	}

	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	src := urlSource(fileURL)
	if !src.local {
		t.Fatal("file document not treated as local")
	}
	got, err := e.pipeline(src.local).Inliner.Fetcher.Fetch(ctx, locator)
	if err != nil || string(got) != "PRIVATE" {
		t.Errorf("file document fetch = %q, %v", got, err)
	}
}
