package pagecapture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
)

// DefaultMaxImageBytes caps a single fetched image.
const DefaultMaxImageBytes = 32 << 20

// Fetcher retrieves the raw bytes behind an image locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// HTTPFetcher fetches http(s) locators with an [*http.Client] and, when
// AllowFiles is set, file:// locators from the local disk.
type HTTPFetcher struct {
	Client     *http.Client
	UserAgent  string
	MaxBytes   int64
	AllowFiles bool
}

// DefaultFetcher returns the fetcher an [Exporter] uses when none is
// configured. allowFiles is only set for documents loaded from disk.
func DefaultFetcher(allowFiles bool) Fetcher {
	return &HTTPFetcher{UserAgent: "pagecapture", AllowFiles: allowFiles}
}

// Fetch implements [Fetcher]. Refusals by the origin (401, 403, 451) and
// unreadable files wrap [ErrPermission].
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parsing locator: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "file":
		if !f.AllowFiles {
			return nil, fmt.Errorf("%w: file locators disabled", ErrPermission)
		}
		return f.readFile(u.Path)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnavailableForLegalReasons:
		return nil, fmt.Errorf("%w: %s", ErrPermission, resp.Status)
	default:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return readLimited(resp.Body, f.maxBytes())
}

func (f *HTTPFetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermission, err)
		}
		return nil, err
	}
	defer file.Close()
	return readLimited(file, f.maxBytes())
}

func (f *HTTPFetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return DefaultMaxImageBytes
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	return data, nil
}
