// Package httpapi serves document exports over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	pagecapture "github.com/porticus-lab/go-page-capture"
)

// DefaultMaxBodyBytes bounds request bodies, which may carry inline HTML.
const DefaultMaxBodyBytes = 8 << 20

// DefaultFilename names exports whose request omits one.
const DefaultFilename = "export"

// Exporter is the part of [pagecapture.Exporter] the server needs.
type Exporter interface {
	ExportURL(ctx context.Context, rawURL, filename string, opts *pagecapture.ExportOptions) (*pagecapture.Result, error)
	ExportHTML(ctx context.Context, html, filename string, opts *pagecapture.ExportOptions) (*pagecapture.Result, error)
}

// Server handles export requests.
type Server struct {
	exp      Exporter
	logger   *slog.Logger
	defaults pagecapture.ExportOptions
	maxBody  int64
	sem      *semaphore.Weighted
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the options that request fields override.
func WithDefaults(o *pagecapture.ExportOptions) Option {
	return func(s *Server) {
		if o != nil {
			s.defaults = *o
		}
	}
}

// WithMaxBodyBytes limits request bodies. Zero keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithConcurrency bounds simultaneous exports. Zero keeps GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New returns a server exporting with exp.
func New(exp Exporter, opts ...Option) *Server {
	s := &Server{
		exp:     exp,
		logger:  slog.New(slog.DiscardHandler),
		maxBody: DefaultMaxBodyBytes,
		sem:     semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/v1/exports", s.handleExport)
	return r
}

// ExportRequest is the body of POST /v1/exports. Exactly one of URL and
// HTML must be set.
type ExportRequest struct {
	URL         string  `json:"url,omitempty"`
	HTML        string  `json:"html,omitempty"`
	Selector    string  `json:"selector,omitempty"`
	Filename    string  `json:"filename,omitempty"`
	Scale       float64 `json:"scale,omitempty"`
	Background  string  `json:"background,omitempty"`
	Size        string  `json:"size,omitempty"`
	Orientation string  `json:"orientation,omitempty"`
	Encoding    string  `json:"encoding,omitempty"`
	Title       string  `json:"title,omitempty"`
}

// ExportResponse is returned when the client accepts JSON.
type ExportResponse struct {
	FileName  string   `json:"fileName"`
	PDFBase64 string   `json:"pdfBase64"`
	Pages     int      `json:"pages"`
	Skipped   []string `json:"skipped,omitempty"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("decoding body: %v", err))
		return
	}
	opts, err := s.options(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = DefaultFilename
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "request cancelled while queued")
		return
	}
	defer s.sem.Release(1)

	var res *pagecapture.Result
	if req.URL != "" {
		res, err = s.exp.ExportURL(r.Context(), req.URL, filename, opts)
	} else {
		res, err = s.exp.ExportHTML(r.Context(), req.HTML, filename, opts)
	}
	if err != nil {
		status, code := classify(err)
		s.logger.Error("export failed", "request_id", middleware.GetReqID(r.Context()), "code", code, "error", err)
		writeError(w, status, code, err.Error())
		return
	}
	for _, sk := range res.Skipped() {
		s.logger.Warn("image skipped", "request_id", middleware.GetReqID(r.Context()), "locator", sk.Locator, "reason", sk.Reason)
	}

	if wantsJSON(r) {
		skipped := make([]string, 0, len(res.Skipped()))
		for _, sk := range res.Skipped() {
			skipped = append(skipped, sk.Locator)
		}
		writeJSON(w, http.StatusOK, ExportResponse{
			FileName:  res.Filename(),
			PDFBase64: res.Base64(),
			Pages:     res.PageCount(),
			Skipped:   skipped,
		})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename()))
	w.Header().Set("X-Page-Count", fmt.Sprint(res.PageCount()))
	w.WriteHeader(http.StatusOK)
	if _, err := res.WriteTo(w); err != nil {
		s.logger.Warn("writing response", "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
}

// options merges request fields over the server defaults.
func (s *Server) options(req ExportRequest) (*pagecapture.ExportOptions, error) {
	switch {
	case req.URL == "" && req.HTML == "":
		return nil, errors.New("one of url and html is required")
	case req.URL != "" && req.HTML != "":
		return nil, errors.New("url and html are mutually exclusive")
	}
	if req.URL != "" {
		u, err := url.ParseRequestURI(req.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}
	}

	o := s.defaults
	if req.Selector != "" {
		o.Selector = req.Selector
	}
	if req.Scale != 0 {
		o.Scale = req.Scale
	}
	if req.Title != "" {
		o.Title = req.Title
	}
	var err error
	if req.Background != "" {
		if o.Background, err = pagecapture.ParseColor(req.Background); err != nil {
			return nil, err
		}
	}
	if req.Size != "" {
		if o.Size, err = pagecapture.ParsePageSize(req.Size); err != nil {
			return nil, err
		}
	}
	if req.Orientation != "" {
		if o.Orientation, err = pagecapture.ParseOrientation(req.Orientation); err != nil {
			return nil, err
		}
	}
	if req.Encoding != "" {
		if o.Encoding, err = pagecapture.ParseEncoding(req.Encoding); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

// classify maps an export error to a status code and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pagecapture.ErrInvalidOption):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, pagecapture.ErrEmptyCapture):
		return http.StatusUnprocessableEntity, "EMPTY_CAPTURE"
	case errors.Is(err, pagecapture.ErrTainted):
		return http.StatusUnprocessableEntity, "CAPTURE_TAINTED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, pagecapture.ErrCapture):
		return http.StatusBadGateway, "CAPTURE_FAILED"
	case errors.Is(err, pagecapture.ErrAssembly):
		return http.StatusInternalServerError, "ASSEMBLY_FAILED"
	case errors.Is(err, pagecapture.ErrClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	}
	return http.StatusInternalServerError, "EXPORT_FAILED"
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mt), "application/json") {
			return true
		}
	}
	return false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}
