package pagecapture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DocumentExt is appended to the caller's base name.
const DocumentExt = ".pdf"

// Result holds an exported document and provides helpers for common output
// formats such as raw bytes, base64 encoding, and streaming readers.
//
// A Result is only returned for a complete export; there is no partial
// Result. Its methods never modify the underlying data.
type Result struct {
	data     []byte
	filename string
	bands    []Band
	skipped  []InlineSkip
	width    int
	height   int
}

// Filename returns the artifact name, the caller's base name plus ".pdf".
func (r *Result) Filename() string {
	return r.filename
}

// Bytes returns the raw PDF content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Base64 returns the PDF encoded as a standard base64 string (RFC 4648).
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns an [*bytes.Reader] over the PDF content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteToFile writes the PDF to the file at path, creating it if needed.
func (r *Result) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, r.data, perm)
}

// Save writes the document into dir under [Result.Filename] and returns
// the full path. The file appears atomically: readers never observe a
// truncated document.
func (r *Result) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, ".pagecapture-*.tmp")
	if err != nil {
		return "", fmt.Errorf("pagecapture: creating temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(r.data); err != nil {
		f.Close()
		return "", fmt.Errorf("pagecapture: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("pagecapture: closing temp file: %w", err)
	}
	dst := filepath.Join(dir, r.filename)
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("pagecapture: saving %s: %w", r.filename, err)
	}
	return dst, nil
}

// Len returns the size of the PDF in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

// PageCount returns the number of pages in the document.
func (r *Result) PageCount() int {
	return len(r.bands)
}

// Bands returns the bitmap rows shown on each page, in page order.
func (r *Result) Bands() []Band {
	return append([]Band(nil), r.bands...)
}

// BitmapSize returns the pixel size of the captured raster.
func (r *Result) BitmapSize() (width, height int) {
	return r.width, r.height
}

// Skipped lists images that could not be inlined and were left to the
// renderer's native fallback.
func (r *Result) Skipped() []InlineSkip {
	return append([]InlineSkip(nil), r.skipped...)
}
