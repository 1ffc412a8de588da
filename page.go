package pagecapture

import (
	"fmt"
	"strings"
)

// PageSize represents paper dimensions in millimetres, portrait side up.
type PageSize struct {
	Name   string
	Width  float64 // Width in millimetres.
	Height float64 // Height in millimetres.
}

// Standard paper sizes.
var (
	A3      = PageSize{Name: "a3", Width: 297, Height: 420}
	A4      = PageSize{Name: "a4", Width: 210, Height: 297}
	A5      = PageSize{Name: "a5", Width: 148, Height: 210}
	Letter  = PageSize{Name: "letter", Width: 215.9, Height: 279.4}
	Legal   = PageSize{Name: "legal", Width: 215.9, Height: 355.6}
	Tabloid = PageSize{Name: "tabloid", Width: 279.4, Height: 431.8}
)

var pageSizes = []PageSize{A3, A4, A5, Letter, Legal, Tabloid}

// ParsePageSize looks up a paper size by name, case-insensitively.
func ParsePageSize(name string) (PageSize, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range pageSizes {
		if s.Name == n {
			return s, nil
		}
	}
	return PageSize{}, fmt.Errorf("%w: unknown page size %q", ErrInvalidOption, name)
}

// Orientation represents the page orientation.
type Orientation int

const (
	// Portrait is the default vertical orientation.
	Portrait Orientation = iota
	// Landscape rotates the page to horizontal orientation.
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// ParseOrientation accepts "portrait"/"p" and "landscape"/"l".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait", "p":
		return Portrait, nil
	case "landscape", "l":
		return Landscape, nil
	}
	return Portrait, fmt.Errorf("%w: unknown orientation %q", ErrInvalidOption, s)
}

// Geometry is the physical size of one output page in millimetres.
type Geometry struct {
	Width  float64
	Height float64
}

// Geometry returns the page box for the given orientation.
func (s PageSize) Geometry(o Orientation) Geometry {
	w, h := s.Width, s.Height
	if w > h {
		w, h = h, w
	}
	if o == Landscape {
		return Geometry{Width: h, Height: w}
	}
	return Geometry{Width: w, Height: h}
}

// Validate checks that both sides are positive.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return &AssemblyError{Op: "geometry", Err: fmt.Errorf("non-positive page %gx%g mm", g.Width, g.Height)}
	}
	return nil
}

// mmToPoints converts millimetres to PDF points.
func mmToPoints(mm float64) float64 {
	return mm * 72 / 25.4
}
