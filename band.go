package pagecapture

import (
	"fmt"
	"math"
)

// DefaultMaxPages bounds the number of pages a single export may produce.
const DefaultMaxPages = 500

// bandEpsilon absorbs float error when the bitmap height is an exact
// multiple of the rows that fit on one page.
const bandEpsilon = 1e-9

// Band is the horizontal slice of the raster bitmap shown on one page,
// measured in bitmap pixel rows.
type Band struct {
	Index  int
	Top    float64
	Height float64
}

// Bottom returns the first row after the band.
func (b Band) Bottom() float64 { return b.Top + b.Height }

// RowsPerPage returns how many bitmap rows fit one page when a bitmap of
// the given pixel width is scaled to the page width.
func RowsPerPage(width int, geo Geometry) float64 {
	s := geo.Width / float64(width)
	return geo.Height / s
}

// PlanBands partitions the rows [0, height) of a width x height bitmap into
// consecutive page bands. Every band except the last is exactly
// RowsPerPage tall.
func PlanBands(width, height int, geo Geometry) ([]Band, error) {
	if width <= 0 || height <= 0 {
		return nil, &EmptyCaptureError{Width: width, Height: height}
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}

	rows := RowsPerPage(width, geo)
	h := float64(height)
	n := int(math.Ceil(h/rows - bandEpsilon))
	if n < 1 {
		n = 1
	}

	bands := make([]Band, n)
	for i := range bands {
		top := float64(i) * rows
		bottom := math.Min(h, float64(i+1)*rows)
		if i == n-1 {
			bottom = h
		}
		bands[i] = Band{Index: i, Top: top, Height: bottom - top}
	}
	return bands, nil
}

// checkBands verifies the partition invariant: contiguous, non-overlapping
// bands covering exactly [0, height).
func checkBands(bands []Band, height int) error {
	if len(bands) == 0 {
		return fmt.Errorf("no bands")
	}
	var next float64
	for i, b := range bands {
		if b.Index != i {
			return fmt.Errorf("band %d out of order", i)
		}
		if math.Abs(b.Top-next) > 1e-6 {
			return fmt.Errorf("band %d starts at %g, want %g", i, b.Top, next)
		}
		if b.Height <= 0 {
			return fmt.Errorf("band %d is empty", i)
		}
		next = b.Bottom()
	}
	if math.Abs(next-float64(height)) > 1e-6 {
		return fmt.Errorf("bands cover %g rows, want %d", next, height)
	}
	return nil
}
