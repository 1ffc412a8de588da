package pagecapture

import (
	"errors"
	"math"
	"testing"
)

// tenthGeometry maps a 1000px wide bitmap to 1200 rows per page.
var tenthGeometry = Geometry{Width: 100, Height: 120}

func TestRowsPerPage(t *testing.T) {
	if got := RowsPerPage(1000, tenthGeometry); !almostEqual(got, 1200, 1e-6) {
		t.Errorf("RowsPerPage = %v, want 1200", got)
	}
	// Wider bitmaps fit more rows on the same page.
	if RowsPerPage(2000, tenthGeometry) <= RowsPerPage(1000, tenthGeometry) {
		t.Error("RowsPerPage does not grow with width")
	}
}

func TestPlanBands(t *testing.T) {
	tests := []struct {
		name    string
		height  int
		heights []float64
	}{
		{"three pages", 3000, []float64{1200, 1200, 600}},
		{"exact multiple", 2400, []float64{1200, 1200}},
		{"single short page", 500, []float64{500}},
		{"single row", 1, []float64{1}},
		{"one row over", 1201, []float64{1200, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands, err := PlanBands(1000, tt.height, tenthGeometry)
			if err != nil {
				t.Fatalf("PlanBands: %v", err)
			}
			if len(bands) != len(tt.heights) {
				t.Fatalf("got %d bands, want %d", len(bands), len(tt.heights))
			}
			for i, b := range bands {
				if !almostEqual(b.Height, tt.heights[i], 1e-6) {
					t.Errorf("band %d height = %v, want %v", i, b.Height, tt.heights[i])
				}
			}
			if err := checkBands(bands, tt.height); err != nil {
				t.Errorf("checkBands: %v", err)
			}
			want := int(math.Ceil(float64(tt.height) / 1200))
			if len(bands) != want {
				t.Errorf("page count = %d, want ceil(H/rows) = %d", len(bands), want)
			}
		})
	}
}

func TestPlanBands_Empty(t *testing.T) {
	for _, size := range [][2]int{{0, 100}, {100, 0}, {-1, -1}} {
		_, err := PlanBands(size[0], size[1], tenthGeometry)
		var ee *EmptyCaptureError
		if !errors.As(err, &ee) {
			t.Errorf("PlanBands(%d, %d) error = %v, want EmptyCaptureError", size[0], size[1], err)
			continue
		}
		if ee.Width != size[0] || ee.Height != size[1] {
			t.Errorf("EmptyCaptureError = %+v", ee)
		}
		if !errors.Is(err, ErrEmptyCapture) {
			t.Error("EmptyCaptureError does not match ErrEmptyCapture")
		}
	}
}

func TestPlanBands_InvalidGeometry(t *testing.T) {
	if _, err := PlanBands(10, 10, Geometry{}); !errors.Is(err, ErrAssembly) {
		t.Errorf("error = %v, want ErrAssembly", err)
	}
}

func TestCheckBands(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{"none", nil},
		{"gap", []Band{{Index: 0, Top: 0, Height: 5}, {Index: 1, Top: 6, Height: 4}}},
		{"overlap", []Band{{Index: 0, Top: 0, Height: 5}, {Index: 1, Top: 4, Height: 6}}},
		{"short", []Band{{Index: 0, Top: 0, Height: 9}}},
		{"empty band", []Band{{Index: 0, Top: 0, Height: 10}, {Index: 1, Top: 10, Height: 0}}},
		{"out of order", []Band{{Index: 1, Top: 0, Height: 10}}},
	}
	for _, tt := range tests {
		if err := checkBands(tt.bands, 10); err == nil {
			t.Errorf("%s: checkBands accepted an invalid partition", tt.name)
		}
	}
}
