package pagecapture

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMMToPoints(t *testing.T) {
	tests := []struct {
		mm   float64
		want float64
	}{
		{25.4, 72},
		{0, 0},
		{210, 595.28},
		{297, 841.89},
	}
	for _, tt := range tests {
		got := mmToPoints(tt.mm)
		if !almostEqual(got, tt.want, 0.01) {
			t.Errorf("mmToPoints(%v) = %v, want ~%v", tt.mm, got, tt.want)
		}
	}
}

func TestParsePageSize(t *testing.T) {
	tests := []struct {
		in   string
		want PageSize
	}{
		{"a4", A4},
		{"A3", A3},
		{" letter ", Letter},
		{"Legal", Legal},
		{"tabloid", Tabloid},
		{"a5", A5},
	}
	for _, tt := range tests {
		got, err := ParsePageSize(tt.in)
		if err != nil {
			t.Errorf("ParsePageSize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePageSize(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if _, err := ParsePageSize("b7"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParsePageSize(b7) error = %v, want ErrInvalidOption", err)
	}
}

func TestParseOrientation(t *testing.T) {
	tests := map[string]Orientation{
		"":          Portrait,
		"portrait":  Portrait,
		"P":         Portrait,
		"landscape": Landscape,
		"l":         Landscape,
	}
	for in, want := range tests {
		got, err := ParseOrientation(in)
		if err != nil || got != want {
			t.Errorf("ParseOrientation(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseOrientation("sideways"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseOrientation(sideways) error = %v", err)
	}
	if Landscape.String() != "landscape" || Portrait.String() != "portrait" {
		t.Error("Orientation.String mismatch")
	}
}

func TestGeometry_Portrait(t *testing.T) {
	g := A4.Geometry(Portrait)
	if g.Width != 210 || g.Height != 297 {
		t.Errorf("A4 portrait = %+v, want 210x297", g)
	}
}

func TestGeometry_Landscape(t *testing.T) {
	g := Letter.Geometry(Landscape)
	if g.Width != 279.4 || g.Height != 215.9 {
		t.Errorf("Letter landscape = %+v, want 279.4x215.9", g)
	}
}

func TestGeometry_NormalizesRotatedSize(t *testing.T) {
	wide := PageSize{Name: "wide", Width: 300, Height: 100}
	if g := wide.Geometry(Portrait); g.Width != 100 || g.Height != 300 {
		t.Errorf("portrait of a wide size = %+v", g)
	}
}

func TestGeometry_Validate(t *testing.T) {
	if err := A4.Geometry(Portrait).Validate(); err != nil {
		t.Errorf("A4 invalid: %v", err)
	}
	for _, g := range []Geometry{{0, 297}, {210, 0}, {-1, 5}} {
		err := g.Validate()
		if !errors.Is(err, ErrAssembly) {
			t.Errorf("Validate(%+v) = %v, want ErrAssembly", g, err)
		}
	}
}
