package pagecapture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/porticus-lab/go-page-capture/internal/pdfcheck"
)

// ImageEncoding selects how the raster bitmap is embedded in the document.
type ImageEncoding int

const (
	// EncodingPNG embeds the bitmap losslessly.
	EncodingPNG ImageEncoding = iota
	// EncodingJPEG trades fidelity for size.
	EncodingJPEG
)

func (e ImageEncoding) String() string {
	if e == EncodingJPEG {
		return "jpeg"
	}
	return "png"
}

// ParseEncoding accepts "png", "jpeg" and "jpg".
func ParseEncoding(s string) (ImageEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return EncodingPNG, nil
	case "jpeg", "jpg":
		return EncodingJPEG, nil
	}
	return EncodingPNG, fmt.Errorf("%w: unknown encoding %q", ErrInvalidOption, s)
}

const (
	bitmapImageName    = "capture"
	pageTolerancePoint = 0.5
)

// PageAssembler slices a raster bitmap into page bands and writes them as
// a multi-page PDF.
type PageAssembler struct {
	Geometry    Geometry
	Orientation Orientation
	Encoding    ImageEncoding
	JPEGQuality int
	MaxPages    int
	Title       string
}

// Assemble lays img out over as many pages as needed and returns the
// finished document together with the band that each page shows.
func (a *PageAssembler) Assemble(img image.Image) ([]byte, []Band, error) {
	b := img.Bounds()
	bands, err := PlanBands(b.Dx(), b.Dy(), a.Geometry)
	if err != nil {
		return nil, nil, err
	}
	maxPages := a.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if len(bands) > maxPages {
		return nil, nil, &AssemblyError{Op: "plan", Err: fmt.Errorf("%d pages exceeds limit of %d", len(bands), maxPages)}
	}
	if err := checkBands(bands, b.Dy()); err != nil {
		return nil, nil, &AssemblyError{Op: "plan", Err: err}
	}

	encoded, imageType, err := a.encode(img)
	if err != nil {
		return nil, nil, &AssemblyError{Op: "encode", Err: err}
	}

	orientation := "P"
	if a.Orientation == Landscape {
		orientation = "L"
	}
	portrait := Geometry{Width: math.Min(a.Geometry.Width, a.Geometry.Height), Height: math.Max(a.Geometry.Width, a.Geometry.Height)}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: portrait.Width, Ht: portrait.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("pagecapture", true)
	if a.Title != "" {
		pdf.SetTitle(a.Title, true)
	}

	opts := fpdf.ImageOptions{ImageType: imageType, AllowNegativePosition: true}
	pdf.RegisterImageOptionsReader(bitmapImageName, opts, bytes.NewReader(encoded))
	if err := pdf.Error(); err != nil {
		return nil, nil, &AssemblyError{Op: "register", Err: err}
	}

	pw, ph := pdf.GetPageSize()
	if math.Abs(pw-a.Geometry.Width) > 1e-6 || math.Abs(ph-a.Geometry.Height) > 1e-6 {
		return nil, nil, &AssemblyError{Op: "geometry", Err: fmt.Errorf("page is %gx%g mm, want %gx%g", pw, ph, a.Geometry.Width, a.Geometry.Height)}
	}

	s := a.Geometry.Width / float64(b.Dx())
	fullHeight := float64(b.Dy()) * s
	for _, band := range bands {
		pdf.AddPage()
		pdf.ClipRect(0, 0, pw, ph, false)
		pdf.ImageOptions(bitmapImageName, 0, -band.Top*s, pw, fullHeight, false, opts, 0, "")
		pdf.ClipEnd()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, &AssemblyError{Op: "output", Err: err}
	}
	if err := verifyDocument(buf.Bytes(), len(bands), a.Geometry); err != nil {
		return nil, nil, &AssemblyError{Op: "verify", Err: err}
	}
	return buf.Bytes(), bands, nil
}

func (a *PageAssembler) encode(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	switch a.Encoding {
	case EncodingJPEG:
		q := a.JPEGQuality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "JPG", nil
	default:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "PNG", nil
	}
}

// verifyDocument reads the serialized document back and checks that it
// has one page per band with the expected page box.
func verifyDocument(data []byte, pages int, geo Geometry) error {
	doc, err := pdfcheck.Load(data)
	if err != nil {
		return err
	}
	infos, err := doc.Pages()
	if err != nil {
		return err
	}
	if len(infos) != pages {
		return fmt.Errorf("document has %d pages, want %d", len(infos), pages)
	}
	wantW, wantH := mmToPoints(geo.Width), mmToPoints(geo.Height)
	for i, p := range infos {
		if math.Abs(p.Width-wantW) > pageTolerancePoint || math.Abs(p.Height-wantH) > pageTolerancePoint {
			return fmt.Errorf("page %d is %.2fx%.2f pt, want %.2fx%.2f", i+1, p.Width, p.Height, wantW, wantH)
		}
		if len(p.Images) != 1 {
			return fmt.Errorf("page %d places %d images, want 1", i+1, len(p.Images))
		}
	}
	return nil
}
