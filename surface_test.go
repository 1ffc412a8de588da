package pagecapture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
)

// fakeSurface is an in-memory Surface that records every override.
type fakeSurface struct {
	mu sync.Mutex

	extent  Extent
	images  []ImageNode
	html    string
	baseURL string
	scrollX float64
	scrollY float64

	styles   map[string]string
	calls    []string
	removals map[string]int
	scrolls  [][2]float64

	extentErr  error
	imagesErr  error
	installErr error
	scrollErr  error
	snapErr    error

	// installs counts InstallStyle calls that reached the surface, even
	// when installErr is returned.
	installs int
}

func newFakeSurface(w, h int) *fakeSurface {
	return &fakeSurface{
		extent:   Extent{Width: w, Height: h},
		html:     `<html><head></head><body><main id="app"><p>hi</p></main></body></html>`,
		scrollX:  12,
		scrollY:  340,
		styles:   make(map[string]string),
		removals: make(map[string]int),
	}
}

func (s *fakeSurface) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeSurface) Extent(ctx context.Context) (Extent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("extent")
	return s.extent, s.extentErr
}

func (s *fakeSurface) Images(ctx context.Context) ([]ImageNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("images")
	return s.images, s.imagesErr
}

func (s *fakeSurface) InstallStyle(ctx context.Context, id, css string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("install")
	s.installs++
	s.styles[id] = css
	return s.installErr
}

func (s *fakeSurface) RemoveStyle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove")
	s.removals[id]++
	delete(s.styles, id)
	return nil
}

func (s *fakeSurface) ScrollPosition(ctx context.Context) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("position")
	return s.scrollX, s.scrollY, nil
}

func (s *fakeSurface) ScrollTo(ctx context.Context, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(fmt.Sprintf("scroll %g,%g", x, y))
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.scrollErr != nil {
		return s.scrollErr
	}
	s.scrolls = append(s.scrolls, [2]float64{x, y})
	s.scrollX, s.scrollY = x, y
	return nil
}

func (s *fakeSurface) Snapshot(ctx context.Context, attr, token string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("snapshot")
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	marked := strings.Replace(s.html, `<body>`, fmt.Sprintf(`<body %s="%s">`, attr, token), 1)
	return &Snapshot{
		HTML:        marked,
		BaseURL:     s.baseURL,
		TargetAttr:  attr,
		TargetToken: token,
		Viewport:    Extent{Width: 1280, Height: 800},
	}, nil
}

// installed reports the style sheets still present.
func (s *fakeSurface) installed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.styles)
}

func (s *fakeSurface) totalRemovals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.removals {
		n += c
	}
	return n
}

// fakeRasterizer returns a bitmap of the surface extent times scale.
type fakeRasterizer struct {
	mu    sync.Mutex
	snaps []*Snapshot
	opts  []RasterOptions
	err   error
	img   image.Image
	// onRaster runs before returning, for example to cancel a context.
	onRaster func()
	width    int
	height   int
}

func (r *fakeRasterizer) Rasterize(ctx context.Context, snap *Snapshot, opts RasterOptions) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	r.opts = append(r.opts, opts)
	if r.onRaster != nil {
		r.onRaster()
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.img != nil {
		return r.img, nil
	}
	w := int(float64(r.width) * opts.Scale)
	h := int(float64(r.height) * opts.Scale)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// Leave the bitmap transparent so flattening is observable.
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	return img, nil
}

// mapFetcher serves canned bodies and errors keyed by locator.
type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	hits   map[string]int
}

func (f *mapFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hits == nil {
		f.hits = make(map[string]int)
	}
	f.hits[locator]++
	if err, ok := f.errs[locator]; ok {
		return nil, err
	}
	if b, ok := f.bodies[locator]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}
