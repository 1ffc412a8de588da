package pagecapture

import (
	"context"
	"image"
	"image/color"
)

// Extent is the full content size of a capture target in CSS pixels,
// independent of the current scroll position.
type Extent struct {
	Width  int
	Height int
}

// ImageNode describes one <img> inside the capture target after it has
// finished loading or failed.
type ImageNode struct {
	// Src is the absolute locator the element loaded.
	Src           string
	Complete      bool
	NaturalWidth  int
	NaturalHeight int
}

// Failed reports whether the element signalled a load error.
func (n ImageNode) Failed() bool {
	return n.Complete && (n.NaturalWidth == 0 || n.NaturalHeight == 0)
}

// Snapshot is a serialized deep clone of the live document. The capture
// target is the element carrying TargetAttr="TargetToken".
type Snapshot struct {
	HTML        string
	BaseURL     string
	TargetAttr  string
	TargetToken string
	// Viewport is the live layout viewport in CSS pixels, so the clone lays
	// out at the same width.
	Viewport Extent
}

// Surface is the live visual document a capture is taken from. It is
// shared with whoever displays it; the pipeline only applies reversible
// overrides (a style sheet and the scroll position) and restores them.
type Surface interface {
	// Extent reports the capture target's full content size.
	Extent(ctx context.Context) (Extent, error)
	// Images waits for every image in the capture target to load or fail,
	// using each element's own load and error signals. Lazy images are
	// switched to eager loading first.
	Images(ctx context.Context) ([]ImageNode, error)
	// InstallStyle adds a document-wide style sheet identified by id.
	InstallStyle(ctx context.Context, id, css string) error
	// RemoveStyle removes the style sheet id. Removing a missing sheet is
	// not an error.
	RemoveStyle(ctx context.Context, id string) error
	ScrollPosition(ctx context.Context) (x, y float64, err error)
	ScrollTo(ctx context.Context, x, y float64) error
	// Snapshot clones the document without modifying it and marks the
	// capture target in the clone with attr=token.
	Snapshot(ctx context.Context, attr, token string) (*Snapshot, error)
}

// RasterOptions control one rasterization pass.
type RasterOptions struct {
	Scale      float64
	Background color.Color
}

// Rasterizer renders a snapshot offscreen and returns a bitmap of the
// marked target's full content extent.
type Rasterizer interface {
	Rasterize(ctx context.Context, snap *Snapshot, opts RasterOptions) (image.Image, error)
}
