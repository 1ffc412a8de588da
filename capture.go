package pagecapture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/net/html"
)

// TargetAttr marks the capture target inside a snapshot.
const TargetAttr = "data-pagecapture-target"

// CaptureEngine produces one opaque bitmap of a surface's capture target
// from an offscreen clone, leaving the live surface untouched.
type CaptureEngine struct {
	Rasterizer Rasterizer
	Logger     *slog.Logger
}

// CaptureRequest carries the per-export inputs of a capture pass.
type CaptureRequest struct {
	Inlined        InlineMap
	Skipped        []InlineSkip
	Scale          float64
	Background     color.Color
	Exclude        func(*html.Node) bool
	RevealPrefixes []string
	// StrictResources fails the capture when an image refused by its
	// origin is still referenced by the clone.
	StrictResources bool
}

// Capture snapshots s, rewrites the clone and rasterizes it. Every
// failure is a [*CaptureError] or an [*EmptyCaptureError].
func (e *CaptureEngine) Capture(ctx context.Context, s Surface, req CaptureRequest) (image.Image, error) {
	if e.Rasterizer == nil {
		return nil, &CaptureError{Cause: CauseInternal, Err: errors.New("no rasterizer configured")}
	}
	snap, err := s.Snapshot(ctx, TargetAttr, uuid.NewString())
	if err != nil {
		return nil, classifyCapture(fmt.Errorf("snapshot: %w", err))
	}

	rw, err := rewriteSnapshot(snap, rewriteOptions{
		inlined:        req.Inlined,
		exclude:        req.Exclude,
		revealPrefixes: req.RevealPrefixes,
	})
	if err != nil {
		return nil, &CaptureError{Cause: CauseInternal, Err: err}
	}
	if req.StrictResources {
		if err := checkTainted(rw.unresolved, req.Skipped); err != nil {
			return nil, &CaptureError{Cause: CauseTaint, Err: err}
		}
	}
	e.logger().Debug("snapshot prepared",
		"inlined", rw.inlined, "removed", rw.removed, "unresolved", len(rw.unresolved))

	clone := *snap
	clone.HTML = rw.html
	img, err := e.Rasterizer.Rasterize(ctx, &clone, RasterOptions{Scale: req.Scale, Background: req.Background})
	if err != nil {
		return nil, classifyCapture(err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &EmptyCaptureError{Width: b.Dx(), Height: b.Dy()}
	}
	return flatten(img, req.Background), nil
}

func (e *CaptureEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return discardLogger
}

// classifyCapture wraps err as a capture failure, keeping an existing
// classification.
func classifyCapture(err error) error {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return err
	}
	var ee *EmptyCaptureError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, ErrTainted) || errors.Is(err, ErrPermission) || errors.Is(err, fs.ErrPermission) {
		return &CaptureError{Cause: CauseTaint, Err: err}
	}
	return &CaptureError{Cause: CauseInternal, Err: err}
}

func checkTainted(unresolved []string, skipped []InlineSkip) error {
	refused := make(map[string]bool)
	for _, s := range skipped {
		if s.Reason == SkipPermission {
			refused[s.Locator] = true
		}
	}
	for _, u := range unresolved {
		if refused[u] {
			return fmt.Errorf("%w: %s", ErrTainted, u)
		}
	}
	return nil
}

// flatten composites img over bg, itself over white, so the bitmap has
// no transparent pixels.
func flatten(img image.Image, bg color.Color) *image.RGBA {
	if bg == nil {
		bg = color.White
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, xdraw.Over)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Over)
	return dst
}
