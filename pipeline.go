package pagecapture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"
)

// restoreTimeout bounds the calls that undo surface overrides. They run on
// a context detached from the caller so cancellation cannot skip them.
const restoreTimeout = 5 * time.Second

// Pipeline runs an export: inline images, freeze the surface, capture it,
// then lay the bitmap out on pages.
type Pipeline struct {
	Inliner *Inliner
	Engine  *CaptureEngine
	Logger  *slog.Logger
}

// Export captures the target of s and returns a document named
// filename+".pdf". Per-image inlining problems are reported on
// [Result.Skipped]; any other failure aborts the export without a Result.
// On every path the surface's animations and scroll position are restored
// before Export returns.
func (p *Pipeline) Export(ctx context.Context, s Surface, filename string, opts *ExportOptions) (*Result, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	o := opts.resolved()
	if err := o.validate(); err != nil {
		return nil, err
	}
	log := p.logger().With("filename", filename)

	ext, err := s.Extent(ctx)
	if err != nil {
		return nil, classifyCapture(fmt.Errorf("measuring target: %w", err))
	}
	if ext.Width <= 0 || ext.Height <= 0 {
		return nil, &EmptyCaptureError{Width: ext.Width, Height: ext.Height}
	}

	inliner := p.Inliner
	if inliner == nil {
		inliner = &Inliner{Logger: p.Logger}
	}
	inlined, skipped, err := inliner.Inline(ctx, s)
	if err != nil {
		return nil, classifyCapture(err)
	}
	log.Debug("images inlined", "inlined", len(inlined), "skipped", len(skipped))

	img, err := p.captureFrozen(ctx, s, o, inlined, skipped)
	if err != nil {
		log.Error("capture failed", "error", err)
		return nil, err
	}

	asm := &PageAssembler{
		Geometry:    o.Size.Geometry(o.Orientation),
		Orientation: o.Orientation,
		Encoding:    o.Encoding,
		JPEGQuality: o.JPEGQuality,
		MaxPages:    o.MaxPages,
		Title:       o.Title,
	}
	data, bands, err := asm.Assemble(img)
	if err != nil {
		log.Error("assembly failed", "error", err)
		return nil, err
	}

	b := img.Bounds()
	log.Info("document exported", "pages", len(bands), "bytes", len(data), "width", b.Dx(), "height", b.Dy())
	return &Result{
		data:     data,
		filename: filename + DocumentExt,
		bands:    bands,
		skipped:  skipped,
		width:    b.Dx(),
		height:   b.Dy(),
	}, nil
}

// captureFrozen brackets the capture pass with the freeze override and the
// scroll reset. Both are undone on every return path, scroll first.
func (p *Pipeline) captureFrozen(ctx context.Context, s Surface, o ExportOptions, inlined InlineMap, skipped []InlineSkip) (img image.Image, err error) {
	token, err := Freeze(ctx, s)
	if err != nil {
		return nil, classifyCapture(err)
	}
	defer func() {
		rctx, cancel := restoreContext(ctx)
		defer cancel()
		if rerr := token.Release(rctx); rerr != nil {
			p.logger().Error("freeze release failed", "error", rerr)
			if err == nil {
				img, err = nil, &CaptureError{Cause: CauseInternal, Err: rerr}
			}
		}
	}()

	x, y, err := s.ScrollPosition(ctx)
	if err != nil {
		return nil, classifyCapture(fmt.Errorf("reading scroll position: %w", err))
	}
	defer func() {
		rctx, cancel := restoreContext(ctx)
		defer cancel()
		if rerr := s.ScrollTo(rctx, x, y); rerr != nil {
			p.logger().Error("scroll restore failed", "error", rerr)
			if err == nil {
				img, err = nil, &CaptureError{Cause: CauseInternal, Err: fmt.Errorf("restoring scroll position: %w", rerr)}
			}
		}
	}()
	if err := s.ScrollTo(ctx, 0, 0); err != nil {
		return nil, classifyCapture(fmt.Errorf("resetting scroll position: %w", err))
	}

	if err := settle(ctx, o.SettleDelay); err != nil {
		return nil, classifyCapture(err)
	}

	engine := p.Engine
	if engine == nil {
		engine = &CaptureEngine{Logger: p.Logger}
	}
	return engine.Capture(ctx, s, CaptureRequest{
		Inlined:         inlined,
		Skipped:         skipped,
		Scale:           o.Scale,
		Background:      o.Background,
		Exclude:         o.Exclude,
		RevealPrefixes:  o.RevealPrefixes,
		StrictResources: o.StrictResources,
	})
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return discardLogger
}

func restoreContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
}

// settle waits d so the previous style mutation takes visual effect.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty filename", ErrInvalidOption)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: filename %q must be a base name", ErrInvalidOption, name)
	}
	return nil
}
