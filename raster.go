package pagecapture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeRasterizer renders snapshots in a fresh tab of a chromedp browser,
// never in the tab the snapshot was taken from.
type ChromeRasterizer struct {
	browser context.Context
}

// NewChromeRasterizer returns a rasterizer opening tabs on browser, a
// context created with chromedp.NewContext.
func NewChromeRasterizer(browser context.Context) *ChromeRasterizer {
	return &ChromeRasterizer{browser: browser}
}

const settleCloneJS = `(async () => {
  const imgs = Array.from(document.images);
  for (const img of imgs) {
    if (img.loading === 'lazy') img.loading = 'eager';
  }
  await Promise.all(imgs.map((img) => img.complete ? null : new Promise((resolve) => {
    img.addEventListener('load', resolve, { once: true });
    img.addEventListener('error', resolve, { once: true });
  })));
  if (document.fonts && document.fonts.ready) await document.fonts.ready;
  return true;
})()`

const measureCloneJS = `((attr, token) => {
  const el = document.querySelector('[' + attr + '="' + token + '"]');
  if (!el) throw new Error('capture target missing from clone');
  const r = el.getBoundingClientRect();
  return {
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    width: Math.ceil(Math.max(el.scrollWidth, r.width)),
    height: Math.ceil(Math.max(el.scrollHeight, r.height)),
  };
})(%s)`

type cloneBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rasterize implements [Rasterizer].
func (r *ChromeRasterizer) Rasterize(ctx context.Context, snap *Snapshot, opts RasterOptions) (image.Image, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browser)
	defer tabCancel()

	vw, vh := snap.Viewport.Width, snap.Viewport.Height
	if vw <= 0 {
		vw = 1280
	}
	if vh <= 0 {
		vh = 800
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	var (
		ok   bool
		box  cloneBox
		shot []byte
	)
	err := runLinked(ctx, tabCtx,
		emulation.SetDeviceMetricsOverride(int64(vw), int64(vh), scale, false),
		emulation.SetDefaultBackgroundColorOverride().WithColor(toCDPColor(opts.Background)),
		chromedp.Navigate("about:blank"),
		setDocumentContent(snap.HTML),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(settleCloneJS, &ok, awaitPromise),
		chromedp.Evaluate(fmt.Sprintf(measureCloneJS, jsArgs(snap.TargetAttr, snap.TargetToken)), &box),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if box.Width <= 0 || box.Height <= 0 {
				return &EmptyCaptureError{Width: int(box.Width), Height: int(box.Height)}
			}
			var err error
			shot, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				WithClip(&page.Viewport{
					X:      box.X,
					Y:      box.Y,
					Width:  box.Width,
					Height: box.Height,
					Scale:  1,
				}).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, classifyChromeError(err)
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return img, nil
}

// setDocumentContent replaces the main frame's document with html.
func setDocumentContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

// classifyChromeError marks protocol errors that report a permission or
// blocked-resource condition as [ErrTainted].
func classifyChromeError(err error) error {
	var pe *cdproto.Error
	if !errors.As(err, &pe) {
		return err
	}
	msg := strings.ToLower(pe.Message)
	for _, marker := range []string{"permission", "tainted", "err_blocked", "err_access_denied"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrTainted, err)
		}
	}
	return err
}

func toCDPColor(c color.Color) *cdp.RGBA {
	if c == nil {
		c = color.White
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return &cdp.RGBA{
		R: int64(n.R),
		G: int64(n.G),
		B: int64(n.B),
		A: math.Round(float64(n.A)/255*100) / 100,
	}
}
