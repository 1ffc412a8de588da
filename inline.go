package pagecapture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"sort"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// InlineMap maps an image locator to a self-contained data URI.
type InlineMap map[string]string

// Inliner replaces external images with embedded copies so the offscreen
// render needs no further network access.
type Inliner struct {
	Fetcher Fetcher
	Logger  *slog.Logger
}

// Inline waits for every image in the capture target, then fetches and
// re-encodes each distinct external locator concurrently. Images that
// cannot be embedded are reported as skips and never fail the call; the
// error is only set when the surface cannot list its images.
func (in *Inliner) Inline(ctx context.Context, s Surface) (InlineMap, []InlineSkip, error) {
	nodes, err := s.Images(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing images: %w", err)
	}

	pending := make(map[string]ImageNode)
	var skips []InlineSkip
	for _, n := range nodes {
		if n.Src == "" || strings.HasPrefix(n.Src, "data:") {
			continue
		}
		if _, seen := pending[n.Src]; seen {
			continue
		}
		pending[n.Src] = n
	}

	var (
		mu  sync.Mutex
		out = make(InlineMap, len(pending))
		g   errgroup.Group
	)
	for _, n := range pending {
		g.Go(func() error {
			uri, skip := in.inlineOne(ctx, n)
			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				skips = append(skips, *skip)
				return nil
			}
			out[n.Src] = uri
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(skips, func(i, j int) bool { return skips[i].Locator < skips[j].Locator })
	for _, sk := range skips {
		in.logger().Warn("image left to native fallback", "locator", sk.Locator, "reason", sk.Reason, "error", sk.Err)
	}
	return out, skips, nil
}

func (in *Inliner) inlineOne(ctx context.Context, n ImageNode) (string, *InlineSkip) {
	skip := func(reason SkipReason, err error) (string, *InlineSkip) {
		return "", &InlineSkip{Locator: n.Src, Reason: reason, Err: err}
	}
	if n.Failed() {
		return skip(SkipLoadFailed, nil)
	}
	if in.Fetcher == nil {
		return skip(SkipFetch, errors.New("no fetcher configured"))
	}

	data, err := in.Fetcher.Fetch(ctx, n.Src)
	if err != nil {
		if errors.Is(err, ErrPermission) {
			return skip(SkipPermission, err)
		}
		return skip(SkipFetch, err)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return skip(SkipDecode, err)
	}

	uri, err := encodeDataURI(redraw(src, n.NaturalWidth, n.NaturalHeight))
	if err != nil {
		return skip(SkipEncode, err)
	}
	return uri, nil
}

// redraw paints src into a fresh buffer of the element's natural size.
func redraw(src image.Image, w, h int) *image.NRGBA {
	sb := src.Bounds()
	if w <= 0 || h <= 0 {
		w, h = sb.Dx(), sb.Dy()
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if sb.Dx() == w && sb.Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), src, sb.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	return dst
}

func encodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (in *Inliner) logger() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return discardLogger
}
