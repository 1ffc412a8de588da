package pagecapture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(w, h, color.RGBA{G: 128, A: 255})); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeDataURI(t *testing.T, uri string) image.Image {
	t.Helper()
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("not a PNG data URI: %.40q", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("decoding base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decoding png: %v", err)
	}
	return img
}

func TestInline_NoImages(t *testing.T) {
	s := newFakeSurface(10, 10)
	in := &Inliner{Fetcher: &mapFetcher{}}
	m, skips, err := in.Inline(context.Background(), s)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if len(m) != 0 || len(skips) != 0 {
		t.Errorf("Inline = %v, %v, want empty", m, skips)
	}
}

func TestInline_Mixed(t *testing.T) {
	const (
		ok      = "https://cdn.test/logo.png"
		refused = "https://private.test/secret.png"
		broken  = "https://cdn.test/broken.png"
		garbage = "https://cdn.test/garbage.png"
		missing = "https://cdn.test/missing.png"
	)
	s := newFakeSurface(10, 10)
	s.images = []ImageNode{
		{Src: ok, Complete: true, NaturalWidth: 8, NaturalHeight: 4},
		{Src: ok, Complete: true, NaturalWidth: 8, NaturalHeight: 4},
		{Src: refused, Complete: true, NaturalWidth: 5, NaturalHeight: 5},
		{Src: broken, Complete: true},
		{Src: garbage, Complete: true, NaturalWidth: 2, NaturalHeight: 2},
		{Src: missing, Complete: true, NaturalWidth: 2, NaturalHeight: 2},
		{Src: "data:image/png;base64,AAAA", Complete: true, NaturalWidth: 1, NaturalHeight: 1},
		{Src: "", Complete: true},
	}
	f := &mapFetcher{
		bodies: map[string][]byte{
			ok:      pngBytes(t, 16, 8),
			garbage: []byte("not an image"),
		},
		errs: map[string]error{refused: ErrPermission},
	}
	in := &Inliner{Fetcher: f}
	m, skips, err := in.Inline(context.Background(), s)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}

	if len(m) != 1 {
		t.Fatalf("inlined %d locators, want 1: %v", len(m), m)
	}
	img := decodeDataURI(t, m[ok])
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("inlined image is %dx%d, want natural size 8x4", b.Dx(), b.Dy())
	}
	if f.hits[ok] != 1 {
		t.Errorf("duplicate locator fetched %d times", f.hits[ok])
	}
	if f.hits[broken] != 0 {
		t.Error("failed image was fetched")
	}

	want := map[string]SkipReason{
		broken:  SkipLoadFailed,
		garbage: SkipDecode,
		missing: SkipFetch,
		refused: SkipPermission,
	}
	if len(skips) != len(want) {
		t.Fatalf("skips = %v", skips)
	}
	for i, sk := range skips {
		if want[sk.Locator] != sk.Reason {
			t.Errorf("skip %s reason = %s, want %s", sk.Locator, sk.Reason, want[sk.Locator])
		}
		if i > 0 && skips[i-1].Locator > sk.Locator {
			t.Error("skips are not sorted by locator")
		}
	}
}

func TestInline_NoFetcher(t *testing.T) {
	s := newFakeSurface(10, 10)
	s.images = []ImageNode{{Src: "https://cdn.test/a.png", Complete: true, NaturalWidth: 1, NaturalHeight: 1}}
	m, skips, err := (&Inliner{}).Inline(context.Background(), s)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if len(m) != 0 || len(skips) != 1 || skips[0].Reason != SkipFetch {
		t.Errorf("Inline = %v, %v", m, skips)
	}
}

func TestInline_ListError(t *testing.T) {
	s := newFakeSurface(10, 10)
	s.imagesErr = errors.New("detached")
	if _, _, err := (&Inliner{}).Inline(context.Background(), s); err == nil {
		t.Error("Inline ignored a surface error")
	}
}

func TestRedraw(t *testing.T) {
	src := solidImage(10, 10, color.White)
	if b := redraw(src, 0, 0).Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Errorf("redraw without natural size = %v", b)
	}
	if b := redraw(src, 4, 6).Bounds(); b.Dx() != 4 || b.Dy() != 6 {
		t.Errorf("redraw to 4x6 = %v", b)
	}
}

func TestImageNode_Failed(t *testing.T) {
	tests := []struct {
		n    ImageNode
		want bool
	}{
		{ImageNode{Complete: true, NaturalWidth: 1, NaturalHeight: 1}, false},
		{ImageNode{Complete: true}, true},
		{ImageNode{Complete: true, NaturalWidth: 3}, true},
		{ImageNode{}, false},
	}
	for _, tt := range tests {
		if got := tt.n.Failed(); got != tt.want {
			t.Errorf("%+v.Failed() = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestInlineSkip_Error(t *testing.T) {
	sk := InlineSkip{Locator: "https://x.test/a.png", Reason: SkipPermission, Err: ErrPermission}
	if !errors.Is(sk, ErrPermission) {
		t.Error("InlineSkip does not unwrap its cause")
	}
	if !strings.Contains(sk.Error(), "permission") {
		t.Errorf("Error() = %q", sk.Error())
	}
	if got := (InlineSkip{Locator: "a", Reason: SkipLoadFailed}).Error(); !strings.Contains(got, "load_failed") {
		t.Errorf("Error() = %q", got)
	}
}
