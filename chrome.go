package pagecapture

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromeSurface is a [Surface] backed by a chromedp tab. The capture
// target is the first element matching Selector.
type ChromeSurface struct {
	tab      context.Context
	selector string
}

// NewChromeSurface wraps a chromedp tab context, for example one created
// with chromedp.NewContext, whose document should be exported.
func NewChromeSurface(tab context.Context, selector string) *ChromeSurface {
	if selector == "" {
		selector = DefaultSelector
	}
	return &ChromeSurface{tab: tab, selector: selector}
}

// run executes actions on the tab while honouring ctx cancellation.
func (s *ChromeSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	return runLinked(ctx, s.tab, actions...)
}

// runLinked runs actions on a chromedp context, cancelling them when ctx
// is done. The tab itself stays open.
func runLinked(ctx, tab context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// jsArgs renders Go values as a JavaScript argument list.
func jsArgs(args ...any) string {
	b, _ := json.Marshal(args)
	s := string(b)
	return s[1 : len(s)-1]
}

const extentJS = `((sel) => {
  const el = document.querySelector(sel);
  if (!el) throw new Error('capture target not found: ' + sel);
  const r = el.getBoundingClientRect();
  return {
    width: Math.ceil(Math.max(el.scrollWidth, r.width)),
    height: Math.ceil(Math.max(el.scrollHeight, r.height)),
  };
})(%s)`

// Extent implements [Surface].
func (s *ChromeSurface) Extent(ctx context.Context) (Extent, error) {
	var out struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(extentJS, jsArgs(s.selector)), &out)); err != nil {
		return Extent{}, err
	}
	return Extent{Width: int(math.Ceil(out.Width)), Height: int(math.Ceil(out.Height))}, nil
}

const imagesJS = `(async (sel) => {
  const root = document.querySelector(sel);
  if (!root) throw new Error('capture target not found: ' + sel);
  const imgs = Array.from(root.querySelectorAll('img'));
  // Lazy images outside the viewport never settle on their own.
  for (const img of imgs) {
    if (img.loading === 'lazy') img.loading = 'eager';
  }
  await Promise.all(imgs.map((img) => img.complete ? null : new Promise((resolve) => {
    img.addEventListener('load', resolve, { once: true });
    img.addEventListener('error', resolve, { once: true });
  })));
  return imgs.map((img) => ({
    src: img.src,
    complete: img.complete,
    naturalWidth: img.naturalWidth,
    naturalHeight: img.naturalHeight,
  }));
})(%s)`

// Images implements [Surface].
func (s *ChromeSurface) Images(ctx context.Context) ([]ImageNode, error) {
	var out []struct {
		Src           string `json:"src"`
		Complete      bool   `json:"complete"`
		NaturalWidth  int    `json:"naturalWidth"`
		NaturalHeight int    `json:"naturalHeight"`
	}
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(imagesJS, jsArgs(s.selector)), &out, awaitPromise)); err != nil {
		return nil, err
	}
	nodes := make([]ImageNode, len(out))
	for i, o := range out {
		nodes[i] = ImageNode{Src: o.Src, Complete: o.Complete, NaturalWidth: o.NaturalWidth, NaturalHeight: o.NaturalHeight}
	}
	return nodes, nil
}

const installStyleJS = `((id, css) => {
  if (document.getElementById(id)) return true;
  const style = document.createElement('style');
  style.id = id;
  style.textContent = css;
  (document.head || document.documentElement).appendChild(style);
  return true;
})(%s)`

const removeStyleJS = `((id) => {
  const style = document.getElementById(id);
  if (style) style.remove();
  return true;
})(%s)`

// InstallStyle implements [Surface].
func (s *ChromeSurface) InstallStyle(ctx context.Context, id, css string) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(fmt.Sprintf(installStyleJS, jsArgs(id, css)), &ok))
}

// RemoveStyle implements [Surface].
func (s *ChromeSurface) RemoveStyle(ctx context.Context, id string) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(fmt.Sprintf(removeStyleJS, jsArgs(id)), &ok))
}

// ScrollPosition implements [Surface].
func (s *ChromeSurface) ScrollPosition(ctx context.Context) (float64, float64, error) {
	var pos []float64
	if err := s.run(ctx, chromedp.Evaluate(`[window.scrollX, window.scrollY]`, &pos)); err != nil {
		return 0, 0, err
	}
	if len(pos) != 2 {
		return 0, 0, fmt.Errorf("unexpected scroll position %v", pos)
	}
	return pos[0], pos[1], nil
}

// ScrollTo implements [Surface].
func (s *ChromeSurface) ScrollTo(ctx context.Context, x, y float64) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(fmt.Sprintf(`(window.scrollTo(%s), true)`, jsArgs(x, y)), &ok))
}

// snapshotJS clones the document, marks the target in the clone by its
// child-index path, and replaces readable canvases with their pixels.
const snapshotJS = `((sel, attr, token) => {
  const target = document.querySelector(sel);
  if (!target) throw new Error('capture target not found: ' + sel);
  const path = [];
  for (let n = target; n && n !== document.documentElement; n = n.parentElement) {
    path.unshift(Array.prototype.indexOf.call(n.parentElement.children, n));
  }
  const clone = document.documentElement.cloneNode(true);
  let node = clone;
  for (const i of path) node = node.children[i];
  node.setAttribute(attr, token);

  const live = document.querySelectorAll('canvas');
  const copies = clone.querySelectorAll('canvas');
  live.forEach((c, i) => {
    const copy = copies[i];
    if (!copy) return;
    try {
      const img = document.createElement('img');
      img.src = c.toDataURL('image/png');
      for (const a of c.attributes) img.setAttribute(a.name, a.value);
      img.style.width = c.clientWidth + 'px';
      img.style.height = c.clientHeight + 'px';
      copy.replaceWith(img);
    } catch (e) {}
  });

  return {
    html: '<!DOCTYPE html>' + clone.outerHTML,
    baseURL: document.baseURI,
    width: window.innerWidth,
    height: window.innerHeight,
  };
})(%s)`

// Snapshot implements [Surface].
func (s *ChromeSurface) Snapshot(ctx context.Context, attr, token string) (*Snapshot, error) {
	var out struct {
		HTML    string `json:"html"`
		BaseURL string `json:"baseURL"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
	}
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(snapshotJS, jsArgs(s.selector, attr, token)), &out)); err != nil {
		return nil, err
	}
	return &Snapshot{
		HTML:        out.HTML,
		BaseURL:     out.BaseURL,
		TargetAttr:  attr,
		TargetToken: token,
		Viewport:    Extent{Width: out.Width, Height: out.Height},
	}, nil
}
