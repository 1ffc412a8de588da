package pagecapture

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const cloneDoc = `<!DOCTYPE html>
<html><head><title>t</title><script>alert(1)</script></head>
<body>
<div data-pagecapture-target="tok" style="overflow: hidden">
  <h1 class="animate-fade title">Report</h1>
  <div class="stagger-2">row</div>
  <aside data-export-ignore="true"><p>toolbar</p></aside>
  <nav data-html2canvas-ignore="true">menu</nav>
  <aside data-export-ignore="false">kept</aside>
  <img src="/img/logo.png" srcset="/img/logo@2x.png 2x">
  <picture><source srcset="/img/hero.webp"><img src="https://cdn.test/hero.png"></picture>
  <img src="https://cdn.test/refused.png">
  <img src="data:image/gif;base64,R0lGOD">
  <script src="/app.js"></script>
</div>
</body></html>`

func newCloneSnapshot() *Snapshot {
	return &Snapshot{
		HTML:        cloneDoc,
		BaseURL:     "https://app.test/dash/",
		TargetAttr:  TargetAttr,
		TargetToken: "tok",
	}
}

func TestRewriteSnapshot(t *testing.T) {
	snap := newCloneSnapshot()
	inlined := InlineMap{
		"https://app.test/img/logo.png": "data:image/png;base64,TE9HTw==",
		"https://cdn.test/hero.png":     "data:image/png;base64,SEVSTw==",
	}
	res, err := rewriteSnapshot(snap, rewriteOptions{inlined: inlined, revealPrefixes: DefaultRevealPrefixes})
	if err != nil {
		t.Fatalf("rewriteSnapshot: %v", err)
	}
	out := res.html

	if strings.Contains(out, "<script") {
		t.Error("scripts not removed")
	}
	for _, gone := range []string{"toolbar", "menu", "logo@2x", "hero.webp"} {
		if strings.Contains(out, gone) {
			t.Errorf("%q still in clone", gone)
		}
	}
	if !strings.Contains(out, "kept") {
		t.Error(`node with data-export-ignore="false" removed`)
	}
	if res.removed != 2 {
		t.Errorf("removed = %d, want 2", res.removed)
	}
	for _, uri := range inlined {
		if !strings.Contains(out, uri) {
			t.Errorf("inlined %s missing", uri)
		}
	}
	if res.inlined != 2 {
		t.Errorf("inlined = %d, want 2", res.inlined)
	}
	if len(res.unresolved) != 1 || res.unresolved[0] != "https://cdn.test/refused.png" {
		t.Errorf("unresolved = %v", res.unresolved)
	}
	if !strings.Contains(out, `<base href="https://app.test/dash/"/>`) {
		t.Error("base element not inserted")
	}
	if !strings.Contains(out, "overflow: hidden; overflow: visible") {
		t.Error("target not allowed to overflow")
	}
	if strings.Count(out, "opacity: 1; transform: none;") != 2 {
		t.Error("entrance-animated elements not revealed")
	}
	if !strings.Contains(out, "animation-duration: 0s") {
		t.Error("freeze sheet missing from clone")
	}
	if !strings.Contains(snap.HTML, "<script") {
		t.Error("snapshot was modified in place")
	}
}

func TestRewriteSnapshot_RevealDisabled(t *testing.T) {
	res, err := rewriteSnapshot(newCloneSnapshot(), rewriteOptions{revealPrefixes: []string{}})
	if err != nil {
		t.Fatalf("rewriteSnapshot: %v", err)
	}
	if strings.Contains(res.html, "opacity: 1") {
		t.Error("reveal applied with an empty prefix list")
	}
}

func TestRewriteSnapshot_ExcludeHook(t *testing.T) {
	hook := func(n *html.Node) bool { return n.Data == "h1" }
	res, err := rewriteSnapshot(newCloneSnapshot(), rewriteOptions{exclude: hook})
	if err != nil {
		t.Fatalf("rewriteSnapshot: %v", err)
	}
	if strings.Contains(res.html, "Report") {
		t.Error("hook-excluded node kept")
	}
	if res.removed != 3 {
		t.Errorf("removed = %d, want 3", res.removed)
	}
}

func TestRewriteSnapshot_MissingTarget(t *testing.T) {
	snap := newCloneSnapshot()
	snap.TargetToken = "other"
	if _, err := rewriteSnapshot(snap, rewriteOptions{}); err == nil {
		t.Error("missing target accepted")
	}
}

func TestRewriteSnapshot_KeepsExistingBase(t *testing.T) {
	snap := newCloneSnapshot()
	snap.HTML = strings.Replace(snap.HTML, "<title>t</title>", `<base href="https://other.test/">`, 1)
	res, err := rewriteSnapshot(snap, rewriteOptions{})
	if err != nil {
		t.Fatalf("rewriteSnapshot: %v", err)
	}
	if strings.Count(res.html, "<base") != 1 {
		t.Error("second base element inserted")
	}
}

func TestRewriteSnapshot_RevealMatchesInsideClassName(t *testing.T) {
	snap := newCloneSnapshot()
	snap.HTML = strings.Replace(snap.HTML, `class="stagger-2"`, `class="fade-animate-in"`, 1)
	res, err := rewriteSnapshot(snap, rewriteOptions{revealPrefixes: DefaultRevealPrefixes})
	if err != nil {
		t.Fatalf("rewriteSnapshot: %v", err)
	}
	if n := strings.Count(res.html, "opacity: 1; transform: none;"); n != 2 {
		t.Errorf("revealed %d elements, want 2", n)
	}
}
