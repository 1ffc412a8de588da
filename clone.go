package pagecapture

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Opt-in markers that exclude a node and its subtree from capture.
const (
	ExcludeAttr       = "data-export-ignore"
	html2canvasIgnore = "data-html2canvas-ignore"
)

// DefaultRevealPrefixes name class fragments used for entrance animations.
// Elements with a class containing one of them are forced visible in the
// clone.
var DefaultRevealPrefixes = []string{"animate-", "stagger-"}

type rewriteOptions struct {
	inlined        InlineMap
	exclude        func(*html.Node) bool
	revealPrefixes []string
	extraCSS       string
}

type rewriteResult struct {
	html       string
	inlined    int
	removed    int
	unresolved []string
}

// rewriteSnapshot prepares a static copy of the snapshot for the offscreen
// pass: inlined images, no excluded nodes, no scripts, and the capture
// target allowed to grow to its full content size.
func rewriteSnapshot(snap *Snapshot, opts rewriteOptions) (*rewriteResult, error) {
	doc, err := html.Parse(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	var base *url.URL
	if snap.BaseURL != "" {
		if base, err = url.Parse(snap.BaseURL); err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
	}

	res := &rewriteResult{}
	var drop []*html.Node
	var head *html.Node
	foundTarget := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Head && head == nil:
				head = n
			case n.DataAtom == atom.Script:
				drop = append(drop, n)
				return
			case attr(n, snap.TargetAttr) == snap.TargetToken:
				foundTarget = true
				appendStyle(n, "overflow: visible; position: relative;")
			case isExcluded(n, opts.exclude):
				drop = append(drop, n)
				res.removed++
				return
			}
			if hasRevealClass(n, opts.revealPrefixes) {
				appendStyle(n, "opacity: 1; transform: none;")
			}
			if n.DataAtom == atom.Img {
				rewriteImage(n, base, opts.inlined, res)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !foundTarget {
		return nil, fmt.Errorf("capture target %s=%q missing from snapshot", snap.TargetAttr, snap.TargetToken)
	}
	for _, n := range drop {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	if head != nil {
		if base != nil && findChild(head, atom.Base) == nil {
			b := element(atom.Base)
			b.Attr = []html.Attribute{{Key: "href", Val: base.String()}}
			head.InsertBefore(b, head.FirstChild)
		}
		style := element(atom.Style)
		style.AppendChild(&html.Node{Type: html.TextNode, Data: freezeCSS + "\n" + opts.extraCSS})
		head.AppendChild(style)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("rendering snapshot: %w", err)
	}
	res.html = buf.String()
	return res, nil
}

func rewriteImage(n *html.Node, base *url.URL, inlined InlineMap, res *rewriteResult) {
	src := attr(n, "src")
	if src == "" || strings.HasPrefix(src, "data:") {
		return
	}
	locator := src
	if base != nil {
		if u, err := base.Parse(src); err == nil {
			locator = u.String()
		}
	}
	uri, ok := inlined[locator]
	if !ok {
		res.unresolved = append(res.unresolved, locator)
		return
	}
	setAttr(n, "src", uri)
	removeAttr(n, "srcset")
	if p := n.Parent; p != nil && p.DataAtom == atom.Picture {
		for c := p.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode && c.DataAtom == atom.Source {
				p.RemoveChild(c)
			}
			c = next
		}
	}
	res.inlined++
}

func isExcluded(n *html.Node, hook func(*html.Node) bool) bool {
	if attr(n, ExcludeAttr) == "true" || attr(n, html2canvasIgnore) == "true" {
		return true
	}
	return hook != nil && hook(n)
}

func hasRevealClass(n *html.Node, prefixes []string) bool {
	if len(prefixes) == 0 {
		return false
	}
	for _, class := range strings.Fields(attr(n, "class")) {
		for _, p := range prefixes {
			if strings.Contains(class, p) {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func appendStyle(n *html.Node, decl string) {
	style := strings.TrimSpace(attr(n, "style"))
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	if style != "" {
		style += " "
	}
	setAttr(n, "style", style+decl)
}

func findChild(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}
