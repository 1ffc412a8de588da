package pdfcheck

import (
	"fmt"
)

// Placement is an image drawn on a page: the resource name and the
// rectangle, in points from the lower-left page corner, that the unit
// square is mapped to.
type Placement struct {
	Name string
	X, Y float64
	W, H float64
}

// Clip is a rectangle passed to the "re W n" clipping sequence.
type Clip struct {
	X, Y float64
	W, H float64
}

// Page describes one page of a document.
type Page struct {
	Index    int
	Width    float64 // points
	Height   float64 // points
	Rotation int
	Images   []Placement
	Clips    []Clip
}

// inherited lists the page attributes a page takes from its ancestors.
var inherited = []string{"MediaBox", "Rotate", "Resources"}

// Pages walks the page tree and returns every page in order.
func (doc *Document) Pages() ([]Page, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	root, err := doc.Resolve(cat["Pages"])
	if err != nil {
		return nil, err
	}
	if root.Kind != KindDict {
		return nil, fmt.Errorf("pdfcheck: page tree root is not a dictionary")
	}

	var pages []Page
	visited := make(map[*Object]bool)
	var walk func(node *Object, attrs Dict) error
	walk = func(node *Object, attrs Dict) error {
		if visited[node] {
			return fmt.Errorf("pdfcheck: page tree cycle")
		}
		visited[node] = true

		merged := make(Dict, len(inherited))
		for _, k := range inherited {
			if v, ok := node.Dict[k]; ok {
				merged[k] = v
			} else if v, ok := attrs[k]; ok {
				merged[k] = v
			}
		}

		if t, _ := node.Dict.Name("Type"); t == "Page" {
			p, err := doc.page(len(pages), node.Dict, merged)
			if err != nil {
				return err
			}
			pages = append(pages, p)
			return nil
		}

		kids, err := doc.Resolve(node.Dict["Kids"])
		if err != nil {
			return err
		}
		for _, k := range kids.Array {
			kid, err := doc.Resolve(k)
			if err != nil {
				return err
			}
			if kid.Kind != KindDict {
				continue
			}
			if err := walk(kid, merged); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, nil); err != nil {
		return nil, err
	}
	return pages, nil
}

func (doc *Document) page(index int, d, attrs Dict) (Page, error) {
	p := Page{Index: index}

	box, err := doc.Resolve(attrs["MediaBox"])
	if err != nil {
		return p, err
	}
	if box.Kind != KindArray || len(box.Array) != 4 {
		return p, fmt.Errorf("pdfcheck: page %d has no media box", index+1)
	}
	var c [4]float64
	for i, o := range box.Array {
		o, err := doc.Resolve(o)
		if err != nil {
			return p, err
		}
		c[i], _ = o.Number()
	}
	p.Width, p.Height = c[2]-c[0], c[3]-c[1]

	if rot, err := doc.Resolve(attrs["Rotate"]); err == nil && rot.Kind == KindInt {
		p.Rotation = int(rot.Int)
	}

	content, err := doc.contents(d)
	if err != nil {
		return p, fmt.Errorf("pdfcheck: page %d: %w", index+1, err)
	}
	xobjects := doc.imageNames(attrs)
	p.Images, p.Clips = scanContent(content, xobjects)
	return p, nil
}

// contents concatenates the decoded content streams of a page.
func (doc *Document) contents(page Dict) ([]byte, error) {
	c, err := doc.Resolve(page["Contents"])
	if err != nil {
		return nil, err
	}
	parts := []*Object{c}
	if c.Kind == KindArray {
		parts = c.Array
	}
	var out []byte
	for _, part := range parts {
		s, err := doc.Resolve(part)
		if err != nil {
			return nil, err
		}
		if s.Kind != KindStream {
			continue
		}
		data, err := decodeStream(s)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out, nil
}

// imageNames returns the XObject resource names that refer to images.
func (doc *Document) imageNames(attrs Dict) map[string]bool {
	names := make(map[string]bool)
	res, err := doc.Resolve(attrs["Resources"])
	if err != nil || res.Kind != KindDict {
		return names
	}
	xo, err := doc.Resolve(res.Dict["XObject"])
	if err != nil || xo.Kind != KindDict {
		return names
	}
	for name, ref := range xo.Dict {
		o, err := doc.Resolve(ref)
		if err != nil || o.Kind != KindStream {
			continue
		}
		if sub, _ := o.Dict.Name("Subtype"); sub == "Image" {
			names[name] = true
		}
	}
	return names
}
