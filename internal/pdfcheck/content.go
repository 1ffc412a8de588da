package pdfcheck

import (
	"bytes"
)

// matrix is a PDF transformation [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m×n, the transform that applies m first and then n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// scanContent interprets the graphics-state operators of a content stream
// and collects image placements and clipping rectangles in page space.
// Only axis-aligned transforms are reported exactly.
func scanContent(data []byte, images map[string]bool) ([]Placement, []Clip) {
	var (
		placements []Placement
		clips      []Clip
		operands   []*Object
		stack      []matrix
		ctm        = identity
		pending    *Clip
	)

	nums := func(n int) ([]float64, bool) {
		if len(operands) < n {
			return nil, false
		}
		out := make([]float64, n)
		for i, o := range operands[len(operands)-n:] {
			v, ok := o.Number()
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	}

	l := newLexer(data, 0)
	for {
		l.skipSpace()
		if l.eof() {
			break
		}
		c := l.data[l.pos]
		if c == '(' || c == '<' || c == '/' || c == '[' || c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			o, err := l.object()
			if err != nil {
				l.pos++
				operands = operands[:0]
				continue
			}
			operands = append(operands, o)
			continue
		}

		op := l.token()
		switch op {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if v, ok := nums(6); ok {
				ctm = matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.mul(ctm)
			}
		case "re":
			if v, ok := nums(4); ok {
				x0, y0 := ctm.apply(v[0], v[1])
				x1, y1 := ctm.apply(v[0]+v[2], v[1]+v[3])
				pending = &Clip{X: min(x0, x1), Y: min(y0, y1), W: abs(x1 - x0), H: abs(y1 - y0)}
			}
		case "W", "W*":
			if pending != nil {
				clips = append(clips, *pending)
			}
		case "Do":
			if n := len(operands); n > 0 && operands[n-1].Kind == KindName && images[operands[n-1].Name] {
				x0, y0 := ctm.apply(0, 0)
				x1, y1 := ctm.apply(1, 1)
				placements = append(placements, Placement{
					Name: operands[n-1].Name,
					X:    min(x0, x1),
					Y:    min(y0, y1),
					W:    abs(x1 - x0),
					H:    abs(y1 - y0),
				})
			}
		case "BI":
			// Inline image data is binary; skip to its end marker.
			if i := bytes.Index(l.data[l.pos:], []byte("EI")); i >= 0 {
				l.pos += i + 2
			} else {
				l.pos = len(l.data)
			}
		case "":
			l.pos++
		}
		if op != "re" && op != "W" && op != "W*" {
			pending = nil
		}
		operands = operands[:0]
	}
	return placements, clips
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
