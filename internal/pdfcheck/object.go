// Package pdfcheck reads back PDF documents written by the page assembler
// and reports each page's box and the images it places.
//
// It understands the subset of PDF that single-image-per-page documents
// use: classic or stream cross-reference sections, Flate-compressed
// streams, inherited page attributes and the q/Q/cm/Do content operators.
package pdfcheck

// Kind identifies the type of a PDF object.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindName
	KindArray
	KindDict
	KindStream
	KindRef
)

// Object is a parsed PDF value.
type Object struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Real   float64
	Str    []byte
	Name   string
	Array  []*Object
	Dict   Dict
	Stream []byte // raw, still filtered
	Ref    Ref
}

var null = &Object{Kind: KindNull}

// Ref is an indirect reference "N G R".
type Ref struct {
	Num int
	Gen int
}

// Number reports the numeric value of an integer or real object.
func (o *Object) Number() (float64, bool) {
	if o == nil {
		return 0, false
	}
	switch o.Kind {
	case KindInt:
		return float64(o.Int), true
	case KindReal:
		return o.Real, true
	}
	return 0, false
}

// Dict maps names to values.
type Dict map[string]*Object

// Int returns an integer entry. Reals are truncated.
func (d Dict) Int(key string) (int64, bool) {
	o, ok := d[key]
	if !ok {
		return 0, false
	}
	switch o.Kind {
	case KindInt:
		return o.Int, true
	case KindReal:
		return int64(o.Real), true
	}
	return 0, false
}

// Name returns a name entry.
func (d Dict) Name(key string) (string, bool) {
	o, ok := d[key]
	if !ok || o.Kind != KindName {
		return "", false
	}
	return o.Name, true
}

// Array returns an array entry. A single value is treated as a
// one-element array.
func (d Dict) Array(key string) ([]*Object, bool) {
	o, ok := d[key]
	if !ok {
		return nil, false
	}
	if o.Kind == KindArray {
		return o.Array, true
	}
	return []*Object{o}, true
}
