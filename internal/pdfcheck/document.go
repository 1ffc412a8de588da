package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNotPDF is returned for input without a %PDF- header.
var ErrNotPDF = errors.New("pdfcheck: not a PDF document")

type xrefEntry struct {
	offset int64
	// stream is the object stream holding the object, zero if stored
	// directly in the file.
	stream int
	index  int
}

// Document is a parsed PDF file.
type Document struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer Dict
	cache   map[int]*Object
}

// Open reads and parses the PDF file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdfcheck: %w", err)
	}
	return Load(data)
}

// Load parses a PDF held in memory.
func Load(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	doc := &Document{
		data:  data,
		xref:  make(map[int]xrefEntry),
		cache: make(map[int]*Object),
	}
	start, err := doc.startXRef()
	if err != nil {
		return nil, err
	}
	// Guards against /Prev cycles.
	seen := make(map[int64]bool)
	for off := start; off > 0 && !seen[off]; {
		seen[off] = true
		prev, err := doc.readXRef(off)
		if err != nil {
			return nil, fmt.Errorf("pdfcheck: xref at %d: %w", off, err)
		}
		off = prev
	}
	if doc.trailer == nil {
		return nil, fmt.Errorf("pdfcheck: no trailer")
	}
	return doc, nil
}

// Version returns the header version, for example "1.3".
func (doc *Document) Version() string {
	line, _, _ := bytes.Cut(doc.data[5:min(len(doc.data), 16)], []byte("\n"))
	return strings.TrimSpace(string(line))
}

func (doc *Document) startXRef() (int64, error) {
	tail := doc.data[max(0, len(doc.data)-1024):]
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("pdfcheck: startxref not found")
	}
	l := newLexer(tail, i+len("startxref"))
	l.skipSpace()
	off, err := strconv.ParseInt(l.token(), 10, 64)
	if err != nil || off <= 0 || off >= int64(len(doc.data)) {
		return 0, fmt.Errorf("pdfcheck: invalid startxref")
	}
	return off, nil
}

// readXRef loads one cross-reference section and returns the offset of the
// previous one, or 0. Entries already known from a newer section win.
func (doc *Document) readXRef(off int64) (int64, error) {
	if off < 0 || off >= int64(len(doc.data)) {
		return 0, fmt.Errorf("offset out of range")
	}
	l := newLexer(doc.data, int(off))
	l.skipSpace()
	var trailer Dict
	if l.keyword("xref") {
		if err := doc.readXRefTable(l); err != nil {
			return 0, err
		}
		l.skipSpace()
		if !l.keyword("trailer") {
			return 0, fmt.Errorf("trailer keyword missing")
		}
		t, err := l.object()
		if err != nil {
			return 0, err
		}
		if t.Kind != KindDict {
			return 0, fmt.Errorf("trailer is not a dictionary")
		}
		trailer = t.Dict
	} else {
		o, err := doc.indirectAt(l)
		if err != nil {
			return 0, err
		}
		if err := doc.readXRefStream(o); err != nil {
			return 0, err
		}
		trailer = o.Dict
	}
	if doc.trailer == nil {
		doc.trailer = trailer
	}
	prev, _ := trailer.Int("Prev")
	return prev, nil
}

// readXRefTable reads the subsections of a classic table. Each entry is a
// fixed 20-byte record.
func (doc *Document) readXRefTable(l *lexer) error {
	for {
		l.skipSpace()
		save := l.pos
		first, err1 := strconv.Atoi(l.token())
		l.skipSpace()
		count, err2 := strconv.Atoi(l.token())
		if err1 != nil || err2 != nil {
			l.pos = save
			return nil
		}
		l.skipSpace()
		for i := 0; i < count; i++ {
			if l.pos+20 > len(doc.data) {
				return fmt.Errorf("truncated xref table")
			}
			rec := string(doc.data[l.pos : l.pos+18])
			l.pos += 20
			if rec[17] != 'n' {
				continue
			}
			id := first + i
			if _, ok := doc.xref[id]; ok {
				continue
			}
			off, err := strconv.ParseInt(strings.TrimSpace(rec[:10]), 10, 64)
			if err != nil {
				return fmt.Errorf("xref entry %d: %w", id, err)
			}
			doc.xref[id] = xrefEntry{offset: off}
		}
	}
}

func (doc *Document) readXRefStream(o *Object) error {
	if o.Kind != KindStream {
		return fmt.Errorf("cross-reference stream expected")
	}
	data, err := decodeStream(o)
	if err != nil {
		return err
	}
	w, _ := o.Dict.Array("W")
	if len(w) != 3 {
		return fmt.Errorf("/W must have three entries")
	}
	w0, w1, w2 := int(w[0].Int), int(w[1].Int), int(w[2].Int)
	rec := w0 + w1 + w2
	if rec <= 0 {
		return fmt.Errorf("empty /W")
	}

	size, _ := o.Dict.Int("Size")
	index := []*Object{{Kind: KindInt}, {Kind: KindInt, Int: size}}
	if idx, ok := o.Dict.Array("Index"); ok {
		index = idx
	}
	pos := 0
	for s := 0; s+1 < len(index); s += 2 {
		first, count := int(index[s].Int), int(index[s+1].Int)
		for i := 0; i < count && pos+rec <= len(data); i++ {
			typ := 1
			if w0 > 0 {
				typ = beUint(data[pos : pos+w0])
			}
			f1 := beUint(data[pos+w0 : pos+w0+w1])
			f2 := beUint(data[pos+w0+w1 : pos+rec])
			pos += rec

			id := first + i
			if _, ok := doc.xref[id]; ok {
				continue
			}
			switch typ {
			case 1:
				doc.xref[id] = xrefEntry{offset: int64(f1)}
			case 2:
				doc.xref[id] = xrefEntry{stream: f1, index: f2}
			}
		}
	}
	return nil
}

func beUint(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

// indirectAt reads "N G obj <object>" at the lexer position.
func (doc *Document) indirectAt(l *lexer) (*Object, error) {
	l.skipSpace()
	l.token()
	l.skipSpace()
	l.token()
	l.skipSpace()
	if !l.keyword("obj") {
		return nil, fmt.Errorf("indirect object expected at offset %d", l.pos)
	}
	return l.object()
}

// Resolve follows o if it is a reference. Unknown objects resolve to null.
func (doc *Document) Resolve(o *Object) (*Object, error) {
	if o == nil {
		return null, nil
	}
	if o.Kind != KindRef {
		return o, nil
	}
	return doc.object(o.Ref.Num)
}

func (doc *Document) object(num int) (*Object, error) {
	if o, ok := doc.cache[num]; ok {
		return o, nil
	}
	e, ok := doc.xref[num]
	if !ok {
		return null, nil
	}
	// Placeholder breaks reference cycles.
	doc.cache[num] = null

	var (
		o   *Object
		err error
	)
	if e.stream != 0 {
		o, err = doc.objectInStream(e)
	} else {
		if e.offset <= 0 || e.offset >= int64(len(doc.data)) {
			err = fmt.Errorf("object %d offset out of range", num)
		} else {
			o, err = doc.indirectAt(newLexer(doc.data, int(e.offset)))
		}
	}
	if err != nil {
		delete(doc.cache, num)
		return nil, fmt.Errorf("pdfcheck: object %d: %w", num, err)
	}
	doc.cache[num] = o
	return o, nil
}

// objectInStream reads an object compressed inside an object stream.
func (doc *Document) objectInStream(e xrefEntry) (*Object, error) {
	container, err := doc.object(e.stream)
	if err != nil {
		return nil, err
	}
	if container.Kind != KindStream {
		return nil, fmt.Errorf("object stream %d is not a stream", e.stream)
	}
	data, err := decodeStream(container)
	if err != nil {
		return nil, err
	}
	n, _ := container.Dict.Int("N")
	first, _ := container.Dict.Int("First")
	if e.index >= int(n) {
		return nil, fmt.Errorf("index %d beyond object stream size %d", e.index, n)
	}

	l := newLexer(data, 0)
	var off int
	for i := 0; i <= e.index; i++ {
		l.skipSpace()
		l.token()
		l.skipSpace()
		off, err = strconv.Atoi(l.token())
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
	}
	return newLexer(data, int(first)+off).object()
}

// Catalog returns the document catalog.
func (doc *Document) Catalog() (Dict, error) {
	root, err := doc.Resolve(doc.trailer["Root"])
	if err != nil {
		return nil, err
	}
	if root.Kind != KindDict {
		return nil, fmt.Errorf("pdfcheck: catalog is not a dictionary")
	}
	return root.Dict, nil
}

// Info returns the document information dictionary, or nil.
func (doc *Document) Info() Dict {
	info, err := doc.Resolve(doc.trailer["Info"])
	if err != nil || info.Kind != KindDict {
		return nil
	}
	return info.Dict
}

// InfoString returns a text entry of the information dictionary. UTF-16BE
// strings with a byte order mark are decoded.
func (doc *Document) InfoString(key string) string {
	o, ok := doc.Info()[key]
	if !ok || o.Kind != KindString {
		return ""
	}
	return decodeText(o.Str)
}

func decodeText(b []byte) string {
	if len(b) < 2 || b[0] != 0xFE || b[1] != 0xFF {
		return string(b)
	}
	var sb strings.Builder
	for i := 2; i+1 < len(b); i += 2 {
		sb.WriteRune(rune(b[i])<<8 | rune(b[i+1]))
	}
	return sb.String()
}
