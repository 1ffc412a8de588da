package pdfcheck

import (
	"bytes"
	"fmt"
	"strconv"
)

const maxDepth = 100

// lexer is a recursive-descent reader of PDF objects over a byte slice.
type lexer struct {
	data  []byte
	pos   int
	depth int
}

func newLexer(data []byte, pos int) *lexer {
	return &lexer{data: data, pos: pos}
}

func (l *lexer) eof() bool { return l.pos >= len(l.data) }

// skipSpace skips whitespace and comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case isSpace(c):
			l.pos++
		default:
			return
		}
	}
}

// keyword consumes s if the input continues with it.
func (l *lexer) keyword(s string) bool {
	if !bytes.HasPrefix(l.data[l.pos:], []byte(s)) {
		return false
	}
	l.pos += len(s)
	return true
}

// token reads a run of regular characters.
func (l *lexer) token() string {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

// object reads one object at the current position.
func (l *lexer) object() (*Object, error) {
	if l.depth > maxDepth {
		return nil, fmt.Errorf("objects nested deeper than %d", maxDepth)
	}
	l.depth++
	defer func() { l.depth-- }()

	l.skipSpace()
	if l.eof() {
		return null, nil
	}
	c := l.data[l.pos]
	switch {
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		return l.dict()
	case c == '<':
		return l.hexString(), nil
	case c == '(':
		return l.literalString(), nil
	case c == '/':
		return &Object{Kind: KindName, Name: l.name()}, nil
	case c == '[':
		return l.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.numberOrRef(), nil
	case l.keyword("true"):
		return &Object{Kind: KindBool, Bool: true}, nil
	case l.keyword("false"):
		return &Object{Kind: KindBool}, nil
	case l.keyword("null"):
		return null, nil
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", c, l.pos)
}

func (l *lexer) literalString() *Object {
	l.pos++
	var buf bytes.Buffer
	for depth := 1; l.pos < len(l.data); l.pos++ {
		c := l.data[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos < len(l.data) {
				buf.WriteByte(unescape(l.data[l.pos]))
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return &Object{Kind: KindString, Str: buf.Bytes()}
			}
		}
		buf.WriteByte(c)
	}
	return &Object{Kind: KindString, Str: buf.Bytes()}
}

// unescape maps the character after a backslash. Octal escapes are not
// needed for the metadata strings this package looks at.
func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	return c
}

func (l *lexer) hexString() *Object {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if !isSpace(l.data[l.pos]) {
			digits = append(digits, hexNibble(l.data[l.pos]))
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, 0)
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = digits[2*i]<<4 | digits[2*i+1]
	}
	return &Object{Kind: KindString, Str: out}
}

func hexNibble(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

func (l *lexer) name() string {
	l.pos++
	raw := l.token()
	if !bytes.ContainsRune([]byte(raw), '#') {
		return raw
	}
	var buf bytes.Buffer
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			buf.WriteByte(hexNibble(raw[i+1])<<4 | hexNibble(raw[i+2]))
			i += 2
			continue
		}
		buf.WriteByte(raw[i])
	}
	return buf.String()
}

func (l *lexer) array() (*Object, error) {
	l.pos++
	arr := &Object{Kind: KindArray}
	for {
		l.skipSpace()
		if l.eof() {
			return nil, fmt.Errorf("unterminated array")
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		o, err := l.object()
		if err != nil {
			return nil, err
		}
		arr.Array = append(arr.Array, o)
	}
}

// dict reads a dictionary and the stream body that may follow it.
func (l *lexer) dict() (*Object, error) {
	l.pos += 2
	d := make(Dict)
	for {
		l.skipSpace()
		if l.eof() {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if l.keyword(">>") {
			break
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key expected at offset %d", l.pos)
		}
		key := l.name()
		val, err := l.object()
		if err != nil {
			return nil, err
		}
		d[key] = val
	}

	save := l.pos
	l.skipSpace()
	if !l.keyword("stream") {
		l.pos = save
		return &Object{Kind: KindDict, Dict: d}, nil
	}
	l.keyword("\r")
	l.keyword("\n")

	start := l.pos
	end := -1
	if n, ok := d.Int("Length"); ok && start+int(n) <= len(l.data) {
		end = start + int(n)
	} else if i := bytes.Index(l.data[start:], []byte("endstream")); i >= 0 {
		end = start + i
	}
	if end < 0 {
		return nil, fmt.Errorf("stream at offset %d has no end", start)
	}
	l.pos = end
	l.skipSpace()
	l.keyword("endstream")
	return &Object{Kind: KindStream, Dict: d, Stream: l.data[start:end]}, nil
}

func (l *lexer) numberOrRef() *Object {
	first := l.token()
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(first, 64)
		return &Object{Kind: KindReal, Real: f}
	}

	save := l.pos
	l.skipSpace()
	if g, err := strconv.Atoi(l.token()); err == nil {
		l.skipSpace()
		if l.pos < len(l.data) && l.data[l.pos] == 'R' &&
			(l.pos+1 == len(l.data) || isSpace(l.data[l.pos+1]) || isDelim(l.data[l.pos+1])) {
			l.pos++
			return &Object{Kind: KindRef, Ref: Ref{Num: int(n), Gen: g}}
		}
	}
	l.pos = save
	return &Object{Kind: KindInt, Int: n}
}
