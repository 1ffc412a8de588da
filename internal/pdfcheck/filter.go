package pdfcheck

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// maxDecodedSize bounds a single decoded stream (256 MB).
const maxDecodedSize = 256 << 20

// decodeStream removes the filters listed in a stream dictionary.
// Image filters are passed through untouched.
func decodeStream(o *Object) ([]byte, error) {
	filters, _ := o.Dict.Array("Filter")
	parms, _ := o.Dict.Array("DecodeParms")

	data := o.Stream
	for i, f := range filters {
		if f.Kind != KindName {
			return nil, fmt.Errorf("filter entry is not a name")
		}
		var p Dict
		if i < len(parms) && parms[i].Kind == KindDict {
			p = parms[i].Dict
		}
		var err error
		switch f.Name {
		case "FlateDecode", "Fl":
			data, err = inflate(data, p)
		case "ASCIIHexDecode", "AHx":
			data = newLexer(append([]byte{'<'}, data...), 0).hexString().Str
		case "DCTDecode", "DCT", "JPXDecode":
		default:
			err = fmt.Errorf("unsupported filter %s", f.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func inflate(data []byte, parms Dict) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if len(out) > maxDecodedSize {
		return nil, fmt.Errorf("decoded stream exceeds %d bytes", maxDecodedSize)
	}
	if pred, _ := parms.Int("Predictor"); pred >= 10 {
		return unpredictPNG(out, parms), nil
	}
	return out, nil
}

// unpredictPNG reverses the per-row PNG filters used by cross-reference
// streams.
func unpredictPNG(data []byte, parms Dict) []byte {
	columns, ok := parms.Int("Columns")
	if !ok || columns <= 0 {
		columns = 1
	}
	colors, ok := parms.Int("Colors")
	if !ok || colors <= 0 {
		colors = 1
	}
	bpc, ok := parms.Int("BitsPerComponent")
	if !ok || bpc <= 0 {
		bpc = 8
	}
	rowLen := int((columns*colors*bpc + 7) / 8)
	bpp := max(int((colors*bpc+7)/8), 1)
	stride := rowLen + 1

	rows := len(data) / stride
	out := make([]byte, rows*rowLen)
	prev := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		src := data[r*stride+1 : (r+1)*stride]
		dst := out[r*rowLen : (r+1)*rowLen]
		for i := range dst {
			var left, upLeft byte
			if i >= bpp {
				left = dst[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch data[r*stride] {
			case 1:
				dst[i] = src[i] + left
			case 2:
				dst[i] = src[i] + up
			case 3:
				dst[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = src[i] + paeth(left, up, upLeft)
			default:
				dst[i] = src[i]
			}
		}
		copy(prev, dst)
	}
	return out
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
