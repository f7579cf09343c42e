package grid

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decoder 把原始字节流增量地转换成文本，跨块的多字节序列保留到下一块
type decoder interface {
	Decode(p []byte) []byte
	// Flush 输出残留的尾部 (不完整的序列会被替换字符代替)
	Flush() []byte
}

func newDecoder(enc string) (decoder, error) {
	switch strings.ToLower(strings.ReplaceAll(enc, "-", "")) {
	case "":
		return nil, nil
	case "utf8":
		return &transformDecoder{t: unicode.UTF8.NewDecoder()}, nil
	case "utf16le", "ucs2":
		return &transformDecoder{t: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()}, nil
	case "latin1", "binary":
		return &transformDecoder{t: charmap.ISO8859_1.NewDecoder()}, nil
	case "hex":
		return hexDecoder{}, nil
	case "base64":
		return &base64Decoder{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

type transformDecoder struct {
	t       transform.Transformer
	pending []byte
}

func (d *transformDecoder) Decode(p []byte) []byte {
	src := append(d.pending, p...)
	d.pending = nil
	return d.run(src, false)
}

func (d *transformDecoder) Flush() []byte {
	if len(d.pending) == 0 {
		return nil
	}
	src := d.pending
	d.pending = nil
	return d.run(src, true)
}

func (d *transformDecoder) run(src []byte, atEOF bool) []byte {
	var out []byte
	dst := make([]byte, 2*len(src)+8)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		switch {
		case err == nil:
			return out
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out
		default:
			return out
		}
	}
}

type hexDecoder struct{}

func (hexDecoder) Decode(p []byte) []byte { return []byte(hex.EncodeToString(p)) }
func (hexDecoder) Flush() []byte          { return nil }

// base64Decoder 每次只编码 3 字节的整数倍，余数留给下一块，避免块边界出现填充
type base64Decoder struct {
	pending []byte
}

func (d *base64Decoder) Decode(p []byte) []byte {
	src := append(d.pending, p...)
	n := len(src) - len(src)%3
	d.pending = append([]byte(nil), src[n:]...)
	if n == 0 {
		return nil
	}
	return []byte(base64.StdEncoding.EncodeToString(src[:n]))
}

func (d *base64Decoder) Flush() []byte {
	if len(d.pending) == 0 {
		return nil
	}
	out := []byte(base64.StdEncoding.EncodeToString(d.pending))
	d.pending = nil
	return out
}
