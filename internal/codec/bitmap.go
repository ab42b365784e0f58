// Package codec converts 1 bit per pixel e-paper images to and from the
// text-safe wire form: base64(zlib(packed rows)).
//
// Packed rows have stride ceil(width/8) bytes, most significant bit is the
// leftmost pixel of its 8 column group.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"unicode"

	"github.com/juju/errors"
	"github.com/klauspost/compress/zlib"
)

const (
	Black uint8 = 0
	White uint8 = 1
)

// Inflated payloads beyond this are rejected before unpacking.
const MaxInflated = 4 << 20

// Palette index 0 black, 1 white.
var Palette = color.Palette{color.Gray{Y: 0x00}, color.Gray{Y: 0xff}}

type Bitmap struct {
	Width  int
	Height int
	// Pix holds Width*Height values 0 or 1, row-major.
	Pix []uint8
}

func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

func (b *Bitmap) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return Black
	}
	return b.Pix[y*b.Width+x]
}

func (b *Bitmap) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.Pix[y*b.Width+x] = v & 1
}

func (b *Bitmap) Fill(v uint8) {
	for i := range b.Pix {
		b.Pix[i] = v & 1
	}
}

// Blit copies src onto b with src top-left corner at (x, y), clipping.
func (b *Bitmap) Blit(src *Bitmap, x, y int) {
	for sy := 0; sy < src.Height; sy++ {
		for sx := 0; sx < src.Width; sx++ {
			b.Set(x+sx, y+sy, src.Pix[sy*src.Width+sx])
		}
	}
}

func (b *Bitmap) Equal(other *Bitmap) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Width == other.Width && b.Height == other.Height && bytes.Equal(b.Pix, other.Pix)
}

// Image returns paletted view sharing nothing with b.
func (b *Bitmap) Image() *image.Paletted {
	img := image.NewPaletted(b.Bounds(), Palette)
	copy(img.Pix, b.Pix)
	return img
}

// String renders rows of '#' (black) and '.' (white), used in tests and terminal dumps.
func (b *Bitmap) String() string {
	s := strings.Builder{}
	s.Grow((b.Width + 1) * b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.Pix[y*b.Width+x] == Black {
				s.WriteByte('#')
			} else {
				s.WriteByte('.')
			}
		}
		s.WriteByte('\n')
	}
	return s.String()
}

func Stride(width int) int { return (width + 7) / 8 }

// DecodeError is the only error kind Decode returns.
type DecodeError struct {
	Op  string // base64, inflate, bounds, size
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bitmap decode %s: %v", e.Op, e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

func IsDecodeError(err error) bool {
	_, ok := errors.Cause(err).(*DecodeError)
	return ok
}

func decodeErrorf(op string, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Op: op, Err: fmt.Errorf(format, args...)}
}

// Decode turns wire payload into width×height bitmap and the fixed palette.
// Any corruption yields *DecodeError and no bitmap.
func Decode(payload string, width, height int) (*Bitmap, color.Palette, error) {
	// packed rows can never exceed MaxInflated, this also keeps stride*height from overflowing
	if width <= 0 || height <= 0 || width > MaxInflated*8 || height > MaxInflated/Stride(width) {
		return nil, nil, decodeErrorf("size", "invalid size %dx%d", width, height)
	}
	compressed, err := decodeBase64(payload)
	if err != nil {
		return nil, nil, &DecodeError{Op: "base64", Err: err}
	}
	packed, err := inflate(compressed)
	if err != nil {
		return nil, nil, err
	}
	stride := Stride(width)
	need := stride * height
	if len(packed) < need {
		return nil, nil, decodeErrorf("bounds", "inflated length=%d expected=%d for %dx%d", len(packed), need, width, height)
	}

	b := NewBitmap(width, height)
	for y := 0; y < height; y++ {
		row := packed[y*stride : (y+1)*stride]
		for x := 0; x < width; x++ {
			b.Pix[y*width+x] = (row[x/8] >> (7 - uint(x%8))) & 1
		}
	}
	return b, Palette, nil
}

// Encode is the structural inverse of Decode.
func Encode(b *Bitmap) (string, error) {
	if b == nil || b.Width <= 0 || b.Height <= 0 || len(b.Pix) != b.Width*b.Height {
		return "", errors.NotValidf("bitmap")
	}
	packed := Pack(b)
	buf := bytes.NewBuffer(make([]byte, 0, len(packed)/4+64))
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return "", errors.Annotate(err, "zlib writer")
	}
	if _, err = zw.Write(packed); err != nil {
		return "", errors.Annotate(err, "zlib write")
	}
	if err = zw.Close(); err != nil {
		return "", errors.Annotate(err, "zlib close")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Pack returns row-major packed bytes, padding bits are zero.
func Pack(b *Bitmap) []byte {
	stride := Stride(b.Width)
	packed := make([]byte, stride*b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.Pix[y*b.Width+x] != 0 {
				packed[y*stride+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}
	return packed
}

func decodeBase64(payload string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	if clean == "" {
		return nil, fmt.Errorf("empty payload")
	}
	b, err := base64.StdEncoding.DecodeString(clean)
	if err != nil && len(clean)%4 != 0 {
		// some senders strip padding
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
	}
	return b, err
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &DecodeError{Op: "inflate", Err: err}
	}
	defer zr.Close()
	packed, err := io.ReadAll(io.LimitReader(zr, MaxInflated+1))
	if err != nil {
		return nil, &DecodeError{Op: "inflate", Err: err}
	}
	if len(packed) > MaxInflated {
		return nil, decodeErrorf("inflate", "inflated payload exceeds %d bytes", MaxInflated)
	}
	return packed, nil
}
