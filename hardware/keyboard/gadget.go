package keyboard

import (
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/types"
)

const (
	modShift   = 0x02
	reportSize = 8
)

const shiftedDigits = "!@#$%^&*()"

var hidSymbols = map[types.Key][2]byte{
	' ': {0, 0x2c}, '-': {0, 0x2d}, '_': {modShift, 0x2d}, '=': {0, 0x2e}, '+': {modShift, 0x2e},
	'[': {0, 0x2f}, '{': {modShift, 0x2f}, ']': {0, 0x30}, '}': {modShift, 0x30},
	'\\': {0, 0x31}, '|': {modShift, 0x31}, ';': {0, 0x33}, ':': {modShift, 0x33},
	'\'': {0, 0x34}, '"': {modShift, 0x34}, '`': {0, 0x35}, '~': {modShift, 0x35},
	',': {0, 0x36}, '<': {modShift, 0x36}, '.': {0, 0x37}, '>': {modShift, 0x37},
	'/': {0, 0x38}, '?': {modShift, 0x38},
	KeyEnter: {0, 0x28}, KeyEscape: {0, 0x29}, KeyBackspace: {0, 0x2a}, KeyTab: {0, 0x2b},
	KeyRight: {0, 0x4f}, KeyLeft: {0, 0x50}, KeyDown: {0, 0x51}, KeyUp: {0, 0x52},
}

// Usage maps key to HID boot keyboard modifier and usage id, US layout.
func Usage(k types.Key) (mod byte, code byte, ok bool) {
	switch {
	case k >= 'a' && k <= 'z':
		return 0, byte(0x04 + k - 'a'), true
	case k >= 'A' && k <= 'Z':
		return modShift, byte(0x04 + k - 'A'), true
	case k >= '1' && k <= '9':
		return 0, byte(0x1e + k - '1'), true
	case k == '0':
		return 0, 0x27, true
	case k >= KeyF1 && k <= KeyF10:
		return 0, byte(0x3a + k - KeyF1), true
	}
	for i := 0; i < len(shiftedDigits); i++ {
		if k == types.Key(shiftedDigits[i]) {
			return modShift, byte(0x1e + i), true
		}
	}
	if x, found := hidSymbols[k]; found {
		return x[0], x[1], true
	}
	return 0, 0, false
}

// Gadget types keys on USB host through /dev/hidgN boot keyboard function.
type Gadget struct {
	w io.Writer
}

func OpenGadget(device string) (*Gadget, error) {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(err, "hid gadget "+device)
		}
		return nil, errors.Annotatef(err, "hid gadget=%s", device)
	}
	return NewGadget(f), nil
}

func NewGadget(w io.Writer) *Gadget { return &Gadget{w: w} }

// Type sends press and release reports.
func (g *Gadget) Type(k types.Key) error {
	mod, code, ok := Usage(k)
	if !ok {
		return errors.NotSupportedf("key=%s", KeyName(k))
	}
	var press, release [reportSize]byte
	press[0] = mod
	press[2] = code
	if _, err := g.w.Write(press[:]); err != nil {
		return errors.Annotate(err, "hid gadget press")
	}
	if _, err := g.w.Write(release[:]); err != nil {
		return errors.Annotate(err, "hid gadget release")
	}
	return nil
}

func (g *Gadget) Close() error {
	if c, ok := g.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
