// Package keyboard provides optional key sources (CardKB over I2C,
// Linux input events) and USB HID gadget output forwarding keys to the host.
//
// Key space is CardKB native: printable ASCII plus special codes below.
package keyboard

import (
	"fmt"

	"github.com/temoto/zeos/internal/types"
)

const (
	KeyBackspace types.Key = 0x08
	KeyTab       types.Key = 0x09
	KeyEnter     types.Key = 0x0d
	KeyEscape    types.Key = 0x1b
	KeyF1        types.Key = 0x81
	KeyF10       types.Key = 0x8a
	KeyLeft      types.Key = 0xb4
	KeyUp        types.Key = 0xb5
	KeyDown      types.Key = 0xb6
	KeyRight     types.Key = 0xb7
)

var specialNames = map[types.Key]string{
	KeyBackspace: "backspace",
	KeyTab:       "tab",
	KeyEnter:     "enter",
	KeyEscape:    "escape",
	KeyLeft:      "left",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyRight:     "right",
}

func KeyName(k types.Key) string {
	if name, ok := specialNames[k]; ok {
		return name
	}
	if k >= KeyF1 && k <= KeyF10 {
		return fmt.Sprintf("f%d", k-KeyF1+1)
	}
	if k >= 0x20 && k < 0x7f {
		return string(rune(k))
	}
	return fmt.Sprintf("%#02x", uint16(k))
}

// Printable reports whether key is plain ASCII text.
func Printable(k types.Key) bool { return k >= 0x20 && k < 0x7f }
