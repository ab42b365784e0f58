// Package gpio reads badge buttons and drives the heartbeat LED
// through Linux GPIO character device.
package gpio

import (
	"sort"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
)

const Consumer = "zeos"

// Buttons reads all configured lines with one ioctl per Snapshot.
type Buttons struct {
	chip      gpio.Chiper
	lines     gpio.Lineser
	names     []string
	offsets   []uint32
	activeLow bool
	own       bool
}

// OpenButtons opens chip device and requests pins as inputs.
func OpenButtons(chipPath string, pins map[string]int, activeLow bool) (*Buttons, error) {
	chip, err := gpio.Open(chipPath, Consumer)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	b, err := NewButtons(chip, pins, activeLow)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}
	b.own = true
	return b, nil
}

// NewButtons uses already opened chip, caller keeps ownership of chip.
func NewButtons(chip gpio.Chiper, pins map[string]int, activeLow bool) (*Buttons, error) {
	if len(pins) == 0 {
		return nil, errors.NotValidf("gpio buttons empty pin map")
	}
	if len(pins) > gpio.GPIOHANDLES_MAX {
		return nil, errors.NotValidf("gpio buttons count=%d max=%d", len(pins), gpio.GPIOHANDLES_MAX)
	}
	b := &Buttons{chip: chip, activeLow: activeLow}
	b.names = make([]string, 0, len(pins))
	for name := range pins {
		b.names = append(b.names, name)
	}
	sort.Strings(b.names)
	b.offsets = make([]uint32, len(b.names))
	for i, name := range b.names {
		pin := pins[name]
		if pin < 0 {
			return nil, errors.NotValidf("gpio button=%s pin=%d", name, pin)
		}
		b.offsets[i] = uint32(pin)
	}
	flag := gpio.GPIOHANDLE_REQUEST_INPUT
	if activeLow {
		flag |= gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW
	}
	var err error
	b.lines, err = chip.OpenLines(flag, Consumer, b.offsets...)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio buttons open lines=%v", b.offsets)
	}
	return b, nil
}

// Snapshot reports pressed=true for every active line.
// Active low inversion happens in the driver, values here are logical.
func (b *Buttons) Snapshot() (map[string]bool, error) {
	data, err := b.lines.Read()
	if err != nil {
		return nil, errors.Annotate(err, "gpio buttons read")
	}
	m := make(map[string]bool, len(b.names))
	for i, name := range b.names {
		m[name] = data.Values[i] != 0
	}
	return m, nil
}

func (b *Buttons) Names() []string { return append([]string(nil), b.names...) }

func (b *Buttons) Close() error {
	err := b.lines.Close()
	if b.own {
		if cerr := b.chip.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LED is single output line.
type LED struct {
	chip  gpio.Chiper
	lines gpio.Lineser
	set   gpio.LineSetFunc
	own   bool
}

func OpenLED(chipPath string, pin int) (*LED, error) {
	chip, err := gpio.Open(chipPath, Consumer)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	l, err := NewLED(chip, pin)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}
	l.own = true
	return l, nil
}

func NewLED(chip gpio.Chiper, pin int) (*LED, error) {
	if pin < 0 {
		return nil, errors.NotValidf("gpio led pin=%d", pin)
	}
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, Consumer, uint32(pin))
	if err != nil {
		return nil, errors.Annotatef(err, "gpio led open line=%d", pin)
	}
	return &LED{chip: chip, lines: lines, set: lines.SetFunc(uint32(pin))}, nil
}

// Set matches sched heartbeat signature.
func (l *LED) Set(on bool) error {
	var v byte
	if on {
		v = 1
	}
	l.set(v)
	return errors.Annotate(l.lines.Flush(), "gpio led flush")
}

func (l *LED) Close() error {
	err := l.lines.Close()
	if l.own {
		if cerr := l.chip.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
