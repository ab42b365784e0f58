package keyboard

import (
	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/types"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

const (
	CardKBAddr = 0x5f
	CardKBTag  = "cardkb"
)

type txer interface {
	Tx(w, r []byte) error
}

// CardKB answers every 1 byte read with pending key or 0.
type CardKB struct {
	dev    txer
	closer func() error
	buf    [1]byte
}

// OpenCardKB initializes periph host drivers and opens I2C bus by name
// ("1" for /dev/i2c-1, empty for first available).
// Missing device is reported with errors.IsNotFound.
func OpenCardKB(busName string, addr uint16) (*CardKB, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.NewNotFound(err, "i2c bus="+busName)
	}
	kb := NewCardKB(&i2c.Dev{Bus: bus, Addr: addr})
	kb.closer = bus.Close
	if err = kb.Probe(); err != nil {
		_ = bus.Close()
		return nil, errors.NewNotFound(err, "cardkb probe")
	}
	return kb, nil
}

func NewCardKB(dev txer) *CardKB { return &CardKB{dev: dev} }

// Probe succeeds if device acknowledges a read.
func (kb *CardKB) Probe() error {
	_, _, err := kb.PollKey()
	return err
}

func (kb *CardKB) PollKey() (types.Key, bool, error) {
	kb.buf[0] = 0
	if err := kb.dev.Tx(nil, kb.buf[:]); err != nil {
		return 0, false, errors.Annotate(err, "cardkb read")
	}
	if kb.buf[0] == 0 {
		return 0, false, nil
	}
	return types.Key(kb.buf[0]), true, nil
}

func (kb *CardKB) String() string { return CardKBTag }

func (kb *CardKB) Close() error {
	if kb.closer == nil {
		return nil
	}
	return kb.closer()
}
