package keyboard

import (
	"io"
	"os"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/inputevent-go"
	"github.com/temoto/zeos/internal/types"
)

const (
	DevInputTag = "dev-input-event"
	evKey       = 0x01
	evBuffer    = 32
)

// Linux KEY_* codes to CardKB key space.
var evdevKeys = map[uint16]types.Key{
	1: KeyEscape, 14: KeyBackspace, 15: KeyTab, 28: KeyEnter, 57: ' ',
	103: KeyUp, 105: KeyLeft, 106: KeyRight, 108: KeyDown,
	2: '1', 3: '2', 4: '3', 5: '4', 6: '5', 7: '6', 8: '7', 9: '8', 10: '9', 11: '0',
	12: '-', 13: '=', 26: '[', 27: ']', 39: ';', 40: '\'', 41: '`', 43: '\\',
	51: ',', 52: '.', 53: '/',
	16: 'q', 17: 'w', 18: 'e', 19: 'r', 20: 't', 21: 'y', 22: 'u', 23: 'i', 24: 'o', 25: 'p',
	30: 'a', 31: 's', 32: 'd', 33: 'f', 34: 'g', 35: 'h', 36: 'j', 37: 'k', 38: 'l',
	44: 'z', 45: 'x', 46: 'c', 47: 'v', 48: 'b', 49: 'n', 50: 'm',
}

func init() {
	// KEY_F1..KEY_F10
	for i := uint16(0); i < 10; i++ {
		evdevKeys[59+i] = KeyF1 + types.Key(i)
	}
}

// DevInput reads key down events in background goroutine,
// PollKey never blocks.
type DevInput struct {
	r       io.ReadCloser
	keys    chan types.Key
	errch   chan error
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func OpenDevInput(device string) (*DevInput, error) {
	f, err := os.Open(device)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(err, "input device "+device)
		}
		return nil, errors.Annotatef(err, "input device=%s", device)
	}
	return NewDevInput(f), nil
}

func NewDevInput(r io.ReadCloser) *DevInput {
	d := &DevInput{
		r:       r,
		keys:    make(chan types.Key, evBuffer),
		errch:   make(chan error, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.worker()
	return d
}

// worker exits on read error or Close, even when nobody drains keys.
func (d *DevInput) worker() {
	defer close(d.stopped)
	defer close(d.keys)
	for {
		ev, err := inputevent.ReadOne(d.r)
		if err != nil {
			select {
			case <-d.done:
			default:
				d.errch <- err
			}
			return
		}
		if ev.Type != evKey || ev.Value != int32(inputevent.KeyStateDown) {
			continue
		}
		if k, ok := evdevKeys[ev.Code]; ok {
			select {
			case d.keys <- k:
			case <-d.done:
				return
			}
		}
	}
}

func (d *DevInput) PollKey() (types.Key, bool, error) {
	select {
	case k, ok := <-d.keys:
		if ok {
			return k, true, nil
		}
	default:
		return 0, false, nil
	}
	select {
	case err := <-d.errch:
		if err == io.EOF {
			return 0, false, err
		}
		return 0, false, errors.Annotate(err, DevInputTag)
	default:
		return 0, false, io.EOF
	}
}

func (d *DevInput) String() string { return DevInputTag }

func (d *DevInput) Close() error {
	d.once.Do(func() { close(d.done) })
	return d.r.Close()
}
