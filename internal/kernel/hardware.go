package kernel

import (
	"image"
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/hardware/gpio"
	"github.com/temoto/zeos/hardware/keyboard"
	"github.com/temoto/zeos/hardware/wifi"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/internal/input"
	"github.com/temoto/zeos/internal/serial"
	"github.com/temoto/zeos/internal/types"
)

// Wifier is the optional network module.
type Wifier interface {
	Scan() ([]types.WifiNetwork, error)
	Connect(ssid, password string) error
	Do(method string, r types.HTTPRequest) (types.HTTPResponse, error)
}

// KeyTyper forwards keys to USB host.
type KeyTyper interface {
	Type(types.Key) error
}

// Hardware fields set before Init are used as is, nil ones are opened from config.
// Missing optional hardware leaves its field nil.
type Hardware struct {
	Display  display.Display
	Buttons  input.Reader
	LED      func(on bool) error
	Serial   io.ReadWriter
	Keyboard input.KeyReader
	Gadget   KeyTyper
	Wifi     Wifier

	closers []io.Closer
}

func (h *Hardware) Close() error {
	errs := make([]error, 0, len(h.closers))
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return helpers.FoldErrors(errs)
}

// unavailable logs optional hardware failure, never fatal.
func (k *Kernel) unavailable(what string, err error) {
	if errors.IsNotFound(err) {
		k.Log.Infof("hardware %s not available: %v", what, err)
	} else {
		k.Log.Errorf("hardware %s not available: %s", what, errors.ErrorStack(err))
	}
}

func (k *Kernel) initDisplay() error {
	h := &k.Hardware
	if h.Display != nil {
		return nil
	}
	cfg := &k.Config.Hardware.Display
	if cfg.Framebuffer == "" {
		k.Log.Infof("display framebuffer not configured, using memory display %dx%d", cfg.Width, cfg.Height)
		h.Display = display.NewMock(image.Pt(cfg.Width, cfg.Height))
		return nil
	}
	fb, err := display.NewFb(cfg.Framebuffer)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, fb)
	if cfg.BusyChip != "" {
		busy, err := gpio.OpenButtons(cfg.BusyChip, map[string]int{"busy": cfg.BusyPin}, false)
		if err != nil {
			k.unavailable("display busy line", err)
		} else {
			h.closers = append(h.closers, busy)
			fb.BusyFunc = func() bool {
				m, err := busy.Snapshot()
				return err == nil && m["busy"]
			}
		}
	}
	h.Display = fb
	return nil
}

func (k *Kernel) initGpio() {
	h := &k.Hardware
	if cfg := &k.Config.Hardware.Buttons; h.Buttons == nil && cfg.Enable {
		b, err := gpio.OpenButtons(cfg.PinChip, cfg.Pins, cfg.ActiveLow)
		if err != nil {
			k.unavailable("buttons", err)
		} else {
			h.closers = append(h.closers, b)
			h.Buttons = b
		}
	}
	if cfg := &k.Config.Hardware.LED; h.LED == nil && cfg.Enable {
		led, err := gpio.OpenLED(cfg.PinChip, cfg.Pin)
		if err != nil {
			k.unavailable("led", err)
		} else {
			h.closers = append(h.closers, led)
			h.LED = led.Set
		}
	}
}

func (k *Kernel) initSerial() {
	h := &k.Hardware
	cfg := &k.Config.Hardware.Serial
	if h.Serial != nil || !cfg.Enable {
		return
	}
	port, err := serial.Open(cfg.Device, cfg.Baud, helpers.IntMillisecondDefault(cfg.TimeoutMs, 20*time.Millisecond))
	if err != nil {
		k.unavailable("serial", err)
		return
	}
	h.closers = append(h.closers, port)
	h.Serial = port
}

// initKeyboard probes CardKB first, then input device. Wi-Fi module shares
// pins with I2C on the badge, so it is only probed when no keyboard answered.
func (k *Kernel) initKeyboard() {
	h := &k.Hardware
	cfg := &k.Config.Hardware.Keyboard
	if h.Keyboard == nil && cfg.CardKB.Enable {
		kb, err := keyboard.OpenCardKB(cfg.CardKB.Bus, uint16(cfg.CardKB.Addr))
		if err != nil {
			k.unavailable("keyboard cardkb", err)
		} else {
			h.closers = append(h.closers, kb)
			h.Keyboard = kb
		}
	}
	if h.Keyboard == nil && cfg.DevInputEvent.Enable {
		d, err := keyboard.OpenDevInput(cfg.DevInputEvent.Device)
		if err != nil {
			k.unavailable("keyboard input event", err)
		} else {
			h.closers = append(h.closers, d)
			h.Keyboard = d
		}
	}
	if h.Gadget == nil && h.Keyboard != nil && cfg.HIDGadget.Enable {
		g, err := keyboard.OpenGadget(cfg.HIDGadget.Device)
		if err != nil {
			k.unavailable("hid gadget", err)
		} else {
			h.closers = append(h.closers, g)
			h.Gadget = g
		}
	}
}

func (k *Kernel) initWifi() {
	h := &k.Hardware
	cfg := &k.Config.Hardware.Wifi
	if h.Wifi != nil || h.Keyboard != nil || !cfg.Enable {
		return
	}
	port, err := serial.Open(cfg.Device, cfg.Baud, 20*time.Millisecond)
	if err != nil {
		k.unavailable("wifi", err)
		return
	}
	m := wifi.New(k.Log.Named("wifi"), port, helpers.IntMillisecondDefault(cfg.TimeoutMs, wifi.DefaultTimeout))
	if err = m.Probe(); err != nil {
		_ = port.Close()
		k.unavailable("wifi", err)
		return
	}
	h.closers = append(h.closers, m)
	h.Wifi = m
}
