// Package config is boot configuration: HCL files with `include` support.
package config

import (
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/log2"
)

const DefaultPath = "zeos.hcl"

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	Hardware struct {
		Display struct {
			Framebuffer string `hcl:"framebuffer"`
			Width       int    `hcl:"width"`
			Height      int    `hcl:"height"`
			BusyChip    string `hcl:"busy_chip"`
			BusyPin     int    `hcl:"busy_pin"`
		} `hcl:"display"`
		Buttons struct {
			Enable    bool           `hcl:"enable"`
			PinChip   string         `hcl:"pin_chip"`
			Pins      map[string]int `hcl:"pins"`
			ActiveLow bool           `hcl:"active_low"`
		} `hcl:"buttons"`
		LED struct {
			Enable  bool   `hcl:"enable"`
			PinChip string `hcl:"pin_chip"`
			Pin     int    `hcl:"pin"`
		} `hcl:"led"`
		Serial struct {
			Enable    bool   `hcl:"enable"`
			Device    string `hcl:"device"`
			Baud      int    `hcl:"baud"`
			TimeoutMs int    `hcl:"timeout_ms"`
		} `hcl:"serial"`
		Keyboard struct {
			CardKB struct {
				Enable bool   `hcl:"enable"`
				Bus    string `hcl:"bus"`
				Addr   int    `hcl:"addr"`
			} `hcl:"cardkb"`
			DevInputEvent struct {
				Enable bool   `hcl:"enable"`
				Device string `hcl:"device"`
			} `hcl:"dev_input_event"`
			HIDGadget struct {
				Enable bool   `hcl:"enable"`
				Device string `hcl:"device"`
			} `hcl:"hid_gadget"`
		} `hcl:"keyboard"`
		Wifi struct {
			Enable    bool   `hcl:"enable"`
			Device    string `hcl:"device"`
			Baud      int    `hcl:"baud"`
			TimeoutMs int    `hcl:"timeout_ms"`
		} `hcl:"wifi"`
	} `hcl:"hardware"`

	Kernel struct {
		TickMs       int  `hcl:"tick_ms"`
		DebounceMs   int  `hcl:"debounce_ms"`
		GraceMs      int  `hcl:"grace_ms"`
		Debug        bool `hcl:"debug"`
		EchoUnknown  bool `hcl:"echo_unknown"`
		AcceptBase64 bool `hcl:"accept_base64"`
	} `hcl:"kernel"`

	Storage struct {
		Root     string `hcl:"root"`
		Settings string `hcl:"settings"`
		State    string `hcl:"state"`
	} `hcl:"storage"`

	Apps struct {
		A string `hcl:"a"`
		B string `hcl:"b"`
		C string `hcl:"c"`
	} `hcl:"apps"`

	UI struct {
		TerminalLines int `hcl:"terminal_lines"`
		BusyTimeoutMs int `hcl:"busy_timeout_ms"`
	} `hcl:"ui"`

	Tele TeleConfig `hcl:"tele"`
}

type TeleConfig struct { //nolint:maligned
	Enabled           bool   `hcl:"enable"`
	ClientID          string `hcl:"client_id"`
	LogDebug          bool   `hcl:"log_debug"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	MqttBroker        string `hcl:"mqtt_broker"`
	MqttPassword      string `hcl:"mqtt_password"` // secret
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	PersistPath       string `hcl:"persist_path"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// Defaults fills zero values. Safe to call more than once.
func (c *Config) Defaults() {
	if c.Hardware.Display.Width == 0 {
		c.Hardware.Display.Width = 296
	}
	if c.Hardware.Display.Height == 0 {
		c.Hardware.Display.Height = 128
	}
	if c.Hardware.Buttons.PinChip == "" {
		c.Hardware.Buttons.PinChip = "/dev/gpiochip0"
	}
	if c.Hardware.LED.PinChip == "" {
		c.Hardware.LED.PinChip = c.Hardware.Buttons.PinChip
	}
	if c.Hardware.Serial.Baud == 0 {
		c.Hardware.Serial.Baud = 115200
	}
	if c.Hardware.Serial.TimeoutMs == 0 {
		c.Hardware.Serial.TimeoutMs = 20
	}
	if c.Hardware.Keyboard.CardKB.Bus == "" {
		c.Hardware.Keyboard.CardKB.Bus = "1"
	}
	if c.Hardware.Keyboard.CardKB.Addr == 0 {
		c.Hardware.Keyboard.CardKB.Addr = 0x5f
	}
	if c.Hardware.Wifi.Baud == 0 {
		c.Hardware.Wifi.Baud = 115200
	}
	if c.Hardware.Wifi.TimeoutMs == 0 {
		c.Hardware.Wifi.TimeoutMs = 5000
	}
	if c.Kernel.TickMs == 0 {
		c.Kernel.TickMs = 200
	}
	if c.Kernel.DebounceMs == 0 {
		c.Kernel.DebounceMs = 2000
	}
	if c.Kernel.GraceMs == 0 {
		c.Kernel.GraceMs = 500
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "."
	}
	if c.Storage.Settings == "" {
		c.Storage.Settings = filepath.Join(c.Storage.Root, "ze.conf")
	}
	if c.Storage.State == "" {
		c.Storage.State = filepath.Join(c.Storage.Root, ".zeos-state")
	}
	if c.Apps.A == "" {
		c.Apps.A = "store_and_show"
	}
	if c.UI.TerminalLines == 0 {
		c.UI.TerminalLines = c.Hardware.Display.Height / 13
	}
	if c.UI.BusyTimeoutMs == 0 {
		c.UI.BusyTimeoutMs = 5000
	}
	if c.Tele.ClientID == "" {
		c.Tele.ClientID = "zeos"
	}
	if c.Tele.PersistPath == "" {
		c.Tele.PersistPath = filepath.Join(c.Storage.Root, ".zeos-tele")
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if c.Hardware.Display.Width <= 0 || c.Hardware.Display.Height <= 0 {
		errs = append(errs, errors.NotValidf("display size %dx%d", c.Hardware.Display.Width, c.Hardware.Display.Height))
	}
	if c.Kernel.TickMs < 0 || c.Kernel.DebounceMs < 0 || c.Kernel.GraceMs < 0 {
		errs = append(errs, errors.NotValidf("kernel negative duration"))
	}
	if c.Tele.Enabled && c.Tele.MqttBroker == "" {
		errs = append(errs, errors.NotValidf("tele enabled without mqtt_broker"))
	}
	for name := range c.Hardware.Buttons.Pins {
		switch name {
		case "a", "b", "c", "up", "down", "developer":
		default:
			errs = append(errs, errors.NotValidf("buttons pin name=%s", name))
		}
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// Read parses names in order, later values override. Defaults applied last.
func Read(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error config.Read() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	c.Defaults()
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	return c, helpers.FoldErrors(errs)
}

func MustRead(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := Read(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
