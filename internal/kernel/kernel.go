// Package kernel owns every badge component and runs the tick loop.
// There is exactly one Kernel per process and no package level state.
package kernel

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/zeos/hardware/keyboard"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/internal/app"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/config"
	"github.com/temoto/zeos/internal/input"
	"github.com/temoto/zeos/internal/sched"
	"github.com/temoto/zeos/internal/serial"
	"github.com/temoto/zeos/internal/settings"
	"github.com/temoto/zeos/internal/store"
	"github.com/temoto/zeos/internal/tele"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/internal/ui"
	"github.com/temoto/zeos/log2"
)

const (
	SourceSerial   = "serial"
	SourceKeyboard = "keyboard"

	DefaultGrace = 500 * time.Millisecond

	// runtime settings written at boot
	KeyKeyboardAttached = "keyboard_attached"
	KeyWifiAttached     = "wifi_attached"
	KeyDeveloperMode    = "developer_mode"
)

// ErrReload is returned by Run when process should re-execute itself.
var ErrReload = errors.New("reload requested")

type Kernel struct {
	Alive        *alive.Alive
	Apps         *app.Manager
	BuildVersion string
	Bus          *bus.Bus
	Config       *config.Config
	Hardware     Hardware // hardware.go
	Log          *log2.Log
	Sched        *sched.Run
	Settings     *settings.Settings
	Store        *store.Store
	Tele         *tele.Tele
	UI           *ui.UI

	commands map[string]CommandFunc
	order    []string
	lines    *serial.LineReader
	parser   serial.Parser
	keyLine  []byte
	keyOff   bool
	reload   bool
	faults   int
	sleep    func(time.Duration)
}

func New(log *log2.Log, cfg *config.Config) *Kernel {
	return &Kernel{
		Alive:        alive.NewAlive(),
		BuildVersion: "unknown",
		Config:       cfg,
		Log:          log,
		Tele:         tele.New(),
		sleep:        time.Sleep,
	}
}

// Init fails only without display or with broken storage.
// Optional hardware and telemetry problems are logged.
func (k *Kernel) Init(ctx context.Context) error {
	cfg := k.Config
	k.Log.Infof("build version=%s", k.BuildVersion)

	// Since tele is remote error reporting mechanism, it must be inited before named loggers.
	// Tele gets clone before SetErrorFunc, so its own errors don't recurse.
	k.Tele.Version = k.BuildVersion
	if err := k.Tele.Init(ctx, k.Log.Clone(log2.LInfo).Named("tele"), cfg.Tele); err != nil {
		k.Log.Errorf("tele init: %s", errors.ErrorStack(err))
	} else if k.Tele.Enabled() {
		k.Log.SetErrorFunc(k.Tele.Error)
	}

	k.Bus = bus.New(k.Log.Named("bus"))
	k.Bus.FaultFunc = k.fault
	k.Sched = sched.New(k.Log.Named("sched"), k.Bus, helpers.IntMillisecondDefault(cfg.Kernel.TickMs, sched.DefaultPeriod))

	k.Settings = settings.New()
	if err := k.Settings.Load(cfg.Storage.Settings); err != nil {
		if !errors.IsNotFound(err) {
			return errors.Annotate(err, "kernel init settings")
		}
		k.Log.Infof("settings file %s not found, using empty", cfg.Storage.Settings)
	}
	k.Store = store.New(cfg.Storage.Root)
	if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
		return errors.Annotate(err, "kernel init storage")
	}

	if err := k.initDisplay(); err != nil {
		return errors.Annotate(err, "kernel init display")
	}
	k.initGpio()
	k.initSerial()
	k.initKeyboard()
	k.initWifi()
	k.Settings.Set(KeyKeyboardAttached, k.Hardware.Keyboard != nil)
	k.Settings.Set(KeyWifiAttached, k.Hardware.Wifi != nil)
	k.Settings.Set(KeyDeveloperMode, k.Hardware.Serial != nil)

	k.UI = ui.New(k.Log.Named("ui"), k.Bus, k.Hardware.Display, k.Store, cfg.UI.BusyTimeoutMs, cfg.UI.TerminalLines)
	k.UI.Init()

	k.registerCommands()
	k.subscribe()
	k.addTasks()

	if err := k.initApps(); err != nil {
		return errors.Annotate(err, "kernel init apps")
	}
	k.Tele.State(tele.State_Nominal)
	return nil
}

func (k *Kernel) initApps() error {
	cfg := k.Config
	env := &app.Env{
		Log:      k.Log.Named("app"),
		Bus:      k.Bus,
		Settings: k.Settings,
		Store:    k.Store,
		Size:     k.Hardware.Display.Size(),
	}
	k.Apps = app.NewManager(k.Log.Named("apps"), k.Bus)
	k.Apps.Register(app.NewStoreAndShow(env))
	k.Apps.Register(app.NewFetch(env, ""))
	k.Apps.Register(app.NewZePass(env))
	k.Apps.Register(app.NewClicker(env))
	for slot, name := range map[string]string{input.A: cfg.Apps.A, input.B: cfg.Apps.B, input.C: cfg.Apps.C} {
		if name == "" {
			continue
		}
		if err := k.Apps.Bind(slot, name); err != nil {
			return err
		}
	}
	k.Apps.BindInputs()
	if err := k.Apps.Persist(cfg.Storage.State, cfg.Storage.State != ""); err != nil {
		k.Log.Errorf("app state: %s", errors.ErrorStack(err))
	}
	return k.Apps.Restore(cfg.Apps.A)
}

func (k *Kernel) addTasks() {
	h := &k.Hardware
	if h.Serial != nil {
		k.lines = serial.NewLineReader(h.Serial)
		k.parser = serial.Parser{
			Debug:  k.Config.Kernel.Debug,
			Base64: k.Config.Kernel.AcceptBase64,
			Source: SourceSerial,
		}
		k.Sched.AddTask("serial", k.taskSerial)
	}
	if h.Buttons != nil {
		tracker := input.NewTracker(k.Log.Named("input"), k.Bus, h.Buttons,
			helpers.IntMillisecondDefault(k.Config.Kernel.DebounceMs, input.DefaultDebounce))
		k.Sched.AddTask("buttons", tracker.Task)
	}
	if h.Keyboard != nil {
		poll := input.KeyTask(k.Bus, h.Keyboard)
		k.Sched.AddTask("keyboard", func(ctx context.Context) error {
			if k.keyOff {
				return nil
			}
			err := poll(ctx)
			if err != nil && errors.Cause(err) == io.EOF {
				k.keyOff = true
				k.Log.Infof("keyboard source=%s closed", h.Keyboard.String())
				return nil
			}
			return err
		})
	}
	if k.Tele.Enabled() {
		k.Sched.AddTask("tele", k.taskTele)
	}
	if h.LED != nil {
		k.Sched.Heartbeat = h.LED
	}
}

// Run ticks until exit or reload. Returns ErrReload for reload.
func (k *Kernel) Run(ctx context.Context) error {
	err := k.Sched.Loop(ctx, k.Alive)
	if err != nil && err != context.Canceled {
		return err
	}
	if k.reload {
		return ErrReload
	}
	return nil
}

// Stop is safe to call from signal handler goroutine.
func (k *Kernel) Stop() { k.Alive.Stop() }

func (k *Kernel) Close() error {
	if k.Apps != nil {
		k.Apps.Stop()
	}
	if k.UI != nil {
		k.UI.Close()
	}
	k.Tele.Close()
	k.Alive.Stop()
	k.Alive.Wait()
	return k.Hardware.Close()
}

// fault shows subscriber failure on terminal, log and tele already have it.
func (k *Kernel) fault(err error) {
	k.faults++
	text := err.Error()
	if strings.Contains(text, "topic="+types.TopicError.String()+" ") {
		return
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	k.Bus.Publish(types.Error{Text: text})
}

func (k *Kernel) subscribe() {
	b := k.Bus
	b.Subscribe(types.TopicSerialReceived, k.onSerialReceived)
	b.Subscribe(types.TopicRespond, k.onRespond)
	b.Subscribe(types.TopicReload, func(types.Message) error { return k.shutdown(true) })
	b.Subscribe(types.TopicExit, func(types.Message) error { return k.shutdown(false) })
	b.Subscribe(types.TopicConfigLoad, k.onConfigLoad)
	b.Subscribe(types.TopicConfigSave, k.onConfigSave)
	b.Subscribe(types.TopicConfigUpdate, k.onConfigUpdate)
	b.Subscribe(types.TopicConfigList, k.onConfigList)
	b.Subscribe(types.TopicBlink, k.onBlink)
	b.Subscribe(types.TopicKeyPressed, k.onKeyPressed)
	if k.Hardware.Wifi != nil {
		b.Subscribe(types.TopicWifiScan, k.onWifiScan)
		b.Subscribe(types.TopicWifiConnect, k.onWifiConnect)
		b.Subscribe(types.TopicWifiGet, k.onWifiRequest)
		b.Subscribe(types.TopicWifiPost, k.onWifiRequest)
	}
}

func (k *Kernel) taskSerial(context.Context) error {
	lines, err := k.lines.Poll()
	for _, line := range lines {
		k.receive(&k.parser, line)
	}
	if err != nil {
		if serial.IsParseError(err) {
			k.Log.Errorf("serial %v", err)
			return nil
		}
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func (k *Kernel) taskTele(context.Context) error {
	k.Tele.Poll(func(c *tele.Command) {
		p := serial.Parser{
			Debug:  k.Config.Kernel.Debug,
			Base64: k.Config.Kernel.AcceptBase64,
			Source: tele.Source(c.Id),
		}
		k.receive(&p, c.Line)
	})
	return nil
}

// receive parses line from any source, malformed lines are logged and dropped.
func (k *Kernel) receive(p *serial.Parser, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	cmd, err := p.Parse(line)
	if err != nil {
		k.Log.Errorf("source=%s %v", p.Source, err)
		return
	}
	k.Log.Debugf("source=%s command=%s", p.Source, cmd.String())
	k.Bus.Publish(types.SerialReceived{Command: cmd})
}

func (k *Kernel) onRespond(msg types.Message) error {
	r := msg.(types.Respond)
	if id, ok := tele.ParseSource(r.Source); ok {
		k.Tele.Reply(id, r.Payload, nil)
		return nil
	}
	switch r.Source {
	case SourceSerial:
		if k.Hardware.Serial == nil {
			return errors.NotFoundf("respond source=%s", r.Source)
		}
		// payload unchanged, newline terminates the reply for the host
		b := append(append([]byte(nil), r.Payload...), '\n')
		return errors.Annotate(helpers.WriteAll(k.Hardware.Serial, b), "respond serial")
	default:
		k.Bus.Publish(types.Info{Text: string(r.Payload)})
		return nil
	}
}

func (k *Kernel) respond(source string, payload string) {
	k.Bus.Publish(types.Respond{Source: source, Payload: []byte(payload)})
}

// shutdown blocks whole system for grace period, then stops tick loop.
func (k *Kernel) shutdown(reload bool) error {
	what := "exit"
	if reload {
		what = "reload"
	}
	k.Log.Infof("%s in %v", what, k.grace())
	k.sleep(k.grace())
	k.reload = reload
	k.Alive.Stop()
	return nil
}

func (k *Kernel) grace() time.Duration {
	return helpers.IntMillisecondDefault(k.Config.Kernel.GraceMs, DefaultGrace)
}

func (k *Kernel) onConfigLoad(types.Message) error {
	path := k.Config.Storage.Settings
	if err := k.Settings.Load(path); err != nil {
		if errors.IsNotFound(err) {
			k.Bus.Publish(types.Info{Text: "no config file " + filepath.Base(path)})
			return nil
		}
		return err
	}
	k.Bus.Publish(types.Info{Text: "config loaded"})
	return nil
}

func (k *Kernel) onConfigSave(types.Message) error {
	if err := k.Settings.Save(k.Config.Storage.Settings); err != nil {
		return err
	}
	k.Bus.Publish(types.Info{Text: "config saved"})
	return nil
}

func (k *Kernel) onConfigUpdate(msg types.Message) error {
	keys := k.Settings.Apply(msg.(types.ConfigUpdate).Assignments)
	k.Bus.Publish(types.Info{Text: "config updated: " + strings.Join(keys, ",")})
	return nil
}

func (k *Kernel) onConfigList(msg types.Message) error {
	k.respond(msg.(types.ConfigList).Source, k.Settings.String())
	return nil
}

func (k *Kernel) onBlink(types.Message) error {
	k.Sched.Blink = !k.Sched.Blink
	k.Log.Debugf("blink=%t", k.Sched.Blink)
	return nil
}

// onKeyPressed forwards key to USB host and collects local command line,
// Enter submits it same as serial line.
func (k *Kernel) onKeyPressed(msg types.Message) error {
	key := msg.(types.KeyPressed).Key
	if k.Hardware.Gadget != nil {
		if err := k.Hardware.Gadget.Type(key); err != nil {
			k.Bus.Publish(types.Error{Text: err.Error()})
		}
	}
	switch {
	case key == keyboard.KeyEnter:
		line := string(k.keyLine)
		k.keyLine = k.keyLine[:0]
		if strings.Contains(line, ":") {
			p := serial.Parser{Source: SourceKeyboard}
			k.receive(&p, line)
		}
	case key == keyboard.KeyBackspace:
		if n := len(k.keyLine); n > 0 {
			k.keyLine = k.keyLine[:n-1]
		}
	case key == keyboard.KeyEscape:
		k.keyLine = k.keyLine[:0]
	case keyboard.Printable(key) && len(k.keyLine) < serial.MaxLine:
		k.keyLine = append(k.keyLine, byte(key))
	}
	return nil
}

func (k *Kernel) onWifiScan(types.Message) error {
	nets, err := k.Hardware.Wifi.Scan()
	if err != nil {
		return err
	}
	k.Bus.Publish(types.WifiScanResult{Networks: nets})
	return nil
}

func (k *Kernel) onWifiConnect(msg types.Message) error {
	c := msg.(types.WifiConnect)
	err := k.Hardware.Wifi.Connect(c.SSID, c.Password)
	if err != nil {
		k.Log.Errorf("wifi connect ssid=%s: %v", c.SSID, err)
	}
	k.Bus.Publish(types.WifiConnectResult{SSID: c.SSID, OK: err == nil})
	return nil
}

func (k *Kernel) onWifiRequest(msg types.Message) error {
	var method string
	var req types.HTTPRequest
	switch m := msg.(type) {
	case types.WifiGet:
		method, req = "GET", m.Request
	case types.WifiPost:
		method, req = "POST", m.Request
	}
	resp, err := k.Hardware.Wifi.Do(method, req)
	if err != nil {
		k.Log.Errorf("wifi %s %s%s: %v", method, req.Addr, req.Path, err)
	}
	k.Bus.Publish(types.WifiResult{Method: method, Request: req, Response: resp, Err: err})
	return nil
}
