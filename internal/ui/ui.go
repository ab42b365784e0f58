// Package ui glues bus show/refresh messages to the display.
package ui

import (
	"time"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/codec"
	"github.com/temoto/zeos/internal/store"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

const (
	DefaultBusyTimeout = 5 * time.Second
	BusyPoll           = 100 * time.Millisecond
)

type UI struct { //nolint:maligned
	Log     *log2.Log
	Bus     *bus.Bus
	Display display.Display
	Store   *store.Store

	BusyTimeout time.Duration
	QRLevel     qrcode.RecoveryLevel

	terminal     *Terminal
	showTerminal bool
	current      *codec.Bitmap
	subs         []bus.SubscriptionID
	sleep        func(time.Duration)
}

func New(log *log2.Log, b *bus.Bus, d display.Display, st *store.Store, busyTimeoutMs int, terminalLines int) *UI {
	return &UI{
		Log:         log,
		Bus:         b,
		Display:     d,
		Store:       st,
		BusyTimeout: helpers.IntMillisecondDefault(busyTimeoutMs, DefaultBusyTimeout),
		QRLevel:     qrcode.Medium,
		terminal:    NewTerminal(terminalLines),
		sleep:       time.Sleep,
	}
}

// Init subscribes to show/refresh/info/error messages.
func (u *UI) Init() {
	if len(u.subs) != 0 {
		return
	}
	add := func(topic types.Topic, fun bus.Handler) {
		u.subs = append(u.subs, u.Bus.Subscribe(topic, fun))
	}
	add(types.TopicInfo, func(m types.Message) error {
		text := m.(types.Info).Text
		u.Log.Infof("info: %s", text)
		return u.println("info: " + text)
	})
	add(types.TopicError, func(m types.Message) error {
		text := m.(types.Error).Text
		u.Log.Infof("error: %s", text)
		return u.println("error: " + text)
	})
	add(types.TopicShowBitmap, func(m types.Message) error {
		return u.Show(m.(types.ShowBitmap).Bitmap)
	})
	add(types.TopicShowFile, func(m types.Message) error {
		return u.ShowFile(m.(types.ShowFile).Name)
	})
	add(types.TopicShowGroup, func(m types.Message) error {
		return u.Show(m.(types.ShowGroup).Group.Render(u.Display.Size()))
	})
	add(types.TopicShowQR, func(m types.Message) error {
		return u.ShowQR(m.(types.ShowQR).Text)
	})
	add(types.TopicShowTerminal, func(types.Message) error { return u.ShowTerminal() })
	add(types.TopicToggleTerminal, func(types.Message) error { return u.ToggleTerminal() })
	add(types.TopicRefresh, func(types.Message) error { return u.Refresh() })
}

func (u *UI) Close() {
	for _, id := range u.subs {
		u.Bus.Unsubscribe(id)
	}
	u.subs = nil
}

func (u *UI) Terminal() *Terminal    { return u.terminal }
func (u *UI) TerminalShown() bool    { return u.showTerminal }
func (u *UI) Current() *codec.Bitmap { return u.current }

// Show displays b and remembers it as content to return to from terminal.
func (u *UI) Show(b *codec.Bitmap) error {
	if b == nil {
		return errors.NotValidf("show bitmap=nil")
	}
	u.showTerminal = false
	u.current = b
	return u.draw(b)
}

// ShowFile decodes stored image. Decode errors leave display unchanged.
func (u *UI) ShowFile(name string) error {
	payload, err := u.Store.Read(name)
	if err != nil {
		u.Bus.Publish(types.Error{Text: err.Error()})
		return nil
	}
	size := u.Display.Size()
	b, _, err := codec.Decode(string(payload), size.X, size.Y)
	if err != nil {
		u.Log.Infof("show file=%s err=%v", name, err)
		u.Bus.Publish(types.Error{Text: err.Error()})
		return nil
	}
	if err = u.Show(b); err != nil {
		return err
	}
	return u.Store.SetLastBadge(name)
}

func (u *UI) ShowQR(text string) error {
	b, err := display.QR(text, u.Display.Size(), true, u.QRLevel)
	if err != nil {
		return errors.Annotate(err, "show qr")
	}
	return u.Show(b)
}

func (u *UI) ShowTerminal() error {
	u.showTerminal = true
	return u.draw(u.terminal.Render(u.Display.Size()))
}

// ToggleTerminal swaps between terminal and previously shown content.
func (u *UI) ToggleTerminal() error {
	if !u.showTerminal {
		return u.ShowTerminal()
	}
	u.showTerminal = false
	if u.current == nil {
		b := codec.NewBitmap(u.Display.Size().X, u.Display.Size().Y)
		b.Fill(codec.White)
		return u.draw(b)
	}
	return u.draw(u.current)
}

// Refresh waits until display is not busy, polling every BusyPoll.
func (u *UI) Refresh() error {
	for waited := time.Duration(0); u.Display.Busy(); waited += BusyPoll {
		if waited >= u.BusyTimeout {
			return errors.Timeoutf("display busy after %v", waited)
		}
		u.sleep(BusyPoll)
	}
	return errors.Annotate(u.Display.Refresh(), "display refresh")
}

func (u *UI) println(line string) error {
	u.terminal.Add(line)
	if u.showTerminal {
		return u.ShowTerminal()
	}
	return nil
}

func (u *UI) draw(b *codec.Bitmap) error {
	if err := u.Display.Show(b); err != nil {
		return errors.Annotate(err, "display show")
	}
	return u.Refresh()
}
