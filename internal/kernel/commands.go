package kernel

import (
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/internal/codec"
	"github.com/temoto/zeos/internal/types"
)

var ErrUnknownCommand = errors.New("unknown command")

type CommandFunc func(c types.Command) error

func (k *Kernel) registerCommands() {
	k.commands = make(map[string]CommandFunc, 16)
	k.order = k.order[:0]
	reg := func(name string, f CommandFunc) {
		if _, ok := k.commands[name]; ok {
			panic("code error duplicate command " + name)
		}
		k.commands[name] = f
		k.order = append(k.order, name)
	}
	publish := func(m types.Message) CommandFunc {
		return func(types.Command) error { k.Bus.Publish(m); return nil }
	}

	reg("help", k.cmdHelp)
	reg("reload", publish(types.Reload{}))
	reg("exit", publish(types.Exit{}))
	reg("terminal", publish(types.ShowTerminal{}))
	reg("refresh", publish(types.Refresh{}))
	reg("config_save", publish(types.ConfigSave{}))
	reg("config_load", publish(types.ConfigLoad{}))
	reg("config_update", k.cmdConfigUpdate)
	reg("config_list", func(c types.Command) error {
		k.Bus.Publish(types.ConfigList{Source: c.Source})
		return nil
	})
	reg("show", k.cmdShow)
	reg("store", k.cmdStore)
	reg("preview", k.cmdPreview)
	reg("list", k.cmdList)
	reg("delete", k.cmdDelete)
	reg("blink", publish(types.Blink{}))
	reg("qr", k.cmdQR)
}

// Commands returns names in registration order.
func (k *Kernel) Commands() []string { return append([]string(nil), k.order...) }

func (k *Kernel) onSerialReceived(msg types.Message) error {
	c := msg.(types.SerialReceived).Command
	f, ok := k.commands[c.Name]
	if !ok {
		err := errors.Annotatef(ErrUnknownCommand, "command=%s", c.Name)
		k.Log.Errorf("source=%s %v", c.Source, err)
		if k.Config.Kernel.EchoUnknown {
			k.respond(c.Source, err.Error())
		}
		return nil
	}
	if err := f(c); err != nil {
		k.Log.Errorf("source=%s command=%s %s", c.Source, c.String(), errors.ErrorStack(err))
		k.Bus.Publish(types.Error{Text: errors.Cause(err).Error()})
		k.respond(c.Source, helpers.Readable(err))
	}
	return nil
}

func (k *Kernel) cmdHelp(c types.Command) error {
	k.respond(c.Source, strings.Join(k.order, ","))
	return nil
}

// config_update takes assignments from payload, or metadata when payload is empty.
func (k *Kernel) cmdConfigUpdate(c types.Command) error {
	text := c.Payload
	if text == "" {
		text = c.Meta
	}
	if strings.TrimSpace(text) == "" {
		return errors.NotValidf("config_update empty assignments")
	}
	k.Bus.Publish(types.ConfigUpdate{Assignments: text})
	return nil
}

func (k *Kernel) cmdShow(c types.Command) error {
	if c.Meta == "" {
		return errors.NotValidf("show empty name")
	}
	k.Bus.Publish(types.ShowFile{Name: c.Meta})
	return nil
}

// store writes payload verbatim, it is not decoded here.
func (k *Kernel) cmdStore(c types.Command) error {
	if c.Payload == "" {
		return errors.NotValidf("store empty payload")
	}
	name, err := k.Store.Write(c.Meta, []byte(c.Payload))
	if err != nil {
		return err
	}
	if err = k.Store.SetLastBadge(name); err != nil {
		return err
	}
	k.Bus.Publish(types.Info{Text: "stored " + name})
	return nil
}

func (k *Kernel) cmdPreview(c types.Command) error {
	size := k.Hardware.Display.Size()
	b, _, err := codec.Decode(c.Payload, size.X, size.Y)
	if err != nil {
		return errors.Annotate(err, "preview")
	}
	k.Bus.Publish(types.Info{Text: "previewing image"})
	k.Bus.Publish(types.ShowBitmap{Bitmap: b})
	return nil
}

func (k *Kernel) cmdList(c types.Command) error {
	names, err := k.Store.List()
	if err != nil {
		return err
	}
	list := strings.Join(names, ",")
	k.Bus.Publish(types.Info{Text: "files: " + list})
	k.respond(c.Source, list)
	return nil
}

func (k *Kernel) cmdDelete(c types.Command) error {
	name, err := k.Store.Delete(c.Meta)
	if err != nil {
		return err
	}
	k.Bus.Publish(types.Info{Text: "deleted " + name})
	return nil
}

// qr renders metadata, or payload when metadata is empty.
func (k *Kernel) cmdQR(c types.Command) error {
	text := c.Meta
	if text == "" {
		text = c.Payload
	}
	if text == "" {
		return errors.NotValidf("qr empty text")
	}
	k.Bus.Publish(types.ShowQR{Text: text})
	return nil
}
