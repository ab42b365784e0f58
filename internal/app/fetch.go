package app

import (
	"github.com/temoto/zeos/internal/types"
)

// Fetch connects Wi-Fi on up release and GETs configured URL.
type Fetch struct {
	env  *Env
	subs *Subscriptions
	name string
}

func NewFetch(env *Env, name string) *Fetch {
	if name == "" {
		name = "fetch"
	}
	return &Fetch{env: env, subs: NewSubscriptions(env.Bus), name: name}
}

func (a *Fetch) Name() string { return a.name }

func (a *Fetch) Run() error {
	a.subs.Add(types.TopicWifiConnectResult, a.onConnected)
	a.subs.Add(types.TopicWifiResult, a.onResult)
	a.subs.Add(types.TopicInputsChanged, a.onInputs)
	return nil
}

func (a *Fetch) Unrun() { a.subs.Clear() }

func (a *Fetch) onInputs(msg types.Message) error {
	if msg.(types.InputsChanged).Released("up") {
		c := wifiConnect(a.env.Settings)
		a.env.Bus.Publish(connectInfo(c))
		a.env.Bus.Publish(c)
	}
	return nil
}

func (a *Fetch) onConnected(msg types.Message) error {
	if !msg.(types.WifiConnectResult).OK {
		a.env.Bus.Publish(types.Error{Text: "Could not connect"})
		return nil
	}
	a.env.Bus.Publish(types.Info{Text: "Connected, GETing sample data ..."})
	a.env.Bus.Publish(types.WifiGet{Request: wifiRequest(a.env.Settings)})
	return nil
}

func (a *Fetch) onResult(msg types.Message) error {
	r := msg.(types.WifiResult)
	if r.Method != "GET" {
		return nil
	}
	if r.Err != nil {
		a.env.Bus.Publish(types.Error{Text: r.Err.Error()})
		return nil
	}
	a.env.Bus.Publish(types.Info{Text: "data received: " + string(r.Response.Body)})
	return nil
}
