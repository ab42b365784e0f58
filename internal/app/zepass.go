package app

import (
	"encoding/json"
	"net/http"

	"github.com/juju/errors"
	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/internal/codec"
	"github.com/temoto/zeos/internal/types"
)

const (
	ProfileSize = 32
	postStep    = 16
)

// Post is one entry of the ZePass board.
type Post struct {
	Message    string `json:"message"`
	ProfileB64 string `json:"profileB64"`
}

// ZePass: up fetches posts, down posts user uuid then fetches again.
type ZePass struct {
	env    *Env
	subs   *Subscriptions
	method string
}

func NewZePass(env *Env) *ZePass {
	return &ZePass{env: env, subs: NewSubscriptions(env.Bus)}
}

func (*ZePass) Name() string { return "zepass" }

func (a *ZePass) Run() error {
	a.subs.Add(types.TopicWifiConnectResult, a.onConnected)
	a.subs.Add(types.TopicWifiResult, a.onResult)
	a.subs.Add(types.TopicInputsChanged, a.onInputs)
	return nil
}

func (a *ZePass) Unrun() {
	a.subs.Clear()
	a.method = ""
}

func (a *ZePass) onInputs(msg types.Message) error {
	ic := msg.(types.InputsChanged)
	if ic.Released("up") {
		a.connect(http.MethodGet)
	}
	if ic.Released("down") {
		a.connect(http.MethodPost)
	}
	return nil
}

func (a *ZePass) connect(method string) {
	a.method = method
	c := wifiConnect(a.env.Settings)
	a.env.Bus.Publish(connectInfo(c))
	a.env.Bus.Publish(c)
}

func (a *ZePass) onConnected(msg types.Message) error {
	if !msg.(types.WifiConnectResult).OK {
		a.env.Bus.Publish(types.Error{Text: "Could not connect"})
		return nil
	}
	req := wifiRequest(a.env.Settings)
	switch a.method {
	case http.MethodGet:
		a.env.Bus.Publish(types.Info{Text: "Connected, GETing posts."})
		a.env.Bus.Publish(types.WifiGet{Request: req})
	case http.MethodPost:
		req.Body = []byte(a.env.Settings.GetString(KeyUserUUID, ""))
		req.ContentType = "text/plain"
		a.env.Bus.Publish(types.Info{Text: "Connected, POSTing."})
		a.env.Bus.Publish(types.WifiPost{Request: req})
	default:
		a.env.Bus.Publish(types.Error{Text: "zepass method '" + a.method + "' not understood"})
		a.method = ""
	}
	return nil
}

func (a *ZePass) onResult(msg types.Message) error {
	r := msg.(types.WifiResult)
	if r.Method != a.method {
		return nil
	}
	if r.Err != nil {
		a.method = ""
		a.env.Bus.Publish(types.Error{Text: r.Err.Error()})
		return nil
	}
	switch a.method {
	case http.MethodGet:
		g, err := a.render(r.Response.Body)
		if err != nil {
			return err
		}
		a.env.Bus.Publish(types.ShowGroup{Group: g})
	case http.MethodPost:
		a.connect(http.MethodGet)
	}
	return nil
}

// render lays posts out alternating left and right, profile picture on the outer side.
func (a *ZePass) render(raw []byte) (display.Group, error) {
	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return display.Group{}, errors.Annotatef(err, "zepass parse response=%s", raw)
	}
	width := a.env.Size.X
	g := display.Group{}
	for i, p := range posts {
		x := 40
		if i%2 == 1 {
			x = width / 2
		}
		g.AddText(x, postStep+i*postStep-display.LineHeight, p.Message)
		if p.ProfileB64 == "" {
			continue
		}
		profile, _, err := codec.Decode(p.ProfileB64, ProfileSize, ProfileSize)
		if err != nil {
			a.env.Log.Infof("zepass post=%d profile err=%v", i, err)
			continue
		}
		px := 0
		if i%2 == 1 {
			px = width - ProfileSize
		}
		g.AddBitmap(px, i*postStep, profile)
	}
	return g, nil
}
