package app

import (
	"github.com/temoto/zeos/internal/types"
)

// StoreAndShow displays stored badges, up/down cycle through them.
type StoreAndShow struct {
	env   *Env
	subs  *Subscriptions
	index int
}

func NewStoreAndShow(env *Env) *StoreAndShow {
	return &StoreAndShow{env: env, subs: NewSubscriptions(env.Bus)}
}

func (*StoreAndShow) Name() string { return "store_and_show" }

func (a *StoreAndShow) Run() error {
	a.subs.Add(types.TopicInputsChanged, a.onInputs)
	a.showLast()
	return nil
}

func (a *StoreAndShow) Unrun() { a.subs.Clear() }

func (a *StoreAndShow) onInputs(msg types.Message) error {
	ic := msg.(types.InputsChanged)
	if ic.Released("up") {
		return a.step(-1)
	}
	if ic.Released("down") {
		return a.step(+1)
	}
	return nil
}

func (a *StoreAndShow) showLast() {
	last, err := a.env.Store.LastBadge()
	if err != nil {
		a.env.Log.Debugf("store_and_show last badge err=%v", err)
	}
	names, err := a.env.Store.List()
	if err != nil {
		a.env.Log.Error(err)
	}
	if last == "" {
		if len(names) == 0 {
			a.env.Bus.Publish(types.Info{Text: "no stored badges"})
			return
		}
		last = names[0]
	}
	for i, name := range names {
		if name == last {
			a.index = i
		}
	}
	a.env.Bus.Publish(types.ShowFile{Name: last})
}

// step re-reads the store, files may come and go between presses.
func (a *StoreAndShow) step(delta int) error {
	names, err := a.env.Store.List()
	if err != nil {
		return err
	}
	n := len(names)
	if n == 0 {
		a.env.Bus.Publish(types.Info{Text: "no stored badges"})
		return nil
	}
	a.index = ((a.index+delta)%n + n) % n
	a.env.Bus.Publish(types.ShowFile{Name: names[a.index]})
	return nil
}
