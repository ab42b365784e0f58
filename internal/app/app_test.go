package app

import (
	"fmt"
	"image"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/settings"
	"github.com/temoto/zeos/internal/store"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

// recorder collects every message of given topics.
type recorder struct {
	got []types.Message
}

func (r *recorder) watch(b *bus.Bus, topics ...types.Topic) {
	for _, topic := range topics {
		b.Subscribe(topic, func(m types.Message) error {
			r.got = append(r.got, m)
			return nil
		})
	}
}

func (r *recorder) take() []types.Message {
	got := r.got
	r.got = nil
	return got
}

func newTestEnv(t testing.TB) *Env {
	dir, err := ioutil.TempDir("", "zeos-app-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	log := log2.NewTest(t, log2.LDebug)
	b := bus.New(log)
	b.FaultFunc = func(err error) { t.Errorf("subscriber fault: %v", err) }
	return &Env{
		Log:      log,
		Bus:      b,
		Settings: settings.New(),
		Store:    store.New(dir),
		Size:     image.Pt(296, 128),
	}
}

type fakeApp struct {
	name   string
	env    *Env
	subs   *Subscriptions
	events *[]string
	err    error
}

func (a *fakeApp) Name() string { return a.name }
func (a *fakeApp) Run() error {
	*a.events = append(*a.events, a.name+".run")
	a.subs.Add(types.TopicTick, func(types.Message) error { return nil })
	a.subs.Add(types.TopicInputsChanged, func(types.Message) error { return nil })
	return a.err
}
func (a *fakeApp) Unrun() {
	*a.events = append(*a.events, a.name+".unrun")
	a.subs.Clear()
}

func newFake(env *Env, name string, events *[]string) *fakeApp {
	return &fakeApp{name: name, env: env, subs: NewSubscriptions(env.Bus), events: events}
}

func TestSubscriptions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sibling := env.Bus.Subscribe(types.TopicTick, func(types.Message) error { return nil })
	s := NewSubscriptions(env.Bus)
	s.Add(types.TopicTick, func(types.Message) error { return nil })
	s.Add(types.TopicInfo, func(types.Message) error { return nil })
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, env.Bus.Count(types.TopicTick))
	assert.Equal(t, 2, s.Clear())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, env.Bus.Count(types.TopicTick))
	assert.True(t, env.Bus.Subscribed(sibling))
	assert.Equal(t, 0, s.Clear(), "second clear is a no-op")
}

func TestManagerSwitch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	events := []string{}
	m := NewManager(env.Log, env.Bus)
	a, b := newFake(env, "a1", &events), newFake(env, "b1", &events)
	m.Register(a)
	m.Register(b)
	assert.Equal(t, []string{"a1", "b1"}, m.Names())
	assert.Panics(t, func() { m.Register(a) })

	baseTick := env.Bus.Count(types.TopicTick)
	require.NoError(t, m.Start(a))
	assert.Equal(t, baseTick+1, env.Bus.Count(types.TopicTick))
	require.NoError(t, m.Start(b))
	assert.Equal(t, []string{"a1.run", "a1.unrun", "b1.run"}, events)
	assert.Equal(t, "b1", m.ActiveName())
	assert.Equal(t, baseTick+1, env.Bus.Count(types.TopicTick), "exactly one app subscribed")

	m.Stop()
	assert.Nil(t, m.Active())
	assert.Equal(t, baseTick, env.Bus.Count(types.TopicTick))

	_, err := m.Get("none")
	assert.Error(t, err)
	assert.Error(t, m.StartName("none"))
}

func TestManagerRunError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	events := []string{}
	m := NewManager(env.Log, env.Bus)
	bad := newFake(env, "bad", &events)
	bad.err = fmt.Errorf("no wifi")
	m.Register(bad)
	err := m.StartName("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wifi")
	assert.Nil(t, m.Active())
	assert.Equal(t, 0, env.Bus.Count(types.TopicTick))
}

func TestManagerInputs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	events := []string{}
	m := NewManager(env.Log, env.Bus)
	m.Register(newFake(env, "one", &events))
	m.Register(newFake(env, "two", &events))
	require.NoError(t, m.Bind("a", "one"))
	require.NoError(t, m.Bind("b", "two"))
	assert.Error(t, m.Bind("c", "none"))
	m.BindInputs()
	m.BindInputs()
	rec := &recorder{}
	rec.watch(env.Bus, types.TopicToggleTerminal)

	// press is not release
	env.Bus.Publish(types.InputsChanged{Changes: map[string]bool{"b": true}})
	env.Bus.Dispatch()
	assert.Nil(t, m.Active())

	env.Bus.Publish(types.InputsChanged{Changes: map[string]bool{"b": false}})
	env.Bus.Dispatch()
	assert.Equal(t, "two", m.ActiveName())

	env.Bus.Publish(types.InputsChanged{Changes: map[string]bool{"a": false, "c": false}})
	env.Bus.Dispatch()
	assert.Equal(t, "one", m.ActiveName())

	env.Bus.Publish(types.InputsChanged{Changes: map[string]bool{"developer": false}})
	env.Bus.Dispatch()
	env.Bus.Dispatch()
	assert.Equal(t, "one", m.ActiveName(), "developer does not stop app")
	assert.Equal(t, []types.Message{types.ToggleTerminal{}}, rec.take())
	assert.Equal(t, []string{"two.run", "two.unrun", "one.run"}, events)
}

func TestManagerRestore(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	root := env.Store.Root
	events := []string{}

	m1 := NewManager(env.Log, env.Bus)
	m1.Register(newFake(env, "one", &events))
	m1.Register(newFake(env, "two", &events))
	require.NoError(t, m1.Persist(root, true))
	require.NoError(t, m1.Restore("one"))
	assert.Equal(t, "one", m1.ActiveName(), "fallback on first boot")
	require.NoError(t, m1.StartName("two"))
	m1.Stop()

	m2 := NewManager(env.Log, env.Bus)
	m2.Register(newFake(env, "one", &events))
	m2.Register(newFake(env, "two", &events))
	require.NoError(t, m2.Persist(root, true))
	require.NoError(t, m2.Restore("one"))
	assert.Equal(t, "two", m2.ActiveName())
}
