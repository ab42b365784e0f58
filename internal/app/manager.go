package app

import (
	"sort"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/persist"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

// Inputs that select apps, in slot order.
var Slots = []string{"a", "b", "c"}

const DeveloperInput = "developer"

type Manager struct {
	Log *log2.Log
	Bus *bus.Bus

	apps    map[string]App
	slots   map[string]string
	active  App
	saved   savedName
	persist persist.Persist
	inputID bus.SubscriptionID
}

type savedName struct{ name string }

func (s *savedName) MarshalBinary() ([]byte, error) { return []byte(s.name), nil }
func (s *savedName) UnmarshalBinary(b []byte) error {
	s.name = string(b)
	return nil
}

func NewManager(log *log2.Log, b *bus.Bus) *Manager {
	return &Manager{
		Log:   log,
		Bus:   b,
		apps:  make(map[string]App),
		slots: make(map[string]string),
	}
}

func (m *Manager) Register(a App) {
	name := a.Name()
	if _, ok := m.apps[name]; ok {
		panic("code error app duplicate name=" + name)
	}
	m.apps[name] = a
}

func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.apps))
	for name := range m.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) Get(name string) (App, error) {
	if a, ok := m.apps[name]; ok {
		return a, nil
	}
	return nil, errors.NotFoundf("app=%s", name)
}

// Bind makes release of input start app. Empty name unbinds.
func (m *Manager) Bind(input string, name string) error {
	if name == "" {
		delete(m.slots, input)
		return nil
	}
	if _, err := m.Get(name); err != nil {
		return errors.Annotatef(err, "bind input=%s", input)
	}
	m.slots[input] = name
	return nil
}

func (m *Manager) Bound(input string) string { return m.slots[input] }

func (m *Manager) Active() App { return m.active }

func (m *Manager) ActiveName() string {
	if m.active == nil {
		return ""
	}
	return m.active.Name()
}

// Start stops current app (if any) then runs a.
// Starting the active app again restarts it.
func (m *Manager) Start(a App) error {
	if a == nil {
		panic("code error app Start nil")
	}
	if m.active != nil {
		m.Log.Debugf("app unrun %s", m.active.Name())
		m.active.Unrun()
		m.active = nil
	}
	m.Log.Infof("app run %s", a.Name())
	if err := a.Run(); err != nil {
		a.Unrun()
		return errors.Annotatef(err, "app run %s", a.Name())
	}
	m.active = a
	m.saved.name = a.Name()
	if m.persist.Enabled() {
		if err := m.persist.Store(); err != nil {
			m.Log.Error(err)
		}
	}
	return nil
}

func (m *Manager) StartName(name string) error {
	a, err := m.Get(name)
	if err != nil {
		return err
	}
	return m.Start(a)
}

func (m *Manager) Stop() {
	if m.active != nil {
		m.active.Unrun()
		m.active = nil
	}
}

// Persist remembers active app name under root/app. Call before Restore.
func (m *Manager) Persist(root string, enabled bool) error {
	if err := m.persist.Init("app", &m.saved, root, enabled, m.Log); err != nil {
		return err
	}
	return m.persist.Load()
}

// Restore starts last active app if known, else fallback.
func (m *Manager) Restore(fallback string) error {
	name := m.saved.name
	if _, err := m.Get(name); name == "" || err != nil {
		if name != "" {
			m.Log.Infof("app restore unknown name=%s, using %s", name, fallback)
		}
		name = fallback
	}
	return m.StartName(name)
}

// BindInputs subscribes to input changes: release of a slot input starts its
// bound app, release of developer input toggles terminal view.
func (m *Manager) BindInputs() {
	if m.inputID != 0 {
		return
	}
	m.inputID = m.Bus.Subscribe(types.TopicInputsChanged, m.onInputs)
}

func (m *Manager) onInputs(msg types.Message) error {
	ic := msg.(types.InputsChanged)
	for _, slot := range Slots {
		if !ic.Released(slot) {
			continue
		}
		name, ok := m.slots[slot]
		if !ok {
			m.Log.Debugf("app slot=%s unbound", slot)
			continue
		}
		if err := m.StartName(name); err != nil {
			return err
		}
	}
	if ic.Released(DeveloperInput) {
		m.Bus.Publish(types.ToggleTerminal{})
	}
	return nil
}
