// Package input turns polled hardware state into bus messages.
package input

import (
	"context"
	"sort"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/zeos/helpers/atomic_clock"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

const DefaultDebounce = 2 * time.Second

// Logical input names.
const (
	A         = "a"
	B         = "b"
	C         = "c"
	Up        = "up"
	Down      = "down"
	Developer = "developer"
)

var Names = []string{A, B, C, Up, Down, Developer}

// Reader returns current level of every input it knows, true = pressed.
type Reader interface {
	Snapshot() (map[string]bool, error)
}

// KeyReader returns at most one pending key per call, ok=false if none.
type KeyReader interface {
	PollKey() (key types.Key, ok bool, err error)
	String() string
}

type Tracker struct {
	Log      *log2.Log
	Bus      *bus.Bus
	Reader   Reader
	Debounce time.Duration

	now       func() int64
	last      map[string]bool
	changedAt map[string]int64
}

func NewTracker(log *log2.Log, b *bus.Bus, r Reader, debounce time.Duration) *Tracker {
	return &Tracker{
		Log:       log,
		Bus:       b,
		Reader:    r,
		Debounce:  debounce,
		now:       atomic_clock.Source,
		last:      make(map[string]bool, len(Names)),
		changedAt: make(map[string]int64, len(Names)),
	}
}

// Poll compares reader snapshot with last reported values and publishes
// single InputsChanged with changed subset. Returns the published changes.
func (self *Tracker) Poll() (map[string]bool, error) {
	snap, err := self.Reader.Snapshot()
	if err != nil {
		return nil, errors.Annotate(err, "input snapshot")
	}
	now := self.now()
	var changes map[string]bool
	for name, value := range snap {
		if self.last[name] == value {
			continue
		}
		if at, ok := self.changedAt[name]; ok && time.Duration(now-at) < self.Debounce {
			continue
		}
		self.last[name] = value
		self.changedAt[name] = now
		if changes == nil {
			changes = make(map[string]bool, 4)
		}
		changes[name] = value
	}
	if changes != nil {
		self.Log.Debugf("input changes=%v", changes)
		self.Bus.Publish(types.InputsChanged{Changes: changes})
	}
	return changes, nil
}

// Task adapts Poll to scheduler.
func (self *Tracker) Task(context.Context) error {
	_, err := self.Poll()
	return err
}

// Last returns copy of reported state.
func (self *Tracker) Last() map[string]bool {
	c := make(map[string]bool, len(self.last))
	for k, v := range self.last {
		c[k] = v
	}
	return c
}

// KeyTask publishes KeyPressed for one pending key per tick.
func KeyTask(b *bus.Bus, kr KeyReader) func(context.Context) error {
	return func(context.Context) error {
		key, ok, err := kr.PollKey()
		if err != nil {
			return errors.Annotatef(err, "key poll source=%s", kr.String())
		}
		if ok {
			b.Publish(types.KeyPressed{Source: kr.String(), Key: key})
		}
		return nil
	}
}

// Mock is a Reader with settable state.
type Mock struct {
	State map[string]bool
	Err   error
}

func NewMock(names ...string) *Mock {
	m := &Mock{State: make(map[string]bool, len(names))}
	for _, n := range names {
		m.State[n] = false
	}
	return m
}

func (m *Mock) Set(name string, v bool) { m.State[name] = v }

func (m *Mock) Snapshot() (map[string]bool, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	c := make(map[string]bool, len(m.State))
	for k, v := range m.State {
		c[k] = v
	}
	return c, nil
}

// Multi merges several readers, later ones win on name clash.
type Multi []Reader

func (rs Multi) Snapshot() (map[string]bool, error) {
	all := make(map[string]bool, len(Names))
	for _, r := range rs {
		snap, err := r.Snapshot()
		if err != nil {
			return nil, err
		}
		for k, v := range snap {
			all[k] = v
		}
	}
	return all, nil
}

// SortedNames is for stable logs.
func SortedNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
