// Package app is the foreground application lifecycle: exactly one active
// app at a time, started by app-select inputs.
package app

import (
	"image"

	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/settings"
	"github.com/temoto/zeos/internal/store"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

// App owns display and navigation inputs while active.
// Unrun must remove exactly the subscriptions Run installed and be safe to call
// without prior Run.
type App interface {
	Name() string
	Run() error
	Unrun()
}

// Env is everything an app may touch.
type Env struct {
	Log      *log2.Log
	Bus      *bus.Bus
	Settings *settings.Settings
	Store    *store.Store
	Size     image.Point
}

// Subscriptions remembers handles it created so they can be removed all at once.
type Subscriptions struct {
	bus *bus.Bus
	ids []bus.SubscriptionID
}

func NewSubscriptions(b *bus.Bus) *Subscriptions {
	return &Subscriptions{bus: b}
}

func (s *Subscriptions) Add(topic types.Topic, fun bus.Handler) bus.SubscriptionID {
	id := s.bus.Subscribe(topic, fun)
	s.ids = append(s.ids, id)
	return id
}

// Clear unsubscribes every remembered handle, returns number removed.
func (s *Subscriptions) Clear() int {
	n := 0
	for _, id := range s.ids {
		if s.bus.Unsubscribe(id) {
			n++
		}
	}
	s.ids = s.ids[:0]
	return n
}

func (s *Subscriptions) Len() int { return len(s.ids) }
