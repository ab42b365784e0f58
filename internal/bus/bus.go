// Package bus is topic keyed publish/subscribe with stable subscription handles.
// Not safe for concurrent use: Publish, Subscribe and Dispatch run on the tick loop.
package bus

import (
	"fmt"
	"runtime/debug"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

// SubscriptionID is unique per Bus, monotonic, never reused. Zero is invalid.
type SubscriptionID uint64

type Handler func(types.Message) error

type sub struct {
	id    SubscriptionID
	topic types.Topic
	fun   Handler
}

type Bus struct {
	Log *log2.Log
	// FaultFunc receives every subscriber fault after it is logged.
	FaultFunc func(error)

	lastID SubscriptionID
	byID   map[SubscriptionID]*sub
	topics map[types.Topic][]*sub
	queue  []types.Message
}

func New(log *log2.Log) *Bus {
	return &Bus{
		Log:    log,
		byID:   make(map[SubscriptionID]*sub, 32),
		topics: make(map[types.Topic][]*sub, 16),
	}
}

func (self *Bus) Subscribe(topic types.Topic, fun Handler) SubscriptionID {
	if !topic.Valid() {
		panic(fmt.Sprintf("code error bus subscribe invalid topic=%s", topic))
	}
	if fun == nil {
		panic("code error bus subscribe fun=nil topic=" + topic.String())
	}
	self.lastID++
	s := &sub{id: self.lastID, topic: topic, fun: fun}
	self.byID[s.id] = s
	self.topics[topic] = append(self.topics[topic], s)
	return s.id
}

// Unsubscribe removes exactly one subscription, returns false if id is unknown.
func (self *Bus) Unsubscribe(id SubscriptionID) bool {
	s, ok := self.byID[id]
	if !ok {
		return false
	}
	delete(self.byID, id)
	list := self.topics[s.topic]
	// copy, a Dispatch in progress may hold the old slice
	next := make([]*sub, 0, len(list))
	for _, x := range list {
		if x.id != id {
			next = append(next, x)
		}
	}
	if len(next) == 0 {
		delete(self.topics, s.topic)
	} else {
		self.topics[s.topic] = next
	}
	return true
}

func (self *Bus) Subscribed(id SubscriptionID) bool {
	_, ok := self.byID[id]
	return ok
}

func (self *Bus) Count(topic types.Topic) int { return len(self.topics[topic]) }

// Publish appends to queue, delivered by next Dispatch.
func (self *Bus) Publish(m types.Message) {
	if m == nil {
		panic("code error bus publish nil message")
	}
	self.queue = append(self.queue, m)
}

func (self *Bus) Pending() int { return len(self.queue) }

// Dispatch delivers queued messages followed by extra.
// Queue is snapshotted first, so messages published by handlers wait for next Dispatch.
// Returns number of delivered messages.
func (self *Bus) Dispatch(extra ...types.Message) int {
	batch := self.queue
	self.queue = nil
	batch = append(batch, extra...)
	for _, m := range batch {
		self.deliver(m)
	}
	return len(batch)
}

func (self *Bus) deliver(m types.Message) {
	// snapshot: subscribers added during delivery wait for next message
	subs := self.topics[m.Topic()]
	if len(subs) == 0 {
		self.Log.Debugf("bus no subscribers message=%s", m.String())
		return
	}
	for _, s := range subs {
		if _, ok := self.byID[s.id]; !ok {
			continue
		}
		if err := self.call(s, m); err != nil {
			self.fault(err)
		}
	}
}

func (self *Bus) call(s *sub, m types.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v\n%s", r, debug.Stack())
			err = errors.Annotatef(err, "bus subscriber id=%d topic=%s message=%s", s.id, s.topic, m.String())
		}
	}()
	if err = s.fun(m); err != nil {
		err = errors.Annotatef(err, "bus subscriber id=%d topic=%s message=%s", s.id, s.topic, m.String())
	}
	return err
}

func (self *Bus) fault(err error) {
	self.Log.Errorf("%s", errors.ErrorStack(err))
	if self.FaultFunc != nil {
		self.FaultFunc(err)
	}
}
