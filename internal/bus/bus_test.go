package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

func TestSubscribeIDs(t *testing.T) {
	t.Parallel()

	b := New(log2.NewTest(t, log2.LDebug))
	nop := func(types.Message) error { return nil }
	id1 := b.Subscribe(types.TopicInfo, nop)
	id2 := b.Subscribe(types.TopicInfo, nop)
	assert.NotEqual(t, SubscriptionID(0), id1)
	assert.True(t, id2 > id1)
	assert.True(t, b.Unsubscribe(id2))
	assert.False(t, b.Unsubscribe(id2), "second unsubscribe")
	assert.False(t, b.Unsubscribe(0))
	id3 := b.Subscribe(types.TopicInfo, nop)
	assert.True(t, id3 > id2, "never reused")
	assert.Equal(t, 2, b.Count(types.TopicInfo))
}

func TestDispatchOrder(t *testing.T) {
	t.Parallel()

	b := New(log2.NewTest(t, log2.LDebug))
	var got []string
	b.Subscribe(types.TopicInfo, func(m types.Message) error {
		got = append(got, "1:"+m.(types.Info).Text)
		return nil
	})
	b.Subscribe(types.TopicInfo, func(m types.Message) error {
		got = append(got, "2:"+m.(types.Info).Text)
		return nil
	})
	b.Subscribe(types.TopicTick, func(m types.Message) error {
		got = append(got, m.String())
		return nil
	})
	b.Publish(types.Info{Text: "x"})
	b.Publish(types.Error{Text: "no subscribers is fine"})
	b.Publish(types.Info{Text: "y"})
	n := b.Dispatch(types.Tick{N: 1})
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"1:x", "2:x", "1:y", "2:y", "tick n=1"}, got)
	assert.Equal(t, 0, b.Pending())
}

func TestPublishDuringDispatch(t *testing.T) {
	t.Parallel()

	b := New(log2.NewTest(t, log2.LDebug))
	var delivered []uint64
	tick := uint64(0)
	b.Subscribe(types.TopicInfo, func(m types.Message) error {
		delivered = append(delivered, tick)
		if m.(types.Info).Text == "first" {
			b.Publish(types.Info{Text: "second"})
		}
		return nil
	})
	b.Publish(types.Info{Text: "first"})
	tick = 1
	b.Dispatch()
	assert.Equal(t, []uint64{1}, delivered)
	assert.Equal(t, 1, b.Pending())
	tick = 2
	b.Dispatch()
	assert.Equal(t, []uint64{1, 2}, delivered)
	assert.Equal(t, 0, b.Pending())
}

func TestUnsubscribeSibling(t *testing.T) {
	t.Parallel()

	b := New(log2.NewTest(t, log2.LDebug))
	calls := map[string]int{}
	mk := func(name string) Handler {
		return func(types.Message) error { calls[name]++; return nil }
	}
	idA := b.Subscribe(types.TopicRefresh, mk("a"))
	b.Subscribe(types.TopicRefresh, mk("b"))
	b.Subscribe(types.TopicRefresh, mk("a")) // same callback shape, different handle
	require.True(t, b.Unsubscribe(idA))
	b.Publish(types.Refresh{})
	b.Dispatch()
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, calls)
}

func TestModifyDuringDelivery(t *testing.T) {
	t.Parallel()

	b := New(log2.NewTest(t, log2.LDebug))
	var order []string
	var idLate SubscriptionID
	var idVictim SubscriptionID
	b.Subscribe(types.TopicBlink, func(types.Message) error {
		order = append(order, "first")
		b.Unsubscribe(idVictim)
		if idLate == 0 {
			idLate = b.Subscribe(types.TopicBlink, func(types.Message) error {
				order = append(order, "late")
				return nil
			})
		}
		return nil
	})
	idVictim = b.Subscribe(types.TopicBlink, func(types.Message) error {
		order = append(order, "victim")
		return nil
	})
	b.Publish(types.Blink{})
	b.Dispatch()
	assert.Equal(t, []string{"first"}, order)
	b.Publish(types.Blink{})
	b.Dispatch()
	assert.Equal(t, []string{"first", "first", "late"}, order)
}

func TestSubscriberFault(t *testing.T) {
	t.Parallel()

	b := New(log2.NewTest(t, log2.LDebug))
	var faults []error
	b.FaultFunc = func(e error) { faults = append(faults, e) }
	var got []string
	b.Subscribe(types.TopicInfo, func(m types.Message) error {
		if m.(types.Info).Text == "boom" {
			panic("kaboom")
		}
		return nil
	})
	b.Subscribe(types.TopicInfo, func(m types.Message) error {
		if m.(types.Info).Text == "fail" {
			return fmt.Errorf("returned failure")
		}
		return nil
	})
	b.Subscribe(types.TopicInfo, func(m types.Message) error {
		got = append(got, m.(types.Info).Text)
		return nil
	})
	b.Publish(types.Info{Text: "boom"})
	b.Publish(types.Info{Text: "fail"})
	b.Publish(types.Info{Text: "ok"})
	b.Dispatch()
	assert.Equal(t, []string{"boom", "fail", "ok"}, got)
	require.Len(t, faults, 2)
	assert.Contains(t, faults[0].Error(), "kaboom")
	assert.Contains(t, faults[0].Error(), "topic=info")
	assert.Contains(t, faults[1].Error(), "returned failure")
}

func TestSubscribeInvalid(t *testing.T) {
	t.Parallel()

	b := New(nil)
	assert.Panics(t, func() { b.Subscribe(types.TopicInvalid, func(types.Message) error { return nil }) })
	assert.Panics(t, func() { b.Subscribe(types.TopicInfo, nil) })
	assert.Panics(t, func() { b.Publish(nil) })
}
