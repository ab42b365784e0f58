package ui

import (
	"image"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/codec"
	"github.com/temoto/zeos/internal/store"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

type env struct {
	ui      *UI
	bus     *bus.Bus
	display *display.Mock
	store   *store.Store
	errors  []string
	slept   time.Duration
}

func newEnv(t testing.TB) *env {
	dir, err := ioutil.TempDir("", "zeos-ui-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	log := log2.NewTest(t, log2.LDebug)
	e := &env{
		bus:     bus.New(log),
		display: display.NewMock(image.Pt(16, 8)),
		store:   store.New(dir),
	}
	e.bus.FaultFunc = func(err error) { t.Errorf("subscriber fault: %v", err) }
	e.ui = New(log, e.bus, e.display, e.store, 500, 3)
	e.ui.sleep = func(d time.Duration) { e.slept += d }
	e.ui.Init()
	e.bus.Subscribe(types.TopicError, func(m types.Message) error {
		e.errors = append(e.errors, m.(types.Error).Text)
		return nil
	})
	return e
}

func (e *env) dispatch(m types.Message) {
	e.bus.Publish(m)
	e.bus.Dispatch()
	e.bus.Dispatch()
}

func pattern(w, h int) *codec.Bitmap {
	b := codec.NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.Set(x, y, uint8((x+y)%2))
		}
	}
	return b
}

func TestTerminalRing(t *testing.T) {
	t.Parallel()

	term := NewTerminal(2)
	term.Add("one")
	term.Add("two")
	term.Add("three")
	assert.Equal(t, []string{"two", "three"}, term.Lines())
	assert.Equal(t, 1, NewTerminal(0).Max)
}

func TestShowBitmap(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := pattern(16, 8)
	e.dispatch(types.ShowBitmap{Bitmap: b})
	assert.True(t, b.Equal(e.display.Panel()))
	assert.Equal(t, 1, e.display.Refreshes())
	assert.True(t, b.Equal(e.ui.Current()))
}

func TestShowFile(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := pattern(16, 8)
	payload, err := codec.Encode(b)
	require.NoError(t, err)
	_, err = e.store.Write("badge", []byte(payload))
	require.NoError(t, err)
	_, err = e.store.Write("broken", []byte("eJzLSM3JyQcABiwCFQ=="))
	require.NoError(t, err)

	e.dispatch(types.ShowFile{Name: "badge"})
	assert.True(t, b.Equal(e.display.Panel()))
	last, err := e.store.LastBadge()
	require.NoError(t, err)
	assert.Equal(t, "badge.b64", last)
	assert.Empty(t, e.errors)

	// decode error leaves display and last badge unchanged
	e.dispatch(types.ShowFile{Name: "broken"})
	assert.True(t, b.Equal(e.display.Panel()))
	assert.Equal(t, 1, e.display.Refreshes())
	last, _ = e.store.LastBadge()
	assert.Equal(t, "badge.b64", last)
	require.Len(t, e.errors, 1)

	e.dispatch(types.ShowFile{Name: "missing"})
	require.Len(t, e.errors, 2)
	assert.Contains(t, e.errors[1], "missing.b64")
}

func TestTerminalToggle(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := pattern(16, 8)
	require.NoError(t, e.ui.Show(b))
	e.dispatch(types.Info{Text: "hello"})
	assert.Equal(t, []string{"info: hello"}, e.ui.Terminal().Lines())
	assert.Equal(t, 1, e.display.Refreshes(), "terminal hidden, no redraw")

	e.dispatch(types.ToggleTerminal{})
	assert.True(t, e.ui.TerminalShown())
	assert.False(t, b.Equal(e.display.Panel()))

	e.dispatch(types.Error{Text: "oops"})
	assert.Equal(t, 3, e.display.Refreshes(), "terminal shown, redraw on new line")

	e.dispatch(types.ToggleTerminal{})
	assert.False(t, e.ui.TerminalShown())
	assert.True(t, b.Equal(e.display.Panel()))
}

func TestRefreshBusy(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.display.BusyPolls = 3
	require.NoError(t, e.ui.Refresh())
	require.NoError(t, e.ui.Refresh())
	assert.Equal(t, 3*BusyPoll, e.slept)

	e.display.BusyPolls = 1000
	require.NoError(t, e.ui.Refresh())
	e.slept = 0
	err := e.ui.Refresh()
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.Equal(t, 500*time.Millisecond, e.slept)
}

func TestShowQR(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.display = display.NewMock(image.Pt(64, 64))
	e.ui.Display = e.display
	require.NoError(t, e.ui.ShowQR("zeos"))
	assert.Equal(t, 1, e.display.Refreshes())
	assert.Error(t, e.ui.Show(nil))
}
