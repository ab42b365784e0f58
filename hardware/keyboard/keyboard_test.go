package keyboard

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/inputevent-go"
	"github.com/temoto/zeos/internal/types"
)

type fakeDev struct {
	keys []byte
	err  error
}

func (f *fakeDev) Tx(w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	if len(f.keys) == 0 {
		r[0] = 0
		return nil
	}
	r[0] = f.keys[0]
	f.keys = f.keys[1:]
	return nil
}

func TestCardKB(t *testing.T) {
	t.Parallel()

	dev := &fakeDev{keys: []byte{'h', 0, 0xb5}}
	kb := NewCardKB(dev)
	assert.Equal(t, CardKBTag, kb.String())

	var got []types.Key
	for i := 0; i < 5; i++ {
		k, ok, err := kb.PollKey()
		require.NoError(t, err)
		if ok {
			got = append(got, k)
		}
	}
	assert.Equal(t, []types.Key{'h', KeyUp}, got)

	dev.err = errors.New("nack")
	require.Error(t, kb.Probe())
}

func TestKeyName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key    types.Key
		expect string
	}{
		{'x', "x"},
		{KeyEnter, "enter"},
		{KeyF1 + 2, "f3"},
		{0x99, "0x99"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, KeyName(c.key))
	}
}

func TestUsage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  types.Key
		mod  byte
		code byte
		ok   bool
	}{
		{'a', 0, 0x04, true},
		{'Z', modShift, 0x1d, true},
		{'1', 0, 0x1e, true},
		{'0', 0, 0x27, true},
		{'@', modShift, 0x1f, true},
		{'?', modShift, 0x38, true},
		{KeyEnter, 0, 0x28, true},
		{KeyUp, 0, 0x52, true},
		{KeyF10, 0, 0x43, true},
		{0x99, 0, 0, false},
	}
	for _, c := range cases {
		mod, code, ok := Usage(c.key)
		assert.Equal(t, c.ok, ok, "key=%s", KeyName(c.key))
		assert.Equal(t, c.mod, mod, "key=%s", KeyName(c.key))
		assert.Equal(t, c.code, code, "key=%s", KeyName(c.key))
	}
}

func TestGadget(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	g := NewGadget(buf)
	require.NoError(t, g.Type('B'))
	assert.Equal(t, []byte{modShift, 0, 0x05, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, buf.Bytes())

	err := g.Type(0x99)
	assert.True(t, errors.IsNotSupported(err))
}

func TestDevInput(t *testing.T) {
	t.Parallel()

	stream := bytes.NewBuffer(nil)
	for _, ev := range []inputevent.InputEvent{
		{Type: evKey, Code: 30, Value: int32(inputevent.KeyStateDown)},
		{Type: evKey, Code: 30, Value: int32(inputevent.KeyStateUp)},
		{Type: 0, Code: 0, Value: 0},
		{Type: evKey, Code: 28, Value: int32(inputevent.KeyStateDown)},
		{Type: evKey, Code: 200, Value: int32(inputevent.KeyStateDown)},
	} {
		require.NoError(t, binary.Write(stream, binary.LittleEndian, ev))
	}
	d := NewDevInput(ioutil.NopCloser(stream))

	var got []types.Key
	var lastErr error
	require.Eventually(t, func() bool {
		k, ok, err := d.PollKey()
		if ok {
			got = append(got, k)
		}
		lastErr = err
		return err != nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, []types.Key{'a', KeyEnter}, got)
	assert.Equal(t, io.EOF, lastErr)
}

func TestDevInputCloseFullBuffer(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	d := NewDevInput(pr)
	go func() {
		ev := inputevent.InputEvent{Type: evKey, Code: 30, Value: int32(inputevent.KeyStateDown)}
		for i := 0; i < evBuffer*2; i++ {
			if binary.Write(pw, binary.LittleEndian, ev) != nil {
				return
			}
		}
	}()
	require.Eventually(t, func() bool { return len(d.keys) == evBuffer }, time.Second, time.Millisecond)

	require.NoError(t, d.Close())
	select {
	case <-d.stopped:
	case <-time.After(time.Second):
		t.Fatal("worker still running after Close")
	}
	assert.NoError(t, d.Close(), "repeated Close")
}
