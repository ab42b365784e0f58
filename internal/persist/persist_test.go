package persist

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/zeos/log2"
)

type name struct{ v string }

func (n *name) MarshalBinary() ([]byte, error) { return []byte(n.v), nil }
func (n *name) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return errors.NotValidf("empty")
	}
	n.v = string(b)
	return nil
}

func TestPersist(t *testing.T) {
	t.Parallel()

	dir, err := ioutil.TempDir("", "zeos-persist-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	log := log2.NewTest(t, log2.LDebug)

	var p1 Persist
	n1 := &name{v: "initial"}
	require.NoError(t, p1.Init("app", n1, dir, true, log))
	assert.True(t, p1.Enabled())
	require.NoError(t, p1.Load())
	assert.Equal(t, "initial", n1.v, "nothing stored yet")

	n1.v = "clicker"
	require.NoError(t, p1.Store())

	var p2 Persist
	n2 := &name{}
	require.NoError(t, p2.Init("app", n2, dir, true, log))
	require.NoError(t, p2.Load())
	assert.Equal(t, "clicker", n2.v)
}

func TestPersistDisabled(t *testing.T) {
	t.Parallel()

	var p Persist
	n := &name{v: "x"}
	require.NoError(t, p.Init("app", n, "", false, log2.NewTest(t, log2.LDebug)))
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Load())
	assert.NoError(t, p.Store())
	assert.Equal(t, "x", n.v)

	assert.Error(t, (&Persist{}).Init("app", n, "", true, nil))
}
