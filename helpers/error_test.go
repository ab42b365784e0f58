package helpers

import (
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	err := FoldErrors([]error{fmt.Errorf("first"), nil, fmt.Errorf("second")})
	assert.EqualError(t, err, "first\nsecond")
}

func TestReadable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Readable(nil))

	plain := Readable(fmt.Errorf("disk full"))
	assert.Equal(t, "Reason: disk full", plain)

	err := errors.Annotate(errors.New("inflate"), "show badge.b64")
	s := Readable(err)
	assert.Contains(t, s, "Reason: show badge.b64: inflate\n  ")
	assert.Contains(t, s, "error_test.go")
}

func TestIntMillisecondDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, IntMillisecondDefault(0, 5), IntMillisecondDefault(-1, 5))
	assert.Equal(t, "200ms", IntMillisecondDefault(200, 0).String())
}
