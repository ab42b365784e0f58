package serial

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunks returns one element per Read, then io.EOF.
type chunks struct{ parts []string }

func (c *chunks) Read(p []byte) (int, error) {
	if len(c.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.parts[0])
	if n < len(c.parts[0]) {
		c.parts[0] = c.parts[0][n:]
	} else {
		c.parts = c.parts[1:]
	}
	return n, nil
}

func TestLineReader(t *testing.T) {
	t.Parallel()

	lr := NewLineReader(&chunks{parts: []string{"hel", "p::\r\nlist::\nsho", "", "w:x:\n"}})
	var got []string
	for i := 0; i < 4; i++ {
		lines, err := lr.Poll()
		require.NoError(t, err)
		got = append(got, lines...)
	}
	assert.Equal(t, []string{"help::", "list::", "show:x:"}, got)
	_, err := lr.Poll()
	assert.Equal(t, io.EOF, err)
}

func TestLineReaderTooLong(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	r := bytes.NewBufferString(long + "\nok::\n" + long + long + "tail\nafter::\n")
	lr := NewLineReader(r)
	lr.Max = 256
	lr.chunk = make([]byte, 100)

	var got []string
	var perrs int
	for i := 0; i < 20; i++ {
		lines, err := lr.Poll()
		if err == io.EOF {
			break
		}
		if err != nil {
			require.True(t, IsParseError(err), "err=%v", err)
			perrs++
		}
		got = append(got, lines...)
	}
	assert.Equal(t, []string{"ok::", "after::"}, got)
	assert.Equal(t, 2, perrs)
	assert.Equal(t, 0, lr.Buffered())
}

func TestLineReaderSmallMax(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
	}{
		{"complete", strings.Repeat("y", 40) + "\nok::\n"},
		{"partial", strings.Repeat("y", 40)},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			lr := NewLineReader(bytes.NewBufferString(c.input))
			lr.Max = 32
			lines, err := lr.Poll()
			require.True(t, IsParseError(err), "err=%v", err)
			assert.Contains(t, err.Error(), "line too long")
			if c.name == "complete" {
				assert.Equal(t, []string{"ok::"}, lines)
			}
		})
	}
}
