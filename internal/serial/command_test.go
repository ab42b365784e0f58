package serial

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/zeos/internal/types"
)

func TestParse(t *testing.T) {
	t.Parallel()

	p := &Parser{Source: "serial"}
	cases := []struct {
		input  string
		expect types.Command
		err    string
	}{
		{"show:myimage:", types.Command{Name: "show", Meta: "myimage", Source: "serial"}, ""},
		{"store:a:eJw=:with:colons", types.Command{Name: "store", Meta: "a", Payload: "eJw=:with:colons", Source: "serial"}, ""},
		{"  help :: \r", types.Command{Name: "help", Source: "serial"}, ""},
		{"config_update::a=1\tb=2", types.Command{Name: "config_update", Payload: "a=1 b=2", Source: "serial"}, ""},
		{"badcommand", types.Command{}, "expected 3 parts, got 1"},
		{"one:colon", types.Command{}, "expected 3 parts, got 2"},
		{"", types.Command{}, "empty line"},
		{" \t ", types.Command{}, "empty line"},
		{":meta:payload", types.Command{}, "empty command"},
		{"bad\xffutf:x:y", types.Command{}, "invalid utf-8"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			cmd, err := p.Parse(c.input)
			if c.err != "" {
				require.Error(t, err)
				assert.True(t, IsParseError(err))
				assert.Contains(t, err.Error(), c.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, cmd)
		})
	}
}

func TestParseBase64(t *testing.T) {
	t.Parallel()

	p := &Parser{Base64: true}
	line := base64.StdEncoding.EncodeToString([]byte("show:badge:"))
	cmd, err := p.Parse(line)
	require.NoError(t, err)
	assert.Equal(t, "show", cmd.Name)
	assert.Equal(t, "badge", cmd.Meta)

	_, err = p.Parse("badcommand")
	require.Error(t, err)
	assert.True(t, IsParseError(err))

	// plain form still works
	cmd, err = p.Parse("list::")
	require.NoError(t, err)
	assert.Equal(t, "list", cmd.Name)
}

func TestParseDebugPrefix(t *testing.T) {
	t.Parallel()

	p := &Parser{Debug: true}
	cmd, err := p.Parse("debug:show:x:")
	require.NoError(t, err)
	if DebugBuild() {
		assert.Equal(t, types.Command{Name: "show", Meta: "x"}, cmd)
	} else {
		// prefix is an ordinary (unknown) command name in release builds
		assert.Equal(t, types.Command{Name: "debug", Meta: "show", Payload: "x:"}, cmd)
	}
}

func TestTrunc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Trunc("short", 10))
	assert.Equal(t, "abc...xyz", Trunc("abcdefghijklmnopqrstuvwxyz", 9))
}
