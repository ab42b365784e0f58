package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/zeos/log2"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		files  map[string]string
		check  func(testing.TB, *Config)
		expect string
	}
	cases := []Case{
		{"empty", map[string]string{"test-inline": ""}, func(t testing.TB, c *Config) {
			assert.Equal(t, 296, c.Hardware.Display.Width)
			assert.Equal(t, 128, c.Hardware.Display.Height)
			assert.Equal(t, 200, c.Kernel.TickMs)
			assert.Equal(t, 2000, c.Kernel.DebounceMs)
			assert.Equal(t, 500, c.Kernel.GraceMs)
			assert.Equal(t, "store_and_show", c.Apps.A)
			assert.Equal(t, "ze.conf", c.Storage.Settings)
			assert.Equal(t, 9, c.UI.TerminalLines)
		}, ""},
		{"sections", map[string]string{
			"test-inline": `
hardware {
  display { width = 200 height = 96 }
  buttons {
    enable = true
    pins { a = 5 b = 6 developer = 21 }
  }
  serial { device = "/dev/ttyGS1" }
}
kernel { tick_ms = 100 echo_unknown = true }
storage { root = "/badge" }
apps { b = "clicker" }
`}, func(t testing.TB, c *Config) {
			assert.Equal(t, 200, c.Hardware.Display.Width)
			assert.Equal(t, 96, c.Hardware.Display.Height)
			assert.True(t, c.Hardware.Buttons.Enable)
			assert.Equal(t, 21, c.Hardware.Buttons.Pins["developer"])
			assert.Equal(t, "/dev/ttyGS1", c.Hardware.Serial.Device)
			assert.Equal(t, 115200, c.Hardware.Serial.Baud)
			assert.Equal(t, 100, c.Kernel.TickMs)
			assert.True(t, c.Kernel.EchoUnknown)
			assert.Equal(t, "/badge/ze.conf", c.Storage.Settings)
			assert.Equal(t, "clicker", c.Apps.B)
		}, ""},
		{"include-normalize", map[string]string{
			"test-inline": `include "./empty" {}`,
			"empty":       "",
		}, nil, ""},
		{"include-optional", map[string]string{
			"test-inline": `include "missing" { optional = true }`,
		}, nil, ""},
		{"include-required", map[string]string{
			"test-inline": `include "missing" {}`,
		}, nil, "config required name=missing path=missing not found"},
		{"include-loop", map[string]string{
			"test-inline": `include "test-inline" {}`,
		}, nil, "config include loop: from=test-inline include=test-inline"},
		{"include-override", map[string]string{
			"test-inline": `kernel { tick_ms = 300 } include "local" {}`,
			"local":       `kernel { tick_ms = 150 }`,
		}, func(t testing.TB, c *Config) {
			assert.Equal(t, 150, c.Kernel.TickMs)
		}, ""},
		{"invalid-pin-name", map[string]string{
			"test-inline": `hardware { buttons { pins { z = 1 } } }`,
		}, nil, "buttons pin name=z not valid"},
		{"tele-without-broker", map[string]string{
			"test-inline": `tele { enable = true }`,
		}, nil, "tele enabled without mqtt_broker not valid"},
		{"syntax", map[string]string{
			"test-inline": `kernel {`,
		}, nil, "config unmarshal source=test-inline"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(c.files)
			cfg, err := Read(log, fs, "test-inline")
			if c.expect == "" {
				require.NoError(t, err)
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expect)
			}
		})
	}
}

func TestDefaultsIdempotent(t *testing.T) {
	t.Parallel()

	c := &Config{}
	c.Defaults()
	first := *c
	c.Defaults()
	assert.Equal(t, first.Storage, c.Storage)
	assert.Equal(t, first.Kernel, c.Kernel)
	assert.NoError(t, c.Validate())
}
