package ui

import (
	"image"

	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/internal/codec"
)

// Terminal keeps last Max lines for the diagnostic view.
type Terminal struct {
	Max   int
	lines []string
}

func NewTerminal(max int) *Terminal {
	if max <= 0 {
		max = 1
	}
	return &Terminal{Max: max, lines: make([]string, 0, max)}
}

func (t *Terminal) Add(line string) {
	if len(t.lines) == t.Max {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.Max-1]
	}
	t.lines = append(t.lines, line)
}

func (t *Terminal) Lines() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *Terminal) Render(size image.Point) *codec.Bitmap {
	return display.TextLines(t.lines).Render(size)
}
