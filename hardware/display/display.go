// Package display drives the e-paper panel (or anything pretending to be one).
// Show replaces the frame buffer content, Refresh pushes it to the panel.
// A panel refresh is slow, Busy reports true while one is in progress.
package display

import (
	"image"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/codec"
)

type Display interface {
	Size() image.Point
	Busy() bool
	Show(b *codec.Bitmap) error
	Refresh() error
}

// Mock keeps frames in memory, Shown() and Panel() expose them to tests.
type Mock struct {
	mu        sync.Mutex
	size      image.Point
	shown     *codec.Bitmap
	panel     *codec.Bitmap
	refreshes int
	// Busy() returns true this many times after each Refresh
	BusyPolls int
	busyLeft  int
}

var _ Display = &Mock{}

func NewMock(size image.Point) *Mock {
	return &Mock{
		size:  size,
		shown: codec.NewBitmap(size.X, size.Y),
		panel: codec.NewBitmap(size.X, size.Y),
	}
}

func (d *Mock) Size() image.Point { return d.size }

func (d *Mock) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busyLeft > 0 {
		d.busyLeft--
		return true
	}
	return false
}

func (d *Mock) Show(b *codec.Bitmap) error {
	if err := checkFit(d.size, b); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown.Fill(codec.White)
	d.shown.Blit(b, 0, 0)
	return nil
}

func (d *Mock) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.panel.Pix, d.shown.Pix)
	d.refreshes++
	d.busyLeft = d.BusyPolls
	return nil
}

func (d *Mock) Shown() *codec.Bitmap {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := codec.NewBitmap(d.size.X, d.size.Y)
	copy(c.Pix, d.shown.Pix)
	return c
}

// Panel returns what the last Refresh pushed.
func (d *Mock) Panel() *codec.Bitmap {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := codec.NewBitmap(d.size.X, d.size.Y)
	copy(c.Pix, d.panel.Pix)
	return c
}

func (d *Mock) Refreshes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshes
}

func (d *Mock) String2() string { return d.Panel().String() }

func checkFit(size image.Point, b *codec.Bitmap) error {
	if b == nil {
		return errors.NotValidf("nil bitmap")
	}
	if b.Width > size.X || b.Height > size.Y {
		return errors.NotValidf("bitmap size=%dx%d > display size=%s", b.Width, b.Height, size.String())
	}
	return nil
}
