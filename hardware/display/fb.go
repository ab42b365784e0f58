package display

import (
	"image"

	"github.com/juju/errors"
	"github.com/temoto/zeos/hardware/display/framebuffer"
	"github.com/temoto/zeos/internal/codec"
)

// Framebuffer is a panel exposed by kernel driver as /dev/fbN.
type Framebuffer struct {
	fb    *framebuffer.Framebuffer
	frame *codec.Bitmap
	size  image.Point
	// BusyFunc reports panel BUSY line, nil means never busy.
	BusyFunc func() bool
}

var _ Display = &Framebuffer{}

func NewFb(dev string) (*Framebuffer, error) {
	fb, err := framebuffer.New(dev)
	if err != nil {
		return nil, errors.Annotatef(err, "framebuffer device=%s", dev)
	}
	size := fb.Size()
	d := &Framebuffer{
		fb:    fb,
		frame: codec.NewBitmap(size.X, size.Y),
		size:  size,
	}
	d.frame.Fill(codec.White)
	return d, nil
}

func (d *Framebuffer) Close() error { return d.fb.Close() }

func (d *Framebuffer) Size() image.Point { return d.size }

func (d *Framebuffer) Busy() bool {
	if d.BusyFunc == nil {
		return false
	}
	return d.BusyFunc()
}

func (d *Framebuffer) Show(b *codec.Bitmap) error {
	if err := checkFit(d.size, b); err != nil {
		return err
	}
	d.frame.Fill(codec.White)
	d.frame.Blit(b, 0, 0)
	return nil
}

func (d *Framebuffer) Refresh() error {
	if err := d.fb.Update(d.frame); err != nil {
		return errors.Annotate(err, "framebuffer update")
	}
	return errors.Annotate(d.fb.Flush(), "framebuffer flush")
}
