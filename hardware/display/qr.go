package display

import (
	"image"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/temoto/zeos/internal/codec"
)

// QR renders text as the largest integer-scaled code fitting size, centered on white.
func QR(text string, size image.Point, border bool, level qrcode.RecoveryLevel) (*codec.Bitmap, error) {
	qr, err := qrcode.New(text, level)
	if err != nil {
		return nil, errors.Annotate(err, "QR")
	}
	qr.DisableBorder = !border
	modules := qr.Bitmap()
	n := len(modules)
	scale := minInt(size.X, size.Y) / n
	if scale < 1 {
		return nil, errors.Errorf("QR modules=%d > display size=%s", n, size.String())
	}
	b := codec.NewBitmap(size.X, size.Y)
	b.Fill(codec.White)
	offx, offy := (size.X-n*scale)/2, (size.Y-n*scale)/2
	for my, row := range modules {
		for mx, set := range row {
			if !set {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					b.Set(offx+mx*scale+dx, offy+my*scale+dy, codec.Black)
				}
			}
		}
	}
	return b, nil
}

func minInt(i1, i2 int) int {
	if i1 <= i2 {
		return i1
	}
	return i2
}
