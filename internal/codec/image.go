package codec

import (
	"image"

	"golang.org/x/image/draw"
)

const DefaultThreshold = 128

// FromImage scales img to width×height, keeping aspect ratio and centering
// on white, then thresholds luminance: brighter than threshold is White.
func FromImage(img image.Image, width, height int, threshold uint8) *Bitmap {
	src := img.Bounds()
	dstRect := image.Rect(0, 0, width, height)
	if sw, sh := src.Dx(), src.Dy(); sw > 0 && sh > 0 {
		// fit
		w, h := width, sh*width/sw
		if h > height {
			w, h = sw*height/sh, height
		}
		x0, y0 := (width-w)/2, (height-h)/2
		dstRect = image.Rect(x0, y0, x0+w, y0+h)
	}
	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(gray, gray.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(gray, dstRect, img, src, draw.Over, nil)

	b := NewBitmap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				b.Pix[y*width+x] = White
			}
		}
	}
	return b
}

// Gray returns grayscale view, handy for PNG export.
func (b *Bitmap) Gray() *image.Gray {
	g := image.NewGray(b.Bounds())
	for i, v := range b.Pix {
		if v == White {
			g.Pix[i] = 0xff
		}
	}
	return g
}
