package display

import (
	"image"
	"strings"

	"github.com/temoto/zeos/internal/codec"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Group is a drawable composed of text and bitmap items, later items on top.
type Group struct {
	Items []Item
}

// Item is either Text or Bitmap placed with top-left corner at X,Y.
type Item struct {
	X, Y   int
	Text   string
	Bitmap *codec.Bitmap
}

var Face font.Face = basicfont.Face7x13

const LineHeight = 13

func (g *Group) AddText(x, y int, text string) *Group {
	g.Items = append(g.Items, Item{X: x, Y: y, Text: text})
	return g
}

func (g *Group) AddBitmap(x, y int, b *codec.Bitmap) *Group {
	g.Items = append(g.Items, Item{X: x, Y: y, Bitmap: b})
	return g
}

// TextLines makes a group of one text item per line, top to bottom.
func TextLines(lines []string) Group {
	g := Group{Items: make([]Item, 0, len(lines))}
	for i, line := range lines {
		g.Items = append(g.Items, Item{X: 1, Y: i * LineHeight, Text: line})
	}
	return g
}

// Render draws black on white, clipping to size.
func (g Group) Render(size image.Point) *codec.Bitmap {
	img := image.NewPaletted(image.Rectangle{Max: size}, codec.Palette)
	for i := range img.Pix {
		img.Pix[i] = codec.White
	}
	ascent := Face.Metrics().Ascent
	d := font.Drawer{Dst: img, Src: image.Black, Face: Face}
	for _, it := range g.Items {
		if it.Bitmap != nil {
			for y := 0; y < it.Bitmap.Height; y++ {
				for x := 0; x < it.Bitmap.Width; x++ {
					p := image.Pt(it.X+x, it.Y+y)
					if p.In(img.Rect) {
						img.Pix[img.PixOffset(p.X, p.Y)] = it.Bitmap.At(x, y)
					}
				}
			}
		}
		if it.Text != "" {
			for i, line := range strings.Split(it.Text, "\n") {
				d.Dot = fixed.Point26_6{X: fixed.I(it.X), Y: fixed.I(it.Y+i*LineHeight) + ascent}
				d.DrawString(line)
			}
		}
	}
	b := codec.NewBitmap(size.X, size.Y)
	copy(b.Pix, img.Pix)
	return b
}
