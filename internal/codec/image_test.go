package codec

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromImage(t *testing.T) {
	t.Parallel()

	// left half black, right half white, 2:1 source into square target
	src := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 20; x < 40; x++ {
			src.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	b := FromImage(src, 20, 20, DefaultThreshold)
	assert.Equal(t, 20, b.Width)
	assert.Equal(t, Black, b.At(2, 10))
	assert.Equal(t, White, b.At(17, 10))
	// letterbox rows are white
	assert.Equal(t, White, b.At(2, 1))
	assert.Equal(t, White, b.At(2, 18))

	g := b.Gray()
	assert.Equal(t, uint8(0), g.GrayAt(2, 10).Y)
	assert.Equal(t, uint8(0xff), g.GrayAt(17, 10).Y)
}
