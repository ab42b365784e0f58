// Package framebuffer writes 1 bit bitmaps into a Linux fbdev device.
// Supported pixel formats: mono (1bpp), RGB565, XRGB8888.
package framebuffer

import (
	"encoding/binary"
	"image"
	"os"
	"syscall"
	"unsafe"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/codec"
)

type Framebuffer struct {
	buf   []byte
	dev   *os.File
	finfo fixedScreenInfo
	vinfo variableScreenInfo
}

func New(dev string) (*Framebuffer, error) {
	devFile, err := os.OpenFile(dev, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, errors.Annotate(err, "open")
	}
	fb := &Framebuffer{dev: devFile}
	fd := fb.dev.Fd()

	if err = ioctl(fd, getFixedScreenInfo, uintptr(unsafe.Pointer(&fb.finfo))); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getFixedScreenInfo")
	}

	if err = ioctl(fd, getVariableScreenInfo, uintptr(unsafe.Pointer(&fb.vinfo))); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getVariableScreenInfo")
	}

	fb.buf = make([]byte, fb.lineLength()*fb.vinfo.Yres)

	return fb, nil
}

func (fb *Framebuffer) Close() error {
	return fb.dev.Close()
}

func (fb *Framebuffer) Flush() error {
	_, err := fb.dev.WriteAt(fb.buf, 0)
	return err
}

func (fb *Framebuffer) Size() image.Point {
	return image.Point{X: int(fb.vinfo.Xres), Y: int(fb.vinfo.Yres)}
}

// Sets all pixels in internal buffer, call Flush() to write to hardware.
func (fb *Framebuffer) Update(b *codec.Bitmap) error {
	return encode(fb.buf, fb.lineLength(), &fb.finfo, &fb.vinfo, b)
}

func (fb *Framebuffer) lineLength() uint32 {
	if fb.finfo.Line_length != 0 {
		return fb.finfo.Line_length
	}
	return (fb.vinfo.Xres*fb.vinfo.Bits_per_pixel + 7) / 8
}

var rgb565 = variableScreenInfo{
	Red:   bitField{Offset: 11, Length: 5, Right: 0},
	Green: bitField{Offset: 5, Length: 6, Right: 0},
	Blue:  bitField{Offset: 0, Length: 5, Right: 0},
}

func encode(buf []byte, stride uint32, finfo *fixedScreenInfo, vinfo *variableScreenInfo, b *codec.Bitmap) error {
	w, h := minU32(uint32(b.Width), vinfo.Xres), minU32(uint32(b.Height), vinfo.Yres)
	if uint32(len(buf)) < stride*h {
		return errors.Errorf("framebuffer buffer=%d < stride=%d * height=%d", len(buf), stride, h)
	}
	switch {
	case vinfo.Bits_per_pixel == 1:
		invert := finfo.Visual == visualMono01
		for y := uint32(0); y < h; y++ {
			row := buf[y*stride : (y+1)*stride]
			for i := range row {
				row[i] = 0
			}
			for x := uint32(0); x < w; x++ {
				v := b.At(int(x), int(y))
				if invert {
					v ^= 1
				}
				if v != 0 {
					row[x/8] |= 1 << (7 - x%8)
				}
			}
		}
		return nil

	case vinfo.Bits_per_pixel == 16 && vinfo.Red == rgb565.Red && vinfo.Green == rgb565.Green && vinfo.Blue == rgb565.Blue:
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				binary.LittleEndian.PutUint16(buf[y*stride+x*2:], encode565(b.At(int(x), int(y))))
			}
		}
		return nil

	case vinfo.Bits_per_pixel == 32:
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				var word uint32 = 0xff000000
				if b.At(int(x), int(y)) == codec.White {
					word = 0xffffffff
				}
				binary.LittleEndian.PutUint32(buf[y*stride+x*4:], word)
			}
		}
		return nil

	default:
		return errors.NotSupportedf("color model bpp=%d", vinfo.Bits_per_pixel)
	}
}

func encode565(v uint8) uint16 {
	if v == codec.White {
		return 0xffff
	}
	return 0
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func ioctl(fd uintptr, cmd uintptr, data uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, cmd, data); errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}
