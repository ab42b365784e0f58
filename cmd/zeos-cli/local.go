package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/codec"
	"github.com/temoto/zeos/internal/serial"
	_ "golang.org/x/image/bmp"
)

var completions = []string{
	"help::", "reload::", "exit::", "terminal::", "refresh::",
	"config_save::", "config_load::", "config_update::", "config_list::",
	"show:", "store:", "preview::", "list::", "delete:", "blink::", "qr:",
	"!encode", "!preview", "!store",
}

type console struct {
	lines   *serial.LineReader
	size    image.Point
	timeout time.Duration
	w       io.Writer
	out     io.Writer // nil = stdout
}

// local handles !commands. Returns line to send or empty string.
func (c *console) local(line string) (string, error) {
	if !strings.HasPrefix(line, "!") {
		return line, nil
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return "", errors.NotValidf("empty local command")
	}
	switch name, args := fields[0], fields[1:]; name {
	case "encode":
		if len(args) != 1 {
			return "", errors.NotValidf("usage: !encode PATH")
		}
		payload, err := c.encodeFile(args[0])
		if err != nil {
			return "", err
		}
		out := c.out
		if out == nil {
			out = os.Stdout
		}
		fmt.Fprintln(out, payload)
		return "", nil

	case "preview":
		if len(args) != 1 {
			return "", errors.NotValidf("usage: !preview PATH")
		}
		payload, err := c.encodeFile(args[0])
		if err != nil {
			return "", err
		}
		return "preview::" + payload, nil

	case "store":
		if len(args) != 2 {
			return "", errors.NotValidf("usage: !store NAME PATH")
		}
		payload, err := c.encodeFile(args[1])
		if err != nil {
			return "", err
		}
		return "store:" + args[0] + ":" + payload, nil

	default:
		return "", errors.NotSupportedf("local command=%s", name)
	}
}

// encodeFile scales picture to display size.
func (c *console) encodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Annotate(err, "image")
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return "", errors.Annotatef(err, "image decode path=%s", path)
	}
	log.Debugf("image path=%s format=%s size=%v", path, format, img.Bounds().Size())
	b := codec.FromImage(img, c.size.X, c.size.Y, codec.DefaultThreshold)
	return codec.Encode(b)
}
