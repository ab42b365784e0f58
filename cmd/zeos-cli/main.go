// Interactive console for badge serial protocol.
// Lines are sent as is, lines starting with ! are handled locally first.
package main

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
	"github.com/temoto/zeos/helpers/cli"
	"github.com/temoto/zeos/internal/serial"
	"github.com/temoto/zeos/log2"
)

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	device := cmdline.StringP("device", "d", "/dev/ttyACM0", "badge serial device")
	baud := cmdline.Int("baud", 115200, "")
	width := cmdline.Int("width", 296, "display width")
	height := cmdline.Int("height", 128, "display height")
	timeout := cmdline.Duration("timeout", 500*time.Millisecond, "wait for response lines this long after last one")
	debug := cmdline.Bool("debug", false, "")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)
	if *debug {
		log.SetLevel(log2.LDebug)
	}

	port, err := serial.Open(*device, *baud, 20*time.Millisecond)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	c := &console{
		lines:   serial.NewLineReader(port),
		size:    image.Pt(*width, *height),
		timeout: *timeout,
		w:       port,
	}
	cli.MainLoop("zeos", c.exec, cli.Completer(completions...), func() { port.Close() })
	port.Close()
}

func (c *console) exec(line string) {
	wire, err := c.local(line)
	if err != nil {
		log.Error(errors.ErrorStack(err))
		return
	}
	if wire == "" {
		return
	}
	log.Debugf("send %s", serial.Trunc(wire, 80))
	if _, err = c.w.Write([]byte(wire + "\n")); err != nil {
		log.Error(errors.ErrorStack(errors.Annotate(err, "send")))
		return
	}
	for _, resp := range c.collect() {
		fmt.Println(resp)
	}
}

// collect reads response lines until quiet for timeout.
func (c *console) collect() []string {
	var result []string
	last := time.Now()
	for time.Since(last) < c.timeout {
		lines, err := c.lines.Poll()
		if err != nil {
			log.Errorf("receive: %v", err)
		}
		if len(lines) != 0 {
			result = append(result, lines...)
			last = time.Now()
		}
	}
	return result
}
