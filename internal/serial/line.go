package serial

import (
	"bytes"
	"io"

	"github.com/juju/errors"
)

const MaxLine = 256 << 10

// LineReader splits stream into lines with one Read per Poll.
// Underlying reader must bound its wait, Port does.
type LineReader struct {
	r          io.Reader
	buf        []byte
	chunk      []byte
	discarding bool
	Max        int
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, chunk: make([]byte, 4096), Max: MaxLine}
}

// Poll returns complete lines without terminator. Oversize line is dropped
// and reported as *ParseError once, along with lines that did fit.
func (lr *LineReader) Poll() ([]string, error) {
	n, err := lr.r.Read(lr.chunk)
	if n > 0 {
		lr.buf = append(lr.buf, lr.chunk[:n]...)
	}
	if err != nil && err != io.EOF {
		return nil, errors.Annotate(err, "serial read")
	}
	lines, perr := lr.split()
	if err == io.EOF && len(lines) == 0 && perr == nil {
		return nil, io.EOF
	}
	if perr != nil {
		return lines, perr
	}
	return lines, nil
}

func (lr *LineReader) split() ([]string, error) {
	var lines []string
	var perr error
	for {
		i := bytes.IndexByte(lr.buf, '\n')
		if i < 0 {
			break
		}
		line := lr.buf[:i]
		lr.buf = lr.buf[i+1:]
		if lr.discarding {
			lr.discarding = false
			continue
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) > lr.Max {
			perr = &ParseError{Line: Trunc(string(line), 64), Reason: "line too long"}
			continue
		}
		lines = append(lines, string(line))
	}
	if len(lr.buf) > lr.Max {
		if !lr.discarding {
			perr = &ParseError{Line: Trunc(string(lr.buf), 64), Reason: "line too long"}
		}
		lr.discarding = true
		lr.buf = lr.buf[:0]
	}
	if len(lr.buf) == 0 && cap(lr.buf) > 64<<10 {
		lr.buf = nil
	}
	return lines, perr
}

// Buffered is length of incomplete line held.
func (lr *LineReader) Buffered() int { return len(lr.buf) }
