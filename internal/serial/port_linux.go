package serial

import (
	"os"
	"time"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

var bauds = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// Port is raw mode tty. Read waits at most Timeout and returns 0, nil when nothing arrived.
type Port struct {
	f       *os.File
	fd      int
	Timeout time.Duration
}

func Open(path string, baud int, timeout time.Duration) (*Port, error) {
	speed, ok := bauds[baud]
	if !ok {
		return nil, errors.NotSupportedf("baud=%d", baud)
	}
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, errors.Annotatef(err, "serial open path=%s", path)
	}
	p := &Port{f: f, fd: int(f.Fd()), Timeout: timeout}
	if err = p.reset(speed); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "serial termios path=%s", path)
	}
	return p, nil
}

func (p *Port) reset(speed uint32) error {
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return err
	}
	// cfmakeraw
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(p.fd, unix.TCSETSF, t)
}

func (p *Port) Read(b []byte) (int, error) {
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, int(p.Timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Annotate(err, "serial poll")
		}
		break
	}
	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 && fds[0].Revents&unix.POLLIN == 0 {
		return 0, errors.Errorf("serial hangup")
	}
	if fds[0].Revents&unix.POLLIN == 0 {
		return 0, nil
	}
	n, err := unix.Read(p.fd, b)
	if err == unix.EAGAIN || err == unix.EINTR {
		return 0, nil
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := unix.Write(p.fd, b[total:])
		if err == unix.EAGAIN || err == unix.EINTR {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			return total, errors.Annotate(err, "serial write")
		}
		total += n
	}
	return total, nil
}

func (p *Port) Close() error { return p.f.Close() }
