// Package wifi drives ESP8266 style AT command module attached to UART.
// HTTP is plain text over module TCP link, one request per connection.
package wifi

import (
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/zeos/helpers/atomic_clock"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

const (
	DefaultTimeout = 5 * time.Second
	UserAgent      = "ZeWeb/0.1337.0"
	idle           = 5 * time.Millisecond
)

var (
	termOK     = []string{"\r\nOK\r\n", "\r\nERROR\r\n", "\r\nFAIL\r\n"}
	termPrompt = []string{">", "\r\nERROR\r\n"}
	termClosed = []string{"CLOSED\r\n", "\r\nERROR\r\n"}
)

type Module struct {
	Log     *log2.Log
	Timeout time.Duration

	rw  io.ReadWriter
	buf []byte
}

func New(log *log2.Log, rw io.ReadWriter, timeout time.Duration) *Module {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Module{Log: log, Timeout: timeout, rw: rw, buf: make([]byte, 2048)}
}

// Probe checks that something answers AT.
func (m *Module) Probe() error {
	resp, err := m.command("AT", termOK, m.Timeout)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, "OK") {
		return errors.NotFoundf("wifi module response=%q", resp)
	}
	return nil
}

// Scan returns access points sorted by SSID, strongest first within SSID.
func (m *Module) Scan() ([]types.WifiNetwork, error) {
	resp, err := m.command("AT+CWLAP", termOK, m.Timeout)
	if err != nil {
		return nil, errors.Annotate(err, "wifi scan")
	}
	return parseScan(resp), nil
}

func parseScan(resp string) []types.WifiNetwork {
	resp = strings.NewReplacer("\r", "", `"`, "", "(", "", ")", "").Replace(resp)
	nets := make([]types.WifiNetwork, 0, 8)
	for _, line := range strings.Split(resp, "\n") {
		idx := strings.Index(line, "+CWLAP:")
		if idx < 0 {
			continue
		}
		parts := strings.Split(line[idx+len("+CWLAP:"):], ",")
		if len(parts) < 4 {
			continue
		}
		rssi, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
		nets = append(nets, types.WifiNetwork{SSID: parts[1], MAC: parts[3], RSSI: rssi})
	}
	sort.SliceStable(nets, func(i, j int) bool {
		if nets[i].SSID != nets[j].SSID {
			return nets[i].SSID < nets[j].SSID
		}
		return nets[i].RSSI > nets[j].RSSI
	})
	return nets
}

// Connect joins strongest access point with matching SSID.
func (m *Module) Connect(ssid, password string) error {
	nets, err := m.Scan()
	if err != nil {
		return err
	}
	var found *types.WifiNetwork
	seen := make([]string, 0, len(nets))
	for i := range nets {
		seen = append(seen, nets[i].SSID)
		if found == nil && nets[i].SSID == ssid {
			found = &nets[i]
		}
	}
	if found == nil {
		return errors.NotFoundf("network=%q available=%q", ssid, strings.Join(seen, ","))
	}
	cmd := "AT+CWJAP_CUR=" + quote(found.SSID) + "," + quote(password) + "," + quote(found.MAC)
	resp, err := m.command(cmd, termOK, 3*m.Timeout)
	if err != nil {
		return errors.Annotatef(err, "wifi join ssid=%s", ssid)
	}
	if !strings.Contains(resp, "WIFI CONNECTED") {
		return errors.Errorf("wifi join ssid=%s response=%q", ssid, strings.TrimSpace(resp))
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, ",", `\,`).Replace(s) + `"`
}

func (m *Module) Close() error {
	if c, ok := m.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// command writes line and reads until one of terms or timeout.
func (m *Module) command(line string, terms []string, timeout time.Duration) (string, error) {
	m.Log.Debugf("wifi > %s", line)
	if _, err := io.WriteString(m.rw, line+"\r\n"); err != nil {
		return "", errors.Annotatef(err, "wifi write")
	}
	return m.readUntil(terms, timeout)
}

func (m *Module) readUntil(terms []string, timeout time.Duration) (string, error) {
	deadline := atomic_clock.Deadline(timeout)
	acc := bytes.NewBuffer(nil)
	for {
		n, err := m.rw.Read(m.buf)
		if n > 0 {
			acc.Write(m.buf[:n])
			s := acc.String()
			for _, t := range terms {
				if strings.Contains(s, t) {
					m.Log.Debugf("wifi < %q", s)
					return s, nil
				}
			}
		}
		if err != nil && err != io.EOF {
			return acc.String(), errors.Annotate(err, "wifi read")
		}
		if deadline.Passed() {
			return acc.String(), errors.Timeoutf("wifi response after=%v got=%q", timeout, acc.String())
		}
		if n == 0 {
			time.Sleep(idle)
		}
	}
}
