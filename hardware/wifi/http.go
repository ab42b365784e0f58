package wifi

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/zeos/internal/types"
)

// Do sends one HTTP request through module TCP link.
func (m *Module) Do(method string, r types.HTTPRequest) (types.HTTPResponse, error) {
	req, payload, err := buildRequest(method, r)
	if err != nil {
		return types.HTTPResponse{}, err
	}
	host, port, err := net.SplitHostPort(r.Addr)
	if err != nil {
		return types.HTTPResponse{}, errors.Annotatef(err, "wifi http addr=%s", r.Addr)
	}

	resp, err := m.command("AT+CIPSTART="+quote("TCP")+","+quote(host)+","+port, termOK, m.Timeout)
	if err != nil {
		return types.HTTPResponse{}, errors.Annotatef(err, "wifi tcp connect addr=%s", r.Addr)
	}
	if !strings.Contains(resp, "OK") && !strings.Contains(resp, "ALREADY CONNECTED") {
		return types.HTTPResponse{}, errors.Errorf("wifi tcp connect addr=%s response=%q", r.Addr, strings.TrimSpace(resp))
	}
	defer func() {
		if _, cerr := m.command("AT+CIPCLOSE", termOK, m.Timeout); cerr != nil {
			m.Log.Debugf("wifi tcp close err=%v", cerr)
		}
	}()

	if _, err = m.command("AT+CIPSEND="+strconv.Itoa(len(payload)), termPrompt, m.Timeout); err != nil {
		return types.HTTPResponse{}, errors.Annotate(err, "wifi tcp send")
	}
	if _, err = m.rw.Write(payload); err != nil {
		return types.HTTPResponse{}, errors.Annotate(err, "wifi tcp send payload")
	}
	raw, err := m.readUntil(termClosed, 2*m.Timeout)
	if err != nil && !errors.IsTimeout(err) {
		return types.HTTPResponse{}, errors.Annotate(err, "wifi tcp receive")
	}
	data := unframe(raw)
	if len(data) == 0 {
		return types.HTTPResponse{}, errors.Errorf("wifi http no data addr=%s response=%q", r.Addr, raw)
	}
	return parseResponse(data, req)
}

func buildRequest(method string, r types.HTTPRequest) (*http.Request, []byte, error) {
	path := r.Path
	if path == "" {
		path = "/"
	}
	host := r.Host
	if host == "" {
		host = r.Addr
	}
	req, err := http.NewRequest(method, "http://"+host+path, bytes.NewReader(r.Body))
	if err != nil {
		return nil, nil, errors.Annotatef(err, "wifi http request method=%s path=%s", method, path)
	}
	req.Close = true
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "*/*")
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	buf := bytes.NewBuffer(nil)
	if err = req.Write(buf); err != nil {
		return nil, nil, errors.Annotate(err, "wifi http request encode")
	}
	return req, buf.Bytes(), nil
}

// unframe concatenates `+IPD,<len>:<data>` chunks.
func unframe(raw string) []byte {
	const marker = "+IPD,"
	out := make([]byte, 0, len(raw))
	for {
		idx := strings.Index(raw, marker)
		if idx < 0 {
			return out
		}
		raw = raw[idx+len(marker):]
		colon := strings.IndexByte(raw, ':')
		if colon < 0 {
			return out
		}
		n, err := strconv.Atoi(raw[:colon])
		raw = raw[colon+1:]
		if err != nil || n > len(raw) {
			n = len(raw)
		}
		out = append(out, raw[:n]...)
		raw = raw[n:]
	}
}

func parseResponse(data []byte, req *http.Request) (types.HTTPResponse, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
	if err != nil {
		return types.HTTPResponse{}, errors.Annotate(err, "wifi http response")
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return types.HTTPResponse{}, errors.Annotatef(err, "wifi http body status=%d", resp.StatusCode)
	}
	return types.HTTPResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
