// Package types is the closed set of messages travelling over the bus.
// Every kind has its own Topic and a statically typed payload.
package types

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/internal/codec"
)

type Topic uint8

const (
	TopicInvalid Topic = iota
	TopicInfo
	TopicError
	TopicReload
	TopicExit
	TopicTick
	TopicConfigLoad
	TopicConfigSave
	TopicConfigUpdate
	TopicConfigList
	TopicInputsChanged
	TopicKeyPressed
	TopicSerialReceived
	TopicRespond
	TopicShowBitmap
	TopicShowFile
	TopicShowGroup
	TopicShowQR
	TopicShowTerminal
	TopicToggleTerminal
	TopicRefresh
	TopicBlink
	TopicWifiScan
	TopicWifiScanResult
	TopicWifiConnect
	TopicWifiConnectResult
	TopicWifiGet
	TopicWifiPost
	TopicWifiResult
	topicCount
)

var topicNames = [topicCount]string{
	"invalid",
	"info",
	"error",
	"reload",
	"exit",
	"tick",
	"config_load",
	"config_save",
	"config_update",
	"config_list",
	"inputs_changed",
	"key_pressed",
	"serial_received",
	"respond",
	"show_bitmap",
	"show_file",
	"show_group",
	"show_qr",
	"show_terminal",
	"toggle_terminal",
	"refresh",
	"blink",
	"wifi_scan",
	"wifi_scan_result",
	"wifi_connect",
	"wifi_connect_result",
	"wifi_get",
	"wifi_post",
	"wifi_result",
}

func (t Topic) String() string {
	if t < topicCount {
		return topicNames[t]
	}
	return fmt.Sprintf("Topic(%d)", uint8(t))
}

func (t Topic) Valid() bool { return t > TopicInvalid && t < topicCount }

// Message is implemented only by types in this package.
type Message interface {
	Topic() Topic
	String() string
}

type Info struct{ Text string }
type Error struct{ Text string }
type Reload struct{}
type Exit struct{}

// Tick is appended by scheduler after all queued messages of tick N.
type Tick struct{ N uint64 }

type ConfigLoad struct{}
type ConfigSave struct{}

// ConfigUpdate carries raw `key=value key2=value2` text.
type ConfigUpdate struct{ Assignments string }
type ConfigList struct{ Source string }

// InputsChanged holds only inputs whose value changed since previous tick.
type InputsChanged struct{ Changes map[string]bool }

func (m InputsChanged) Released(name string) bool {
	v, ok := m.Changes[name]
	return ok && !v
}

func (m InputsChanged) Pressed(name string) bool { return m.Changes[name] }

type Key uint16

type KeyPressed struct {
	Source string
	Key    Key
}

// Command is one parsed protocol line.
type Command struct {
	Name    string
	Meta    string
	Payload string
	Source  string
}

func (c Command) String() string {
	payload := c.Payload
	if len(payload) > 32 {
		payload = fmt.Sprintf("%s...(%d)", payload[:32], len(payload))
	}
	return fmt.Sprintf("%s:%s:%s", c.Name, c.Meta, payload)
}

type SerialReceived struct{ Command Command }

// Respond is written verbatim to Source channel.
type Respond struct {
	Source  string
	Payload []byte
}

type ShowBitmap struct{ Bitmap *codec.Bitmap }
type ShowFile struct{ Name string }
type ShowGroup struct{ Group display.Group }
type ShowQR struct{ Text string }
type ShowTerminal struct{}
type ToggleTerminal struct{}
type Refresh struct{}
type Blink struct{}

type WifiNetwork struct {
	SSID string
	MAC  string
	RSSI int
}

type WifiScan struct{}
type WifiScanResult struct{ Networks []WifiNetwork }
type WifiConnect struct{ SSID, Password string }
type WifiConnectResult struct {
	SSID string
	OK   bool
}

type HTTPRequest struct {
	Host        string // Host header
	Addr        string // ip:port to dial
	Path        string
	ContentType string
	Body        []byte
}

type HTTPResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

type WifiGet struct{ Request HTTPRequest }
type WifiPost struct{ Request HTTPRequest }
type WifiResult struct {
	Method   string
	Request  HTTPRequest
	Response HTTPResponse
	Err      error
}

func (Info) Topic() Topic              { return TopicInfo }
func (Error) Topic() Topic             { return TopicError }
func (Reload) Topic() Topic            { return TopicReload }
func (Exit) Topic() Topic              { return TopicExit }
func (Tick) Topic() Topic              { return TopicTick }
func (ConfigLoad) Topic() Topic        { return TopicConfigLoad }
func (ConfigSave) Topic() Topic        { return TopicConfigSave }
func (ConfigUpdate) Topic() Topic      { return TopicConfigUpdate }
func (ConfigList) Topic() Topic        { return TopicConfigList }
func (InputsChanged) Topic() Topic     { return TopicInputsChanged }
func (KeyPressed) Topic() Topic        { return TopicKeyPressed }
func (SerialReceived) Topic() Topic    { return TopicSerialReceived }
func (Respond) Topic() Topic           { return TopicRespond }
func (ShowBitmap) Topic() Topic        { return TopicShowBitmap }
func (ShowFile) Topic() Topic          { return TopicShowFile }
func (ShowGroup) Topic() Topic         { return TopicShowGroup }
func (ShowQR) Topic() Topic            { return TopicShowQR }
func (ShowTerminal) Topic() Topic      { return TopicShowTerminal }
func (ToggleTerminal) Topic() Topic    { return TopicToggleTerminal }
func (Refresh) Topic() Topic           { return TopicRefresh }
func (Blink) Topic() Topic             { return TopicBlink }
func (WifiScan) Topic() Topic          { return TopicWifiScan }
func (WifiScanResult) Topic() Topic    { return TopicWifiScanResult }
func (WifiConnect) Topic() Topic       { return TopicWifiConnect }
func (WifiConnectResult) Topic() Topic { return TopicWifiConnectResult }
func (WifiGet) Topic() Topic           { return TopicWifiGet }
func (WifiPost) Topic() Topic          { return TopicWifiPost }
func (WifiResult) Topic() Topic        { return TopicWifiResult }

func (m Info) String() string           { return "info: " + m.Text }
func (m Error) String() string          { return "error: " + m.Text }
func (Reload) String() string           { return "reload" }
func (Exit) String() string             { return "exit" }
func (m Tick) String() string           { return fmt.Sprintf("tick n=%d", m.N) }
func (ConfigLoad) String() string       { return "config_load" }
func (ConfigSave) String() string       { return "config_save" }
func (m ConfigList) String() string     { return "config_list source=" + m.Source }
func (m SerialReceived) String() string { return "serial_received " + m.Command.String() }
func (m ShowFile) String() string       { return "show_file " + m.Name }
func (m ShowGroup) String() string      { return fmt.Sprintf("show_group items=%d", len(m.Group.Items)) }
func (m ShowQR) String() string         { return fmt.Sprintf("show_qr %q", m.Text) }
func (ShowTerminal) String() string     { return "show_terminal" }
func (ToggleTerminal) String() string   { return "toggle_terminal" }
func (Refresh) String() string          { return "refresh" }
func (Blink) String() string            { return "blink" }
func (WifiScan) String() string         { return "wifi_scan" }
func (m WifiConnect) String() string    { return "wifi_connect ssid=" + m.SSID }
func (m WifiGet) String() string        { return "wifi_get " + m.Request.Addr + m.Request.Path }
func (m WifiPost) String() string       { return "wifi_post " + m.Request.Addr + m.Request.Path }

func (m ConfigUpdate) String() string {
	return fmt.Sprintf("config_update %q", m.Assignments)
}

func (m InputsChanged) String() string {
	parts := make([]string, 0, len(m.Changes))
	for k, v := range m.Changes {
		parts = append(parts, fmt.Sprintf("%s=%t", k, v))
	}
	sort.Strings(parts)
	return "inputs_changed " + strings.Join(parts, " ")
}

func (m KeyPressed) String() string {
	return fmt.Sprintf("key_pressed source=%s key=%#02x", m.Source, uint16(m.Key))
}

func (m Respond) String() string {
	return fmt.Sprintf("respond source=%s len=%d", m.Source, len(m.Payload))
}

func (m ShowBitmap) String() string {
	if m.Bitmap == nil {
		return "show_bitmap nil"
	}
	return fmt.Sprintf("show_bitmap %dx%d", m.Bitmap.Width, m.Bitmap.Height)
}

func (m WifiScanResult) String() string {
	return fmt.Sprintf("wifi_scan_result networks=%d", len(m.Networks))
}

func (m WifiConnectResult) String() string {
	return fmt.Sprintf("wifi_connect_result ssid=%s ok=%t", m.SSID, m.OK)
}

func (m WifiResult) String() string {
	if m.Err != nil {
		return fmt.Sprintf("wifi_result %s err=%v", m.Method, m.Err)
	}
	return fmt.Sprintf("wifi_result %s status=%d len=%d", m.Method, m.Response.Status, len(m.Response.Body))
}
