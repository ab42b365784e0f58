// Package tele is optional remote telemetry and control over MQTT.
// Outgoing telemetry and command responses are persisted in spq and
// delivered at least once by a background worker. Incoming command lines
// wait in a buffered channel until the kernel drains them on its own tick.
package tele

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/spq"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/internal/config"
	"github.com/temoto/zeos/log2"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	CommandBuffer         = 16
	SourcePrefix          = "tele/"
)

var ErrBusy = errors.New("command queue full")

// Tele contract:
// - Init() fails only with invalid config, network issues ignored
// - Error/Report/Reply block at most for disk write
// - Close() stops background delivery, undelivered messages stay on disk
// - State messages may be lost
type Tele struct { //nolint:maligned
	config    config.TeleConfig
	log       *log2.Log
	transport Transporter
	q         *spq.Queue
	stopCh    chan struct{}
	doneCh    chan struct{}
	commands  chan *Command
	backoff   helpers.Backoff
	now       func() time.Time
	Version   string
}

func New() *Tele {
	return &Tele{}
}
func NewWithTransporter(trans Transporter) *Tele {
	return &Tele{transport: trans}
}

func (self *Tele) Init(ctx context.Context, log *log2.Log, teleConfig config.TeleConfig) error {
	self.config = teleConfig
	self.log = log
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	self.commands = make(chan *Command, CommandBuffer)
	if self.now == nil {
		self.now = time.Now
	}
	if !self.config.Enabled {
		return nil
	}

	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, log, teleConfig, self.onCommandMessage); err != nil {
		return errors.Annotate(err, "tele transport")
	}

	if self.config.PersistPath == "" {
		panic("code error must set tele.PersistPath")
	}
	var err error
	self.q, err = spq.Open(self.config.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}
	self.backoff = helpers.Backoff{
		Min: 100 * time.Millisecond,
		Max: helpers.IntSecondDefault(self.config.NetworkTimeoutSec, DefaultNetworkTimeout),
		K:   2,
	}
	self.stopCh = make(chan struct{})
	self.doneCh = make(chan struct{})

	go self.qworker()
	self.State(State_Boot)
	return nil
}

func (self *Tele) Enabled() bool { return self != nil && self.q != nil }

func (self *Tele) Close() {
	if !self.Enabled() {
		return
	}
	self.State(State_Shutdown)
	close(self.stopCh)
	if err := self.q.Close(); err != nil {
		self.log.Errorf("tele queue close err=%v", err)
	}
	<-self.doneCh
	self.transport.Close()
}

// State is sent directly, not persisted.
func (self *Tele) State(s State) {
	if !self.Enabled() {
		return
	}
	self.log.Debugf("tele state=%s", s)
	self.transport.SendState([]byte{byte(s)})
}

// Error reports err as telemetry. Suitable for log2.SetErrorFunc.
func (self *Tele) Error(err error) {
	if !self.Enabled() || err == nil {
		return
	}
	if e := self.Report(&Telemetry{Error: err.Error()}); e != nil {
		// do not log.Error here, it may loop back
		self.log.Infof("tele report error err=%v", e)
	}
}

func (self *Tele) Report(tm *Telemetry) error {
	if !self.Enabled() {
		return nil
	}
	if tm.ClientId == "" {
		tm.ClientId = self.config.ClientID
	}
	if tm.Time == 0 {
		tm.Time = self.now().UnixNano()
	}
	if tm.BuildVersion == "" {
		tm.BuildVersion = self.Version
	}
	return self.qpushTagProto(qTelemetry, tm)
}

// Reply queues response to remote command id.
func (self *Tele) Reply(id uint32, payload []byte, e error) {
	if !self.Enabled() {
		return
	}
	r := Response{CommandId: id, Payload: payload}
	if e != nil {
		r.Error = helpers.Readable(e)
	}
	if err := self.qpushTagProto(qCommandResponse, &r); err != nil {
		self.log.Infof("CRITICAL tele command=%d response=%s err=%v", id, r.String(), err)
	}
}

// Poll passes every received command to fun without blocking.
func (self *Tele) Poll(fun func(*Command)) int {
	n := 0
	for {
		select {
		case c := <-self.commands:
			fun(c)
			n++
		default:
			return n
		}
	}
}

func Source(id uint32) string { return SourcePrefix + strconv.FormatUint(uint64(id), 10) }

func ParseSource(s string) (uint32, bool) {
	if !strings.HasPrefix(s, SourcePrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(s[len(SourcePrefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

func (self *Tele) onCommandMessage(ctx context.Context, payload []byte) bool {
	cmd := new(Command)
	if err := proto.Unmarshal(payload, cmd); err != nil {
		self.log.Infof("tele command parse raw=%x err=%v", payload, err)
		return true
	}
	self.log.Debugf("tele command raw=%x cmd=%s", payload, cmd.String())

	if cmd.Deadline != 0 && self.now().UnixNano() > cmd.Deadline {
		self.Reply(cmd.Id, nil, fmt.Errorf("deadline"))
		return true
	}
	select {
	case self.commands <- cmd:
	default:
		self.Reply(cmd.Id, nil, ErrBusy)
	}
	return true
}

// denote value type in persistent queue bytes form
const (
	qCommandResponse byte = 1
	qTelemetry       byte = 2
)

func (self *Tele) qworker() {
	defer close(self.doneCh)
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			b := box.Bytes()
			var del bool
			del, err = self.qhandle(b)
			if err != nil {
				self.log.Infof("tele qhandle b=%x err=%v", b, err)
			}
			if del {
				if err = self.q.Delete(box); err != nil {
					self.log.Infof("tele qhandle Delete b=%x err=%v", b, err)
				}
			} else {
				if err = self.q.DeletePush(box); err != nil {
					self.log.Infof("tele qhandle DeletePush b=%x err=%v", b, err)
				}
			}
			if del {
				self.backoff.Reset()
				continue
			}
			select {
			case <-self.stopCh:
				return
			case <-time.After(self.backoff.DelayAfter(false)):
			}

		case spq.ErrClosed:
			select {
			case <-self.stopCh: // success path
			default:
				self.log.Infof("CRITICAL tele spq closed unexpectedly")
			}
			return

		default:
			self.log.Infof("CRITICAL tele spq err=%v", err)
			select {
			case <-self.stopCh:
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (self *Tele) qhandle(b []byte) (bool, error) {
	if len(b) == 0 {
		return true, errors.Errorf("tele spq peek=empty")
	}

	switch b[0] {
	case qCommandResponse:
		var r Response
		if err := proto.Unmarshal(b[1:], &r); err != nil {
			return true, err
		}
		return self.transport.SendCommandResponse(b[1:]), nil

	case qTelemetry:
		var tm Telemetry
		if err := proto.Unmarshal(b[1:], &tm); err != nil {
			return true, err
		}
		return self.transport.SendTelemetry(b[1:]), nil

	default:
		err := errors.Errorf("unknown kind=%d", b[0])
		return true, err
	}
}

func (self *Tele) qpushTagProto(tag byte, pb proto.Message) error {
	buf := proto.NewBuffer(make([]byte, 0, 1024))
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return err
	}
	if err := buf.Marshal(pb); err != nil {
		return err
	}
	return self.q.Push(buf.Bytes())
}
