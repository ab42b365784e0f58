package tele

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/zeos/helpers"
	"github.com/temoto/zeos/internal/config"
	"github.com/temoto/zeos/log2"
)

func TopicConnect(clientID string) string   { return fmt.Sprintf("%s/c", clientID) }
func TopicState(clientID string) string     { return fmt.Sprintf("%s/w/state", clientID) }
func TopicTelemetry(clientID string) string { return fmt.Sprintf("%s/w/telemetry", clientID) }
func TopicCommand(clientID string) string   { return fmt.Sprintf("%s/r/c", clientID) }
func TopicResponse(clientID string) string  { return fmt.Sprintf("%s/cr", clientID) }

type transportMqtt struct {
	log            *log2.Log
	onCommand      func([]byte) bool
	m              mqtt.Client
	mopt           *mqtt.ClientOptions
	networkTimeout time.Duration

	topicConnect   string
	topicState     string
	topicTelemetry string
	topicCommand   string
	topicResponse  string
}

// mqttLogger satisfies mqtt.Logger
type mqttLogger struct {
	log   *log2.Log
	level log2.Level
}

func (self mqttLogger) Println(v ...interface{}) {
	self.log.Log(self.level, fmt.Sprint(v...))
}
func (self mqttLogger) Printf(format string, v ...interface{}) {
	self.log.Logf(self.level, format, v...)
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig config.TeleConfig, onCommand CommandCallback) error {
	self.log = log
	mqtt.ERROR = mqttLogger{log, log2.LError}
	mqtt.CRITICAL = mqttLogger{log, log2.LError}
	mqtt.WARN = mqttLogger{log, log2.LInfo}

	if _, err := url.ParseRequestURI(teleConfig.MqttBroker); err != nil {
		return errors.Annotatef(err, "tele broker=%s", teleConfig.MqttBroker)
	}
	clientID := teleConfig.ClientID
	credFun := func() (string, string) {
		return clientID, teleConfig.MqttPassword
	}

	self.onCommand = func(payload []byte) bool {
		return onCommand(ctx, payload)
	}
	self.topicConnect = TopicConnect(clientID)
	self.topicState = TopicState(clientID)
	self.topicTelemetry = TopicTelemetry(clientID)
	self.topicCommand = TopicCommand(clientID)
	self.topicResponse = TopicResponse(clientID)
	keepAlive := helpers.IntSecondDefault(teleConfig.KeepaliveSec, 60*time.Second)
	self.networkTimeout = helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, DefaultNetworkTimeout)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetBinaryWill(self.topicConnect, []byte{0x00}, 1, true).
		SetClientID(clientID).
		SetCredentialsProvider(credFun).
		SetDefaultPublishHandler(self.messageHandler).
		SetKeepAlive(keepAlive).
		SetPingTimeout(self.networkTimeout).
		SetConnectTimeout(self.networkTimeout).
		SetOrderMatters(false).
		SetResumeSubs(true).SetCleanSession(false).
		SetAutoReconnect(true).
		SetStore(mqtt.NewFileStore(filepath.Join(teleConfig.PersistPath, "mqtt"))).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(self.mopt)
	// network errors ignored, delivery retries connect
	self.connect()
	return nil
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	if token := self.m.Unsubscribe(self.topicCommand); token.WaitTimeout(self.networkTimeout) && token.Error() != nil {
		self.log.Infof("mqtt unsubscribe err=%v", token.Error())
	}
	self.m.Disconnect(uint(self.networkTimeout / time.Millisecond))
}

func (self *transportMqtt) SendState(payload []byte) bool {
	return self.publish(self.topicState, false, payload)
}

func (self *transportMqtt) SendTelemetry(payload []byte) bool {
	return self.publish(self.topicTelemetry, false, payload)
}

func (self *transportMqtt) SendCommandResponse(payload []byte) bool {
	return self.publish(self.topicResponse, false, payload)
}

func (self *transportMqtt) connect() bool {
	if self.m.IsConnected() {
		return true
	}
	token := self.m.Connect()
	if !token.WaitTimeout(self.networkTimeout) {
		self.log.Infof("mqtt connect timeout")
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Infof("mqtt connect err=%v", err)
		return false
	}
	return true
}

func (self *transportMqtt) publish(topic string, retained bool, payload []byte) bool {
	if !self.connect() {
		return false
	}
	token := self.m.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(self.networkTimeout) {
		self.log.Infof("mqtt publish topic=%s timeout", topic)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Infof("mqtt publish topic=%s err=%v", topic, err)
		return false
	}
	return true
}

func (self *transportMqtt) messageHandler(c mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	if msg.Topic() != self.topicCommand {
		self.log.Infof("mqtt unexpected topic=%s payload=%x", msg.Topic(), payload)
		return
	}
	self.log.Debugf("mqtt income message (%x)", payload)
	self.onCommand(payload)
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("mqtt disconnect err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connect")
	if token := c.Subscribe(self.topicCommand, 1, nil); token.Wait() && token.Error() != nil {
		self.log.Infof("mqtt subscribe err=%v", token.Error())
	} else {
		c.Publish(self.topicConnect, 1, true, []byte{0x01})
	}
}
