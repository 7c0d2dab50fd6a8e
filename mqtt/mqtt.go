// Package mqtt connects a Device to an MQTT broker: inbound messages are
// passed to Device.Handle and the device state is published back.
package mqtt

import (
	"time"

	"github.com/drichelson/motelight/animation"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("pkg", "mqtt")

const qos = 0

type Config struct {
	Broker    string
	Username  string
	Password  string
	ClientID  string
	Subscribe string
	KeepAlive time.Duration
	Reconnect time.Duration
	// Startup messages are published once after each successful
	// subscription.
	Startup []animation.Message
}

// Bridge relays messages between a broker and a Device.
type Bridge struct {
	device    animation.Device
	subscribe string
	startup   []animation.Message
	client    paho.Client
	publish   func(animation.Message)
}

func New(cfg Config, device animation.Device) *Bridge {
	b := &Bridge{device: device, subscribe: cfg.Subscribe, startup: cfg.Startup}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.Reconnect).
		SetMaxReconnectInterval(cfg.Reconnect).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("connection lost")
		})

	b.client = paho.NewClient(opts)
	b.publish = b.publishToBroker
	return b
}

// Connect starts the client and waits up to timeout for the first
// connection. With connect retry enabled the client keeps trying in the
// background after a timeout.
func (b *Bridge) Connect(timeout time.Duration) error {
	t := b.client.Connect()
	if !t.WaitTimeout(timeout) {
		return errors.Errorf("mqtt: no connection after %v", timeout)
	}
	return errors.Wrap(t.Error(), "mqtt: connect")
}

func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

func (b *Bridge) onConnect(c paho.Client) {
	log.WithField("topic", b.subscribe).Info("connected, subscribing")
	t := c.Subscribe(b.subscribe, qos, func(_ paho.Client, m paho.Message) {
		b.Receive(animation.Message{Topic: m.Topic(), Payload: m.Payload()})
	})
	go func() {
		if t.Wait(); t.Error() != nil {
			log.WithError(t.Error()).Error("subscribe failed")
			return
		}
		b.announce()
	}()
	b.PublishState()
}

func (b *Bridge) announce() {
	for _, m := range b.startup {
		b.send(m)
	}
}

// Receive hands one inbound message to the device and publishes whatever
// it returns.
func (b *Bridge) Receive(msg animation.Message) {
	log.WithFields(logrus.Fields{
		"topic": msg.Topic,
		"value": string(msg.Payload),
	}).Debug("message")

	for _, out := range b.device.Handle(msg) {
		b.send(out)
	}
}

func (b *Bridge) PublishState() {
	for _, m := range b.device.State() {
		b.send(m)
	}
}

func (b *Bridge) send(m animation.Message) {
	b.publish(m)
}

// publishToBroker does not wait for delivery.
func (b *Bridge) publishToBroker(m animation.Message) {
	t := b.client.Publish(m.Topic, qos, m.Retained, m.Payload)
	go func() {
		if t.Wait(); t.Error() != nil {
			log.WithError(t.Error()).WithField("topic", m.Topic).Warn("publish failed")
		}
	}()
}
