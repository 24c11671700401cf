package link

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/feedflow/pkg/command"
	"github.com/itohio/feedflow/pkg/config"
)

const disconnectQuiesceMs = 250

var (
	// ErrNotConnected is returned by Send while the broker session is down.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrPublishTimeout is returned by Send when the broker did not take the
	// frame within the publish timeout.
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// MQTT is the wireless command and telemetry link. A broker session counts as
// an attached peer: connecting and losing the connection are pushed to the
// command queue like any other event, so the control loop is the only place
// that tracks attachment.
type MQTT struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	queue  *command.Queue

	attached atomic.Bool // a connect event was pushed and not yet undone
}

var _ command.Replier = (*MQTT)(nil)

// NewMQTT creates a link for the configured broker. Nothing is dialed until Connect.
func NewMQTT(cfg config.MQTTConfig, queue *command.Queue) *MQTT {
	m := &MQTT{cfg: cfg, queue: queue}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)
	m.client = mqtt.NewClient(opts)

	return m
}

func newMQTTWithClient(cfg config.MQTTConfig, queue *command.Queue, client mqtt.Client) *MQTT {
	return &MQTT{cfg: cfg, client: client, queue: queue}
}

// Name returns the link name.
func (m *MQTT) Name() string {
	return "mqtt"
}

// Connect dials the broker and waits at most the connect timeout. The client
// keeps retrying in the background, so an unreachable broker is not an error;
// the link attaches whenever the session comes up.
func (m *MQTT) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		log.Printf("mqtt: %s not reachable yet, retrying in the background", m.cfg.Broker)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", m.cfg.Broker, err)
	}
	return nil
}

// Close disconnects from the broker, or stops retrying. A deliberate
// disconnect does not fire the connection lost handler, so the detach is
// pushed here when the link was attached.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(disconnectQuiesceMs)
	}
	m.detach()
	return nil
}

// Send publishes a frame on the data topic. It never holds the caller longer
// than the publish timeout; frames are dropped while the session is down.
func (m *MQTT) Send(msg string) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := m.client.Publish(m.cfg.DataTopic, m.cfg.QoS, false, msg)
	if !token.WaitTimeout(m.cfg.PublishTimeout) {
		return fmt.Errorf("%w after %s on %s", ErrPublishTimeout, m.cfg.PublishTimeout, m.cfg.DataTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", m.cfg.DataTopic, err)
	}
	return nil
}

// Reply publishes a command outcome on the data topic.
func (m *MQTT) Reply(msg string) error {
	return m.Send(msg)
}

func (m *MQTT) onConnect(c mqtt.Client) {
	log.Printf("mqtt: connected to %s", m.cfg.Broker)

	token := c.Subscribe(m.cfg.CommandTopic, m.cfg.QoS, m.onMessage)
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		log.Printf("mqtt: subscribe to %s timed out", m.cfg.CommandTopic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: failed to subscribe to %s: %v", m.cfg.CommandTopic, err)
		return
	}

	if m.attached.CompareAndSwap(false, true) {
		m.queue.Push(command.Event{Kind: command.EventConnect, Source: m.Name()})
	}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	m.detach()
}

// detach pushes a disconnect only for a connect this link pushed.
func (m *MQTT) detach() {
	if m.attached.CompareAndSwap(true, false) {
		m.queue.Push(command.Event{Kind: command.EventDisconnect, Source: m.Name()})
	}
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m.queue.Push(command.Event{
		Kind:   command.EventLine,
		Source: m.Name(),
		Line:   string(msg.Payload()),
		Reply:  m,
	})
}
