package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/rclights/internal/lights"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages held while disconnected
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    logrus.FieldLogger
	now    func() time.Time

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // set after the first successful connect
}

// NewRealPublisher creates a publisher for the given broker. A broker that is
// unreachable at startup is not fatal: the client keeps retrying in the
// background and messages are buffered meanwhile.
func NewRealPublisher(o Options, log logrus.FieldLogger) (*RealPublisher, error) {
	p := &RealPublisher{
		topic:  Topic,
		log:    log,
		now:    time.Now,
		buffer: newRingBuffer(o.BufferSize, log),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     EventShutdown,
		Reason:    ReasonDisconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warnf("mqtt: %s not reachable yet, buffering until connected", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays buffered messages. Reconnects also announce themselves.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if reconnect {
		p.log.Info("mqtt: reconnected")
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		if err == nil {
			pending = append([]bufferedMsg{{topic: TopicSystem, payload: payload, qos: 1}}, pending...)
		}
	}

	if len(pending) > 0 {
		p.log.Infof("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			p.log.Warnf("mqtt: replay to %s timed out", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			p.log.Warnf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// Publish sends a light transition to the MQTT broker.
func (p *RealPublisher) Publish(event lights.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 so lifecycle events survive a flaky link
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
