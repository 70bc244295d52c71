package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errPublishTimeout = errors.New("publish timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Unit       int
	BufferSize int // messages kept while disconnected
}

// transport is the part of paho.Client used for publishing.
type transport interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// RealPublisher publishes to an actual MQTT broker. While the broker is
// unreachable, messages are kept in a ring buffer and replayed in order on
// reconnect.
type RealPublisher struct {
	client      paho.Client
	tx          transport
	topic       string
	systemTopic string
	now         func() time.Time

	// sendMu orders direct sends after buffered ones.
	sendMu sync.Mutex

	mu            sync.Mutex
	buf           *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// cannot be reached within the connect timeout, the client keeps retrying in
// the background and messages are buffered meanwhile.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	p := newPublisher(opts)

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.systemTopic, string(WillPayload(time.Now())), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			go p.onConnect()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	client := paho.NewClient(clientOpts)
	p.client = client
	p.tx = client

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(opts Options) *RealPublisher {
	return &RealPublisher{
		topic:       Topic(opts.Unit),
		systemTopic: TopicSystem(opts.Unit),
		now:         time.Now,
		buf:         newRingBuffer(opts.BufferSize),
	}
}

// Publish sends a drawer event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.tx != nil && p.tx.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}

// publish sends msg once everything buffered before it is out. A message
// that cannot be sent is buffered and goes first on the next attempt.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.IsConnected() {
		p.enqueue(msg)
		return nil
	}
	if err := p.flush(); err != nil {
		p.enqueue(msg)
		return err
	}
	if err := p.send(msg); err != nil {
		p.enqueue(msg)
		return err
	}
	return nil
}

// flush sends the buffered messages in order. On failure the unsent rest
// stays buffered. Callers hold sendMu.
func (p *RealPublisher) flush() error {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	log.Printf("mqtt: replaying %d buffered messages", len(pending))
	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay failed, keeping %d messages: %v", len(pending)-i, err)
			p.mu.Lock()
			for _, rest := range pending[i:] {
				p.buf.push(rest)
			}
			p.mu.Unlock()
			return err
		}
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	p.buf.push(msg)
	p.mu.Unlock()
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.tx.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// onConnect announces a reconnect and replays buffered messages in order.
func (p *RealPublisher) onConnect() {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		if err := p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1}); err != nil {
			log.Printf("mqtt: publish reconnect event: %v", err)
		}
	}

	p.flush()
}
