package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// backlogCapacity bounds the messages held while disconnected.
const backlogCapacity = 256

// RealPublisher publishes to an actual MQTT broker. While the connection
// is down, messages are held in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	backlog *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{
		backlog: newRingBuffer(backlogCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("pulse-meter").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.drainBacklog() })

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p.client = client
	return p, nil
}

// PublishReading sends a heart-rate reading to the broker at QoS 0
// (at-most-once): readings repeat twice a second, losing one is harmless.
func (p *RealPublisher) PublishReading(r Reading) error {
	payload, err := FormatReading(r)
	if err != nil {
		return fmt.Errorf("format reading: %w", err)
	}
	return p.publish(TopicReadings, payload, 0, false)
}

// PublishSystem sends a lifecycle event at QoS 1 (at-least-once) — the
// final averaged result and shutdown events must not be lost.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, payload, 1, event.Retained)
}

func (p *RealPublisher) publish(topic string, payload []byte, qos byte, retained bool) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.backlog.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		n := p.backlog.len()
		p.mu.Unlock()
		log.Printf("mqtt: disconnected, buffered message for %s (%d queued)", topic, n)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// drainBacklog replays messages buffered during a disconnection. Runs on
// paho's connect callback.
func (p *RealPublisher) drainBacklog() {
	p.mu.Lock()
	msgs := p.backlog.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	log.Printf("mqtt: reconnected, replaying %d buffered messages", len(msgs))
	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: replay to %s timed out", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: replay to %s failed: %v", m.topic, err)
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
