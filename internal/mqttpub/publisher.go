// Package mqttpub mirrors persisted samples and snapshots to an MQTT broker.
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/teensylog/internal/reading"
)

// DefaultTimeout bounds connect and publish acknowledgements.
const DefaultTimeout = 2 * time.Second

// quiesce is how long Disconnect waits for in-flight work, in milliseconds.
const quiesce = 250

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

// client is the subset of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends JSON payloads to a single topic with QoS 0.
type Publisher struct {
	client  client
	topic   string
	timeout time.Duration
}

// SamplePayload is the JSON body published for each millis sample.
type SamplePayload struct {
	CapturedAt string `json:"captured_at"`
	Millis     int64  `json:"millis"`
}

// SnapshotPayload is the JSON body published for each weight snapshot.
type SnapshotPayload struct {
	CapturedAt    string  `json:"captured_at"`
	ReadingIndex  int64   `json:"reading_index"`
	CurrentWeight float64 `json:"current_weight"`
	AvgWeight     float64 `json:"avg_weight"`
}

// Dial connects to broker and returns a Publisher for topic.
func Dial(broker, clientID, topic string, timeout time.Duration) (*Publisher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)

	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: %w", broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return newPublisher(c, topic, timeout), nil
}

func newPublisher(c client, topic string, timeout time.Duration) *Publisher {
	return &Publisher{client: c, topic: topic, timeout: timeout}
}

// Topic returns the topic messages are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishSample publishes a millis sample.
func (p *Publisher) PublishSample(s reading.RawSample) error {
	return p.publish(SamplePayload{
		CapturedAt: reading.FormatTimestamp(s.CapturedAt),
		Millis:     s.Millis,
	})
}

// PublishSnapshot publishes a weight snapshot.
func (p *Publisher) PublishSnapshot(s reading.Snapshot) error {
	return p.publish(SnapshotPayload{
		CapturedAt:    reading.FormatTimestamp(s.CapturedAt),
		ReadingIndex:  s.Reading.ReadingIndex,
		CurrentWeight: s.Reading.CurrentWeight,
		AvgWeight:     s.Reading.AvgWeight,
	})
}

func (p *Publisher) publish(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: %w", p.topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(quiesce)
	return nil
}
