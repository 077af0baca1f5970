// Package mqtt publishes export batches to a broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aevon-lab/project-tpms/internal/core/storage"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce        = 1
	defaultPublishTimeout = 5 * time.Second
	defaultTopic          = "tpms/exports"
)

// Options configures an MQTT sink. Broker is a URL such as
// "tcp://localhost:1883".
type Options struct {
	Target         string
	Broker         string
	ClientID       string
	Topic          string
	PublishTimeout time.Duration
}

// publisher is the part of paho.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

type Sink struct {
	client  publisher
	topic   string
	timeout time.Duration
}

// Open connects to the broker. It waits for the first connection and
// honors ctx while doing so.
func Open(ctx context.Context, opts Options) (*Sink, error) {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "tpms-" + opts.Target
	}

	co := paho.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(clientID)
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	co.SetMaxReconnectInterval(60 * time.Second)
	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)
	co.SetOnConnectHandler(func(_ paho.Client) {
		slog.Info("[MQTT] Connected", "broker", opts.Broker, "client_id", clientID)
	})
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("[MQTT] Connection lost", "broker", opts.Broker, "error", err)
	})

	client := paho.NewClient(co)
	token := client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			client.Disconnect(0)
			return nil, fmt.Errorf("mqtt connect: %w", ctx.Err())
		default:
		}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}

	return newSink(client, opts), nil
}

func newSink(client publisher, opts Options) *Sink {
	topic := strings.TrimSuffix(opts.Topic, "/")
	if topic == "" {
		topic = defaultTopic
	}
	timeout := opts.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Sink{client: client, topic: topic, timeout: timeout}
}

// TopicFor returns the topic a batch for target is published to.
func (s *Sink) TopicFor(target string) string {
	return s.topic + "/" + target
}

// Write implements storage.Sink. The whole session document is one
// message.
func (s *Sink) Write(ctx context.Context, batch storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(batch.Session())
	if err != nil {
		return fmt.Errorf("mqtt export: marshal session: %w", err)
	}

	topic := s.TopicFor(batch.Target)
	token := s.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt export: publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt export: publish to %s: %w", topic, err)
	}

	slog.Debug("[MQTT] Batch published", "topic", topic, "frames", len(batch.Frames))
	return nil
}

// Close implements storage.Sink.
func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}
