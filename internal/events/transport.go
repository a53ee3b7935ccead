package events

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"assessment-monitor-service/internal/domain"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const defaultTopicPrefix = "assessment.lifecycle"

// Transport moves lifecycle events over Watermill. Each assessment has its own topic so
// subscribers never see another assessment's events.
type Transport struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	prefix     string
	buffer     int
	logger     *slog.Logger
}

// TransportConfig selects the Watermill backend.
type TransportConfig struct {
	Driver       string // "gochannel" (default) or "kafka"
	KafkaBrokers []string
	TopicPrefix  string
	Buffer       int
	Logger       *slog.Logger
}

// NewTransport builds a Transport for the configured driver.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Driver {
	case "", "gochannel":
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(cfg.Buffer),
		}, wmLogger)
		return newTransport(pubSub, pubSub, cfg, logger), nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka transport: no brokers configured")
		}
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
		}, wmLogger)
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("failed to create Kafka subscriber: %w", err)
		}
		return newTransport(publisher, subscriber, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// NewTransportFrom wraps existing Watermill publisher and subscriber.
func NewTransportFrom(publisher message.Publisher, subscriber message.Subscriber, prefix string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return newTransport(publisher, subscriber, TransportConfig{TopicPrefix: prefix, Buffer: 64}, logger)
}

func newTransport(publisher message.Publisher, subscriber message.Subscriber, cfg TransportConfig, logger *slog.Logger) *Transport {
	return &Transport{
		publisher:  publisher,
		subscriber: subscriber,
		prefix:     cfg.TopicPrefix,
		buffer:     cfg.Buffer,
		logger:     logger,
	}
}

// Topic returns the topic carrying events of one assessment.
func (t *Transport) Topic(assessmentID int64) string {
	return t.prefix + "." + strconv.FormatInt(assessmentID, 10)
}

// Send publishes one event to its assessment topic.
func (t *Transport) Send(ctx context.Context, event domain.LifecycleEvent) error {
	payload, err := Marshal(event)
	if err != nil {
		return err
	}
	h := event.Header()
	id := h.EventID
	if id == "" {
		id = uuid.NewString()
	}

	msg := message.NewMessage(id, payload)
	msg.Metadata.Set("event_type", string(event.Type()))
	msg.Metadata.Set("source", eventSource)
	msg.Metadata.Set("version", eventVersion)
	msg.Metadata.Set("assessment_id", strconv.FormatInt(h.AssessmentID, 10))
	msg.SetContext(ctx)

	if err := t.publisher.Publish(t.Topic(h.AssessmentID), msg); err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}
	return nil
}

// Subscribe streams decoded events of one assessment until ctx is done.
// Undecodable messages are acknowledged and dropped.
func (t *Transport) Subscribe(ctx context.Context, assessmentID int64) (<-chan domain.LifecycleEvent, error) {
	messages, err := t.subscriber.Subscribe(ctx, t.Topic(assessmentID))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", t.Topic(assessmentID), err)
	}

	out := make(chan domain.LifecycleEvent, t.buffer)
	go func() {
		defer close(out)
		for msg := range messages {
			event, err := Unmarshal(msg.Payload)
			msg.Ack()
			if err != nil {
				t.logger.Warn("dropping undecodable lifecycle event",
					"message_uuid", msg.UUID,
					"assessment_id", assessmentID,
					"error", err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes the underlying publisher and subscriber.
func (t *Transport) Close() error {
	pubErr := t.publisher.Close()
	var subErr error
	if any(t.subscriber) != any(t.publisher) {
		subErr = t.subscriber.Close()
	}
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
