// Package kafka provides the producer and consumer used to stream crawled
// documents into the indexer and to announce freshly published indexes to
// searchers. Both are thin wrappers over segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message. A non-nil
// error leaves the message uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ConsumerOption tweaks the reader configuration.
type ConsumerOption func(*consumerSettings)

type consumerSettings struct {
	reader kafka.ReaderConfig
	commit bool
}

// FromBeginning makes a consumer group without committed offsets start at
// the oldest retained message instead of the newest.
func FromBeginning() ConsumerOption {
	return func(s *consumerSettings) { s.reader.StartOffset = kafka.FirstOffset }
}

// WithGroup overrides the configured consumer group.
func WithGroup(group string) ConsumerOption {
	return func(s *consumerSettings) { s.reader.GroupID = group }
}

// Replay reads the whole retained topic on every run. Each consumer joins a
// fresh group named after prefix and never commits, so no run can resume
// from offsets left by an earlier one.
func Replay(prefix string) ConsumerOption {
	return func(s *consumerSettings) {
		s.reader.GroupID = prefix + "-" + uuid.NewString()
		s.reader.StartOffset = kafka.FirstOffset
		s.commit = false
	}
}

// messageReader is the part of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  messageReader
	group   string
	commit  bool
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	return newConsumer(cfg, topic, handler, func(rc kafka.ReaderConfig) messageReader {
		return kafka.NewReader(rc)
	}, opts...)
}

func newConsumer(
	cfg config.KafkaConfig,
	topic string,
	handler MessageHandler,
	open func(kafka.ReaderConfig) messageReader,
	opts ...ConsumerOption,
) *Consumer {
	s := consumerSettings{
		reader: kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		},
		commit: true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Consumer{
		reader:  open(s.reader),
		group:   s.reader.GroupID,
		commit:  s.commit,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", s.reader.GroupID),
		handler: handler,
	}
}

// Group returns the consumer group the reader joined.
func (c *Consumer) Group() string { return c.group }

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. The reader is closed on return.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if !c.commit {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
