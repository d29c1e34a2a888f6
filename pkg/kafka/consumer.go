package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Logger is the minimal logging surface the consumer needs. Callers pass
// an adapter over their structured logger.
type Logger interface {
	Error(msg string, keysAndValues ...interface{})
}

// NoOpLogger discards all log output
type NoOpLogger struct{}

func (NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Group         string
	Topics        []string
	ClientID      string
	MaxRetries    int
	RetryInterval time.Duration
	Logger        Logger
}

// Message is a consumed Kafka record
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Handler processes one consumed message. Handler errors are logged and
// the record is not redelivered; a bad record must not stop the stream.
type Handler func(ctx context.Context, msg Message) error

// Consumer wraps a franz-go group consumer
type Consumer struct {
	client *kgo.Client
	log    Logger
}

// NewConsumer creates a Kafka group consumer for the given topics
func NewConsumer(ctx context.Context, cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topics...),
	}
	if cfg.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.Group))
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = NoOpLogger{}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(interval)
		}
		if lastErr = client.Ping(ctx); lastErr == nil {
			return &Consumer{client: client, log: log}, nil
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to kafka after %d attempts: %w", maxRetries+1, lastErr)
}

// Run polls until the context is cancelled, invoking handler per record.
// Records are processed sequentially, preserving per-partition order.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error("kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			headers := make(map[string]string, len(record.Headers))
			for _, h := range record.Headers {
				headers[h.Key] = string(h.Value)
			}
			if err := handler(ctx, Message{
				Topic:   record.Topic,
				Key:     record.Key,
				Value:   record.Value,
				Headers: headers,
			}); err != nil {
				c.log.Error("kafka handler error", "topic", record.Topic, "error", err)
			}
		})
	}
}

// Close closes the consumer
func (c *Consumer) Close() {
	c.client.Close()
}
