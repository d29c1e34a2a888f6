package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/pkg/config"
	"github.com/yashrk2006/smart-parking-system/pkg/kafka"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
)

// KafkaSource consumes the production sensor and classification feeds.
// Occupancy events and violation candidates arrive on separate topics;
// per-zone ordering relies on producers keying records by zone id.
type KafkaSource struct {
	consumer *kafka.Consumer
	handler  Handler
	cfg      config.KafkaConfig
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// zapKafkaLogger adapts the structured logger to the consumer's surface.
type zapKafkaLogger struct {
	log *logger.Logger
}

func (l zapKafkaLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, zap.Any("details", keysAndValues))
}

// NewKafkaSource connects a group consumer over both ingest topics.
func NewKafkaSource(ctx context.Context, cfg config.KafkaConfig, handler Handler) (*KafkaSource, error) {
	log := logger.Get()

	consumer, err := kafka.NewConsumer(ctx, &kafka.ConsumerConfig{
		Brokers:  cfg.Brokers,
		Group:    cfg.ConsumerGroup,
		Topics:   []string{cfg.OccupancyTopic, cfg.CandidateTopic},
		ClientID: cfg.ClientID,
		Logger:   zapKafkaLogger{log: log},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest consumer: %w", err)
	}

	return &KafkaSource{
		consumer: consumer,
		handler:  handler,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Start launches the poll loop.
func (s *KafkaSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Run(runCtx, s.dispatch); err != nil && runCtx.Err() == nil {
			s.log.Error("Ingest consumer stopped unexpectedly", zap.Error(err))
		}
	}()

	s.log.Info("Kafka ingest source started",
		zap.Strings("brokers", s.cfg.Brokers),
		zap.String("occupancy_topic", s.cfg.OccupancyTopic),
		zap.String("candidate_topic", s.cfg.CandidateTopic))
	return nil
}

// Stop cancels the poll loop, waits for it, and closes the consumer.
func (s *KafkaSource) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.consumer.Close()
	s.log.Info("Kafka ingest source stopped")
}

// dispatch decodes one record by topic. Undecodable payloads are dropped
// with a log line; a poisoned record must never wedge the feed.
func (s *KafkaSource) dispatch(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case s.cfg.OccupancyTopic:
		var ev domain.OccupancyEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			s.log.Warn("Dropping undecodable occupancy record",
				zap.String("topic", msg.Topic), zap.Error(err))
			return nil
		}
		if err := s.handler.HandleOccupancy(ctx, ev); err != nil {
			s.log.Warn("Occupancy event rejected",
				zap.String("zone_id", ev.ZoneID), zap.Error(err))
		}

	case s.cfg.CandidateTopic:
		var cand domain.ViolationCandidate
		if err := json.Unmarshal(msg.Value, &cand); err != nil {
			s.log.Warn("Dropping undecodable candidate record",
				zap.String("topic", msg.Topic), zap.Error(err))
			return nil
		}
		if err := s.handler.HandleCandidate(ctx, cand); err != nil {
			s.log.Warn("Violation candidate rejected",
				zap.String("zone_id", cand.ZoneID), zap.Error(err))
		}

	default:
		s.log.Warn("Record from unexpected topic", zap.String("topic", msg.Topic))
	}

	return nil
}
