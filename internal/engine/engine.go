package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/aggregator"
	"github.com/yashrk2006/smart-parking-system/internal/detector"
	"github.com/yashrk2006/smart-parking-system/internal/dispatch"
	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/metrics"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
	"github.com/yashrk2006/smart-parking-system/internal/repository"
	"github.com/yashrk2006/smart-parking-system/pkg/kafka"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
	"github.com/yashrk2006/smart-parking-system/pkg/retry"
)

// zoneLockShards bounds the keyed-mutex table.
const zoneLockShards = 64

// Options carries the optional engine attachments.
type Options struct {
	ZoneStore        repository.ZoneStore // nil disables snapshots
	Mirror           *repository.OccupancyMirror
	FactBridge       *kafka.Producer
	FactTopic        string
	SnapshotInterval time.Duration
}

// Engine wires the pipeline: ingest events pass through the aggregator
// into the registry, emitted facts feed the detector and the dispatcher,
// and side channels (Redis mirror, Kafka fact bridge, snapshots) hang
// off the fact stream. Per-zone processing is serialized so detection
// always sees transitions in acceptance order.
type Engine struct {
	registry   *registry.ZoneRegistry
	aggregator *aggregator.Aggregator
	detector   *detector.Detector
	dispatcher *dispatch.Dispatcher
	opts       Options
	log        *logger.Logger

	zoneLocks [zoneLockShards]sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates an Engine over already-constructed components.
func New(reg *registry.ZoneRegistry, agg *aggregator.Aggregator, det *detector.Detector, disp *dispatch.Dispatcher, opts Options) *Engine {
	return &Engine{
		registry:   reg,
		aggregator: agg,
		detector:   det,
		dispatcher: disp,
		opts:       opts,
		log:        logger.Get(),
	}
}

// Registry exposes the live zone state for the read surface.
func (e *Engine) Registry() *registry.ZoneRegistry { return e.registry }

// Detector exposes violation state for the read surface.
func (e *Engine) Detector() *detector.Detector { return e.detector }

// Dispatcher exposes the fan-out bus for realtime consumers.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// HandleOccupancy runs one raw occupancy event through the pipeline.
// Ingest, state mutation, and violation detection happen atomically per
// zone: two events for the same zone never interleave.
func (e *Engine) HandleOccupancy(ctx context.Context, ev domain.OccupancyEvent) error {
	start := time.Now()

	lock := e.zoneLock(ev.ZoneID)
	lock.Lock()
	defer lock.Unlock()

	fact, err := e.aggregator.Ingest(ctx, ev)
	if err != nil {
		return err
	}
	if fact == nil {
		return nil
	}

	e.detector.OnOccupancyChanged(ctx, *fact)
	e.mirror(ctx, *fact)

	metrics.RecordIngestDuration(ctx, time.Since(start).Seconds())
	return nil
}

// HandleCandidate runs one externally-classified sighting through the
// detector, under the same per-zone serialization as occupancy events.
func (e *Engine) HandleCandidate(ctx context.Context, cand domain.ViolationCandidate) error {
	lock := e.zoneLock(cand.ZoneID)
	lock.Lock()
	defer lock.Unlock()

	_, err := e.detector.OnCandidate(ctx, cand)
	return err
}

// ListViolations returns violations from the detector, newest first.
func (e *Engine) ListViolations(zoneID string, status domain.ViolationStatus) []domain.Violation {
	return e.detector.List(zoneID, status)
}

// GetViolation returns one violation by id.
func (e *Engine) GetViolation(violationID string) (domain.Violation, error) {
	return e.detector.Get(violationID)
}

// ResolveViolation explicitly resolves a pending violation.
func (e *Engine) ResolveViolation(ctx context.Context, violationID, notes string) (domain.Violation, error) {
	return e.detector.Resolve(ctx, violationID, notes)
}

// CancelViolation explicitly cancels a pending violation.
func (e *Engine) CancelViolation(ctx context.Context, violationID, notes string) (domain.Violation, error) {
	return e.detector.Cancel(ctx, violationID, notes)
}

// Start launches the background workers: the periodic snapshot loop and,
// when configured, the Kafka fact bridge.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	if e.opts.ZoneStore != nil && e.opts.SnapshotInterval > 0 {
		e.wg.Add(1)
		go e.snapshotLoop(ctx)
	}

	if e.opts.FactBridge != nil && e.opts.FactTopic != "" {
		e.wg.Add(1)
		go e.bridgeLoop(ctx, e.dispatcher.Subscribe(domain.ChannelOccupancy))
		e.wg.Add(1)
		go e.bridgeLoop(ctx, e.dispatcher.Subscribe(domain.ChannelViolations))
	}

	e.log.Info("Engine started",
		zap.Int("zones", e.registry.Len()),
		zap.Bool("snapshots", e.opts.ZoneStore != nil),
		zap.Bool("fact_bridge", e.opts.FactBridge != nil))
}

// Stop halts the background workers and takes a final snapshot.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.dispatcher.Shutdown()
	e.wg.Wait()

	if e.opts.ZoneStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		e.saveSnapshot(ctx)
	}

	e.log.Info("Engine stopped")
}

// snapshotLoop persists zone state on a fixed cadence.
func (e *Engine) snapshotLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.saveSnapshot(ctx)
		}
	}
}

func (e *Engine) saveSnapshot(ctx context.Context) {
	zones := e.registry.Snapshot()

	err := retry.Do(ctx, &retry.Config{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}, func(ctx context.Context) error {
		return e.opts.ZoneStore.SaveSnapshot(ctx, zones)
	})
	if err != nil {
		e.log.Error("Failed to persist occupancy snapshot", zap.Error(err))
		return
	}

	e.log.Debug("Occupancy snapshot persisted", zap.Int("zones", len(zones)))
}

// bridgeLoop forwards one channel's facts to the Kafka fact topic, keyed
// by zone so downstream consumers keep per-zone order.
func (e *Engine) bridgeLoop(ctx context.Context, sub *dispatch.Subscription) {
	defer e.wg.Done()
	defer sub.Close()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case env, ok := <-sub.C:
			if !ok {
				return
			}
			if err := e.opts.FactBridge.ProduceJSON(ctx, e.opts.FactTopic, env.Key, env, nil); err != nil {
				e.log.Error("Failed to bridge fact to kafka",
					zap.String("channel", env.Channel),
					zap.String("key", env.Key),
					zap.Error(err))
			}
		}
	}
}

// mirror pushes the fact into the Redis occupancy mirror, best effort.
func (e *Engine) mirror(ctx context.Context, fact domain.OccupancyChanged) {
	if e.opts.Mirror == nil {
		return
	}
	if err := e.opts.Mirror.Write(ctx, fact); err != nil {
		e.log.Warn("Failed to mirror occupancy", zap.String("zone_id", fact.ZoneID), zap.Error(err))
	}
}

// zoneLock returns the shard lock for a zone id.
func (e *Engine) zoneLock(zoneID string) *sync.Mutex {
	h := fnv32(zoneID)
	return &e.zoneLocks[h%zoneLockShards]
}

func fnv32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
