package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
)

// Simulator is a stand-in ingest source that generates plausible sensor
// traffic against the registered zones. With a fixed seed the emitted
// event stream is deterministic.
type Simulator struct {
	registry *registry.ZoneRegistry
	handler  Handler
	interval time.Duration
	log      *logger.Logger

	rng   *rand.Rand
	rngMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSimulator creates a Simulator. seed 0 selects a time-based seed.
func NewSimulator(reg *registry.ZoneRegistry, handler Handler, interval time.Duration, seed int64) *Simulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		registry: reg,
		handler:  handler,
		interval: interval,
		log:      logger.Get(),
		rng:      rand.New(rand.NewSource(seed)),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the tick loop.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.log.Info("Simulator started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the tick loop and waits for it to exit.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Simulator stopped")
}

func (s *Simulator) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick emits one round of simulated traffic: a delta event per zone and,
// roughly one tick in eight, an external violation candidate. Exported so
// tests can drive the simulator without waiting on the ticker.
func (s *Simulator) Tick(ctx context.Context) {
	now := time.Now()

	for _, zone := range s.registry.List(domain.ZoneStatusActive) {
		delta := s.pickDelta(zone)
		ev := domain.OccupancyEvent{
			ZoneID:    zone.ID,
			Timestamp: now,
			Delta:     &delta,
			SourceID:  fmt.Sprintf("sim-%s", zone.ID),
		}
		if err := s.handler.HandleOccupancy(ctx, ev); err != nil {
			s.log.Warn("Simulated event rejected",
				zap.String("zone_id", zone.ID), zap.Error(err))
		}

		if s.intn(8) == 0 {
			cand := domain.ViolationCandidate{
				ZoneID:        zone.ID,
				Type:          s.pickCandidateType(),
				VehicleNumber: s.plate(),
				Timestamp:     now,
			}
			if err := s.handler.HandleCandidate(ctx, cand); err != nil {
				s.log.Warn("Simulated candidate rejected",
					zap.String("zone_id", zone.ID), zap.Error(err))
			}
		}
	}
}

// pickDelta biases arrivals while a zone has headroom and departures once
// it runs over, so simulated zones oscillate around capacity instead of
// growing without bound.
func (s *Simulator) pickDelta(zone domain.Zone) int {
	d := s.intn(5) - 2 // -2..+2
	if zone.CurrentCount > zone.MaxCapacity+zone.GraceThreshold {
		d -= 2
	} else if zone.CurrentCount < zone.MaxCapacity/2 {
		d++
	}
	return d
}

func (s *Simulator) pickCandidateType() domain.ViolationType {
	return domain.ExternalViolationTypes[s.intn(len(domain.ExternalViolationTypes))]
}

func (s *Simulator) plate() string {
	letters := []rune("ABCDEFGHJKLMNPRSTUVWXYZ")
	return fmt.Sprintf("%c%c-%04d",
		letters[s.intn(len(letters))],
		letters[s.intn(len(letters))],
		s.intn(10000))
}

func (s *Simulator) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}
