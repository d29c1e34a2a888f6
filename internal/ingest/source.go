package ingest

import (
	"context"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

// Handler is the engine-side sink an ingest source feeds. Both methods
// treat per-event errors as non-fatal; the source logs and keeps going.
type Handler interface {
	HandleOccupancy(ctx context.Context, ev domain.OccupancyEvent) error
	HandleCandidate(ctx context.Context, cand domain.ViolationCandidate) error
}

// Source is a feed of raw events. Start returns once the source is
// running; Stop blocks until the feed has fully drained.
type Source interface {
	Start(ctx context.Context) error
	Stop()
}
