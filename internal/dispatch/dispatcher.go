package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/metrics"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
)

// DefaultQueueSize bounds a subscriber's buffer when the caller passes 0.
const DefaultQueueSize = 64

// Envelope wraps a fact with its routing metadata.
type Envelope struct {
	Channel string      `json:"channel"`
	Key     string      `json:"key"`
	Fact    interface{} `json:"fact"`
}

// Subscription is a live feed of facts. Consumers drain C until it is
// closed; Dropped reports how many facts were discarded because the
// consumer fell behind.
type Subscription struct {
	ID string
	C  <-chan Envelope

	d       *Dispatcher
	ch      chan Envelope
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// Dropped returns the number of facts discarded from this subscription.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.d.unsubscribe(s)
}

// send enqueues one envelope, evicting the oldest queued fact when the
// buffer is full. The publisher never blocks on a slow consumer.
func (s *Subscription) send(ctx context.Context, env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- env:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped++
			metrics.IncFactsDropped(ctx)
		default:
		}
	}
}

func (s *Subscription) shutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.ch)
	return true
}

type subFilter struct {
	sub  *Subscription
	keys map[string]struct{} // empty means all keys
}

func (f subFilter) matches(key string) bool {
	if len(f.keys) == 0 {
		return true
	}
	_, ok := f.keys[key]
	return ok
}

// Dispatcher fans facts out to subscribers. Per (channel, key) ordering
// is preserved: a subscriber sees facts for any one zone in the order
// they were published.
type Dispatcher struct {
	queueSize int
	log       *logger.Logger

	mu   sync.RWMutex
	subs map[string]map[string]subFilter // channel -> sub id -> filter
}

// New creates a Dispatcher. queueSize bounds each subscriber's buffer;
// 0 selects DefaultQueueSize.
func New(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queueSize: queueSize,
		log:       logger.Get(),
		subs:      make(map[string]map[string]subFilter),
	}
}

// Subscribe registers a consumer on a channel. With no keys the
// subscription receives every fact on the channel; with keys it only
// receives facts for those zones.
func (d *Dispatcher) Subscribe(channel string, keys ...string) *Subscription {
	ch := make(chan Envelope, d.queueSize)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		d:  d,
		ch: ch,
	}

	filter := subFilter{sub: sub}
	if len(keys) > 0 {
		filter.keys = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			filter.keys[k] = struct{}{}
		}
	}

	d.mu.Lock()
	if d.subs[channel] == nil {
		d.subs[channel] = make(map[string]subFilter)
	}
	d.subs[channel][sub.ID] = filter
	d.mu.Unlock()

	metrics.AddActiveSubscribers(context.Background(), 1)
	d.log.Debug("Subscriber attached",
		zap.String("subscription_id", sub.ID),
		zap.String("channel", channel),
		zap.Int("key_filter", len(keys)))

	return sub
}

// Publish delivers a fact to every matching subscriber on the channel.
// Publishing to a channel nobody listens on is a no-op.
func (d *Dispatcher) Publish(channel, key string, fact interface{}) {
	env := Envelope{Channel: channel, Key: key, Fact: fact}

	d.mu.RLock()
	targets := make([]*Subscription, 0, len(d.subs[channel]))
	for _, f := range d.subs[channel] {
		if f.matches(key) {
			targets = append(targets, f.sub)
		}
	}
	d.mu.RUnlock()

	ctx := context.Background()
	for _, sub := range targets {
		sub.send(ctx, env)
	}
}

// unsubscribe detaches a subscription from every channel. Idempotent.
func (d *Dispatcher) unsubscribe(sub *Subscription) {
	d.mu.Lock()
	for channel, m := range d.subs {
		if _, ok := m[sub.ID]; ok {
			delete(m, sub.ID)
			if len(m) == 0 {
				delete(d.subs, channel)
			}
		}
	}
	d.mu.Unlock()

	if sub.shutdown() {
		metrics.AddActiveSubscribers(context.Background(), -1)
		d.log.Debug("Subscriber detached", zap.String("subscription_id", sub.ID))
	}
}

// SubscriberCount returns the number of live subscriptions on a channel.
func (d *Dispatcher) SubscriberCount(channel string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[channel])
}

// Shutdown closes every subscription.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	var all []*Subscription
	for _, m := range d.subs {
		for _, f := range m {
			all = append(all, f.sub)
		}
	}
	d.subs = make(map[string]map[string]subFilter)
	d.mu.Unlock()

	for _, sub := range all {
		if sub.shutdown() {
			metrics.AddActiveSubscribers(context.Background(), -1)
		}
	}
}
