// Package events fans issuance events out to live subscribers of the ledger node.
package events

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/and161185/doc-issuer/internal/model"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Hub delivers every published event to the subscribers whose filter matches.
// Subscribers only see events published after they subscribed.
// Publish never blocks: a subscriber whose queue is full is dropped from the hub
// and its channel closed after the queued events, with Lagged reporting true.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	closed bool
	buffer int
	log    *zap.Logger
}

// Subscriber is one registration on a Hub.
type Subscriber struct {
	id     uint64
	filter model.EventFilter
	ch     chan model.IssuanceEvent
	hub    *Hub
	once   sync.Once
	lagged atomic.Bool
}

// NewHub creates a hub. buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[uint64]*Subscriber), buffer: buffer, log: log}
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscriber's channel is already closed.
func (h *Hub) Subscribe(filter model.EventFilter) *Subscriber {
	s := &Subscriber{filter: filter, ch: make(chan model.IssuanceEvent, h.buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	return s
}

// Publish offers ev to every matching subscriber and returns how many accepted it.
func (h *Hub) Publish(ev model.IssuanceEvent) int {
	h.mu.RLock()
	delivered := 0
	var full []*Subscriber
	for _, s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
			delivered++
		default:
			full = append(full, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range full {
		h.log.Warn("subscriber queue full, dropping subscriber",
			zap.Uint64("subscriber", s.id),
			zap.Int64("block", ev.BlockNumber),
		)
		s.lagged.Store(true)
		s.Unsubscribe()
	}
	return delivered
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everybody. Further Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.once.Do(func() { close(s.ch) })
	}
}

// C is the event channel. It is closed by Unsubscribe, Hub.Close or an overflow.
func (s *Subscriber) C() <-chan model.IssuanceEvent { return s.ch }

// Lagged reports whether the subscriber was dropped for not keeping up.
func (s *Subscriber) Lagged() bool { return s.lagged.Load() }

// Unsubscribe removes s from the hub. Safe to call more than once.
func (s *Subscriber) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.subs, s.id)
	s.once.Do(func() { close(s.ch) })
}
