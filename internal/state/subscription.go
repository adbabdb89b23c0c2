package state

import (
	"sync"
	"time"
)

const subscriptionBuffer = 100

// Subscription receives ChangeEvents. Events are delivered without blocking the
// publisher; when Channel is full the event is dropped and counted.
type Subscription struct {
	ID      int64
	Kinds   map[ChangeKind]bool // empty receives every kind
	Channel chan ChangeEvent

	closed bool
	mu     sync.RWMutex
}

// Close closes the subscription channel.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.Channel)
		s.closed = true
	}
}

// IsClosed returns whether the subscription is closed
func (s *Subscription) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Subscription) wants(kind ChangeKind) bool {
	return len(s.Kinds) == 0 || s.Kinds[kind]
}

// SubscriptionMetrics tracks subscription-related metrics
type SubscriptionMetrics struct {
	ActiveSubscriptions  int
	TotalEventsDelivered int64
	DroppedEvents        int64
	LastEventTime        time.Time
}

// broadcaster fans events out to subscriptions. Callers hold the owning mutex.
type broadcaster struct {
	subs    map[int64]*Subscription
	nextID  int64
	metrics SubscriptionMetrics
}

func newBroadcaster() broadcaster {
	return broadcaster{subs: make(map[int64]*Subscription)}
}

func (b *broadcaster) subscribe(kinds []ChangeKind) *Subscription {
	b.nextID++
	sub := &Subscription{
		ID:      b.nextID,
		Kinds:   make(map[ChangeKind]bool, len(kinds)),
		Channel: make(chan ChangeEvent, subscriptionBuffer),
	}
	for _, k := range kinds {
		sub.Kinds[k] = true
	}
	b.subs[sub.ID] = sub
	b.metrics.ActiveSubscriptions++
	return sub
}

func (b *broadcaster) unsubscribe(sub *Subscription) {
	if _, ok := b.subs[sub.ID]; ok {
		sub.Close()
		delete(b.subs, sub.ID)
		b.metrics.ActiveSubscriptions--
	}
}

func (b *broadcaster) publish(event ChangeEvent) {
	for id, sub := range b.subs {
		if !sub.wants(event.Kind) {
			continue
		}
		if sub.IsClosed() {
			delete(b.subs, id)
			b.metrics.ActiveSubscriptions--
			continue
		}

		select {
		case sub.Channel <- event:
			b.metrics.TotalEventsDelivered++
			b.metrics.LastEventTime = time.Now()
		default:
			b.metrics.DroppedEvents++
		}
	}
}

func (b *broadcaster) closeAll() {
	for id, sub := range b.subs {
		sub.Close()
		delete(b.subs, id)
	}
	b.metrics.ActiveSubscriptions = 0
}
