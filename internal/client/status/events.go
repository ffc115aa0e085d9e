package status

import (
	"sync"
	"time"
)

type EventType string

const (
	EventSyncCompleted    EventType = "sync_completed"
	EventConflictDetected EventType = "conflict_detected"
	EventConflictResolved EventType = "conflict_resolved"
	EventSyncError        EventType = "sync_error"
	EventOnline           EventType = "online"
	EventOffline          EventType = "offline"
)

// Event is a notification about the sync lifecycle. Entity fields are set
// for per-record events; Err is set for sync_error.
type Event struct {
	Type        EventType `json:"type"`
	HouseholdID string    `json:"household_id"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	ConflictID  string    `json:"conflict_id,omitempty"`
	Synced      int       `json:"synced,omitempty"`
	Err         string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

const DefaultBuffer = 32

type subscriber struct {
	ch      chan Event
	dropped uint64
}

// Bus fans events out to subscribers. Publish never blocks: an event that
// does not fit in a subscriber's buffer is dropped for that subscriber.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscriber{ch: make(chan Event, buffer)}
	if b.closed {
		close(s.ch)
		return s.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish returns the number of subscribers that missed the event.
func (b *Bus) Publish(e Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	missed := 0
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			s.dropped++
			missed++
		}
	}
	return missed
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
