package kb

import (
	"sync"

	"github.com/signalsfoundry/threatglobe/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	// EventReplaced means the whole attack list was swapped.
	EventReplaced EventType = iota
	// EventAppended means new attacks were added to the existing list.
	EventAppended
)

func (t EventType) String() string {
	switch t {
	case EventReplaced:
		return "replaced"
	case EventAppended:
		return "appended"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers on every change. Attacks is a private copy
// of the full current list, not just the delta.
type Event struct {
	Type     EventType
	Version  uint64
	Attacks  []model.AttackEvent
	Replaced int // number of records in the previous list
}

// EventStore is an in-memory, thread-safe holder of the current attack list.
// Feeds write to it; the globe host subscribes to it.
type EventStore struct {
	mu sync.RWMutex

	attacks []model.AttackEvent
	version uint64

	nextSub int
	subs    map[int]func(Event)
}

// NewEventStore constructs an empty store.
func NewEventStore() *EventStore {
	return &EventStore{subs: make(map[int]func(Event))}
}

// Replace swaps the whole attack list and notifies subscribers.
func (s *EventStore) Replace(attacks []model.AttackEvent) {
	s.mu.Lock()
	prev := len(s.attacks)
	s.attacks = append([]model.AttackEvent(nil), attacks...)
	s.version++
	ev := Event{Type: EventReplaced, Version: s.version, Attacks: s.copyLocked(), Replaced: prev}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(ev)
	}
}

// Append adds attacks to the list, keeping at most max of the newest records
// (max <= 0 keeps everything), and notifies subscribers.
func (s *EventStore) Append(attacks []model.AttackEvent, max int) {
	if len(attacks) == 0 {
		return
	}
	s.mu.Lock()
	prev := len(s.attacks)
	s.attacks = append(s.attacks, attacks...)
	if max > 0 && len(s.attacks) > max {
		s.attacks = append([]model.AttackEvent(nil), s.attacks[len(s.attacks)-max:]...)
	}
	s.version++
	ev := Event{Type: EventAppended, Version: s.version, Attacks: s.copyLocked(), Replaced: prev}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}

// Snapshot returns a copy of the current list and its version.
func (s *EventStore) Snapshot() ([]model.AttackEvent, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(), s.version
}

// Len returns the number of stored attacks.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attacks)
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function; calling it more than once is harmless.
func (s *EventStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *EventStore) copyLocked() []model.AttackEvent {
	return append([]model.AttackEvent(nil), s.attacks...)
}

func (s *EventStore) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}
