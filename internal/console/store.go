// Package console holds the ordered log records shown in the console panel.
//
// Records are kept in arrival order and only ever removed in bulk by Clear,
// or one at a time from the front when a capacity is configured.
package console

import (
	"sync"
	"time"
)

// Level is the severity of a console record.
type Level string

const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel accepts the four console levels.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(s); l {
	case LevelLog, LevelInfo, LevelWarn, LevelError:
		return l, true
	}
	return "", false
}

// Record is one console line.
type Record struct {
	ID         string    `json:"id"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Generation uint64    `json:"generation,omitempty"`
}

// EventKind tells subscribers what changed.
type EventKind string

const (
	EventAppend EventKind = "append"
	EventClear  EventKind = "clear"
)

// Event is a store change delivered to subscribers.
type Event struct {
	Kind   EventKind `json:"kind"`
	Record *Record   `json:"record,omitempty"`
}

// Store is a concurrency-safe append-only log buffer.
type Store struct {
	maxEntries int

	mu      sync.RWMutex
	records []Record
	subs    map[int]chan Event
	nextSub int
}

// NewStore creates a store. maxEntries > 0 evicts the oldest records beyond
// that many; zero keeps everything.
func NewStore(maxEntries int) *Store {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Store{maxEntries: maxEntries, subs: make(map[int]chan Event)}
}

// Append adds rec at the end.
func (s *Store) Append(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.records) >= s.maxEntries {
		drop := len(s.records) - s.maxEntries + 1
		clear(s.records[:drop])
		s.records = s.records[drop:]
	}
	s.records = append(s.records, rec)
	s.broadcast(Event{Kind: EventAppend, Record: &rec})
}

// Clear removes every record. Clearing an empty store is a no-op apart from
// notifying subscribers.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.broadcast(Event{Kind: EventClear})
}

// Records returns a copy of all records in order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Subscribe returns a channel of store events and a function that cancels
// the subscription. Events are dropped for subscribers whose buffer is full.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, key)
			close(ch)
		})
	}
}

// broadcast must be called with s.mu held.
func (s *Store) broadcast(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
