package logsink

import (
	"fmt"
	"sync"
	"time"

	"github.com/Moinster/SantaCam/internal/randutil"
)

// DefaultCapacity is the number of lines the console keeps.
const DefaultCapacity = 220

// Level is the severity column of a log line.
type Level string

const (
	LevelInfo Level = "INFO"
	LevelOK   Level = "OK"
	LevelWarn Level = "WARN"
)

// Kind is the optional styling tag of a log line.
type Kind string

const (
	KindNone  Kind = ""
	KindOK    Kind = "ok"
	KindWarn  Kind = "warn"
	KindMuted Kind = "muted"
)

// Event is a single immutable console line.
type Event struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"ts"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Kind    Kind      `json:"kind,omitempty"`
}

// Line renders the event the way the console prints it.
func (e Event) Line() string {
	return fmt.Sprintf("[%s] %s  %s", randutil.Timestamp(e.Time), randutil.PadEnd(string(e.Level), 5), e.Message)
}

// Appender is the write side of the sink used by producers.
type Appender interface {
	Append(level Level, message string, kind Kind) Event
}

// Sink is an append-only log trimmed to a fixed capacity.
type Sink struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	nextID   int64
	now      func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a sink holding at most capacity events.
func New(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		nextID:   1,
		now:      time.Now,
		subs:     make(map[int]chan Event),
	}
}

// SetTimeSource replaces the wall clock used to stamp events.
func (s *Sink) SetTimeSource(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Append stamps and stores a new event, evicting the oldest beyond capacity.
func (s *Sink) Append(level Level, message string, kind Kind) Event {
	s.mu.Lock()
	event := Event{
		ID:      s.nextID,
		Time:    s.now(),
		Level:   level,
		Message: message,
		Kind:    kind,
	}
	s.nextID++

	s.events = append(s.events, event)
	if over := len(s.events) - s.capacity; over > 0 {
		// Copy down so the backing array does not grow without bound
		n := copy(s.events, s.events[over:])
		s.events = s.events[:n]
	}

	// Deliver while still holding the write lock so subscribers observe
	// events in append order
	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; it can resume with EventsAfter
		}
	}
	s.subMu.Unlock()
	s.mu.Unlock()

	return event
}

// Events returns a copy of the retained events, oldest first.
func (s *Sink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsAfter returns retained events with an ID greater than lastID.
func (s *Sink) EventsAfter(lastID int64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Event{}
	for _, event := range s.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// Latest returns the newest event, if any.
func (s *Sink) Latest() (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) == 0 {
		return Event{}, false
	}
	return s.events[len(s.events)-1], true
}

// Len returns the number of retained events.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Capacity returns the configured capacity.
func (s *Sink) Capacity() int {
	return s.capacity
}

// Subscribe registers a buffered channel that receives every new event.
// The returned cancel func unregisters and closes the channel.
func (s *Sink) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
