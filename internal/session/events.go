package session

import (
	"sync"
	"time"

	"lraide/domain/core"
)

// EventKind classifies a session change.
type EventKind string

const (
	EventCreated    EventKind = "session_created"
	EventClosed     EventKind = "session_closed"
	EventActivated  EventKind = "session_activated"
	EventTable      EventKind = "table_changed"
	EventFields     EventKind = "fields_changed"
	EventInclusion  EventKind = "inclusion_changed"
	EventHighlight  EventKind = "highlight_changed"
	EventViewport   EventKind = "viewport_changed"
	EventFit        EventKind = "fit_changed"
	EventTab        EventKind = "tab_changed"
	EventSimulation EventKind = "simulation_changed"
	EventNotice     EventKind = "notice"
)

// Event is delivered to subscribers after a mutation has been applied. View
// is an immutable snapshot taken at that moment.
type Event struct {
	Kind      EventKind      `json:"kind"`
	SessionID core.SessionID `json:"session_id"`
	Version   uint64         `json:"version"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	View      *View          `json:"view,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// eventBus fans events out to subscriber channels. Sends never block: a
// subscriber whose buffer is full misses the event and is expected to resync
// from the next one, which always carries a full View.
type eventBus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]chan Event
	dropped func()
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// subscribe returns a receive channel and a cancel func that closes it.
func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// closeAll closes every subscriber channel.
func (b *eventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
