package session

import (
	"fmt"
	"sync"
	"time"

	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/snapshot"
	"lraide/internal"
)

// Registry holds the open sessions and the single active-session pointer.
// Lock order is Registry before Session, and a source session before its
// fork.
type Registry struct {
	mu       sync.RWMutex
	opts     Options
	logger   *internal.Logger
	sessions map[core.SessionID]*Session
	order    []core.SessionID
	active   core.SessionID
	bus      *eventBus
}

// NewRegistry creates an empty registry. Zero-valued options take defaults.
func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	r := &Registry{
		opts:     opts,
		logger:   opts.Logger.WithComponent("registry"),
		sessions: make(map[core.SessionID]*Session),
		bus:      newEventBus(),
	}
	r.bus.dropped = opts.Observer.RecordDroppedEvent
	return r
}

// Create opens a new session over data and makes it active.
func (r *Registry) Create(name string, data *dataset.Dataset) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := newSession(core.NewSessionID(), name, data, r.opts)
	r.addLocked(s)
	r.activateLocked(s.id)
	r.logger.Info("opened %q as %s (%d rows, %d columns)", name, s.id, s.data.Len(), len(s.data.Columns()))
	return s
}

func (r *Registry) addLocked(s *Session) {
	r.sessions[s.id] = s
	r.order = append(r.order, s.id)
	r.opts.Observer.SetOpenSessions(len(r.sessions))
	r.publishLocked(EventCreated, s.id)
}

func (r *Registry) activateLocked(id core.SessionID) {
	if r.active == id {
		return
	}
	r.active = id
	r.publishLocked(EventActivated, id)
}

func (r *Registry) publishLocked(kind EventKind, id core.SessionID) {
	ev := Event{Kind: kind, SessionID: id, Timestamp: time.Now()}
	if s, ok := r.sessions[id]; ok {
		ev.View = s.View()
		ev.Version = ev.View.Version
	}
	r.bus.publish(ev)
}

// Get returns an open session.
func (r *Registry) Get(id core.SessionID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, core.NewSessionNotFoundError(id)
	}
	return s, nil
}

// List returns open sessions in creation order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Active returns the active session, nil when none is open.
func (r *Registry) Active() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[r.active]
}

// SetActive switches the active session.
func (r *Registry) SetActive(id core.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return core.NewSessionNotFoundError(id)
	}
	r.activateLocked(id)
	return nil
}

// Subscribe streams registry lifecycle events (created, closed, activated).
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	return r.bus.subscribe(buffer)
}

// Close destroys a session together with its simulation fork. When the
// active session goes away the next session in creation order becomes
// active, else the previous one, else none.
func (r *Registry) Close(id core.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return core.NewSessionNotFoundError(id)
	}
	s.mu.Lock()
	forkOf := s.forkOf
	s.mu.Unlock()

	if forkOf != "" {
		if src, ok := r.sessions[forkOf]; ok {
			src.mu.Lock()
			if src.simulation == s {
				src.simulation = nil
				src.emitLocked(EventSimulation, "", "")
			}
			src.mu.Unlock()
		}
	}
	r.closeLocked(s)
	r.logger.Info("closed %s (%d open)", id, len(r.sessions))
	return nil
}

// closeLocked removes s and its fork and moves the active pointer if it
// pointed at either.
func (r *Registry) closeLocked(s *Session) {
	closing := map[core.SessionID]bool{s.id: true}
	s.mu.Lock()
	if s.simulation != nil {
		closing[s.simulation.id] = true
	}
	s.mu.Unlock()

	replacement := r.active
	if closing[r.active] {
		replacement = r.replacementLocked(closing)
	}
	r.removeLocked(closing)
	if replacement != r.active {
		r.active = ""
		if replacement != "" {
			r.activateLocked(replacement)
		}
	}
}

// replacementLocked picks the first surviving session after the active one
// in creation order, falling back to the last surviving one before it.
func (r *Registry) replacementLocked(closing map[core.SessionID]bool) core.SessionID {
	pos := -1
	for i, id := range r.order {
		if id == r.active {
			pos = i
			break
		}
	}
	for i := pos + 1; i < len(r.order); i++ {
		if !closing[r.order[i]] {
			return r.order[i]
		}
	}
	for i := pos - 1; i >= 0; i-- {
		if !closing[r.order[i]] {
			return r.order[i]
		}
	}
	return ""
}

func (r *Registry) removeLocked(closing map[core.SessionID]bool) {
	kept := r.order[:0]
	for _, id := range r.order {
		if !closing[id] {
			kept = append(kept, id)
			continue
		}
		s := r.sessions[id]
		delete(r.sessions, id)
		s.mu.Lock()
		s.closed = true
		s.simulation = nil
		s.emitLocked(EventClosed, "", "")
		s.mu.Unlock()
		s.bus.closeAll()
		r.bus.publish(Event{Kind: EventClosed, SessionID: id, Timestamp: time.Now()})
	}
	r.order = kept
	r.opts.Observer.SetOpenSessions(len(r.sessions))
}

// Fork clones a session into a simulation session with its own id. The clone
// copies the dataset, field choices, both subsets, the viewport and the held
// fit; afterwards the two evolve independently. An existing fork of the
// source is closed first.
func (r *Registry) Fork(id core.SessionID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.sessions[id]
	if !ok {
		return nil, core.NewSessionNotFoundError(id)
	}
	src.mu.Lock()
	old := src.simulation
	src.mu.Unlock()
	if old != nil {
		r.closeLocked(old)
	}

	src.mu.Lock()
	clone := newSession(core.NewSessionID(), src.name+" (simulation)", src.data.Clone(), r.opts)
	clone.xField, clone.yField = src.xField, src.yField
	clone.isFitted = src.isFitted
	clone.inclusion = src.inclusion.Clone()
	clone.highlight = src.highlight.Clone()
	clone.view = src.view
	clone.activeTab = snapshot.TabSimulation
	clone.forkOf = src.id
	// FitResult is immutable, so the clone may hold the same pointer.
	clone.scheduler.Restore(src.scheduler.State(), src.scheduler.Result(), src.scheduler.RowIndices(), src.scheduler.Err())
	src.simulation = clone
	src.activeTab = snapshot.TabSimulation
	src.emitLocked(EventSimulation, "", "")
	src.mu.Unlock()

	r.addLocked(clone)
	r.logger.Info("forked %s into %s", id, clone.id)
	return clone, nil
}

// Import opens a session from a snapshot and makes it active. The snapshot id
// is kept unless it is empty or already open. A stored simulation is restored
// as the new session's fork.
func (r *Registry) Import(snap *snapshot.Snapshot) (*Session, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := fromSnapshot(r.freshIDLocked(snap.ID, ""), snap, r.opts)
	if err != nil {
		return nil, err
	}
	var sim *Session
	if snap.Simulation != nil {
		sim, err = fromSnapshot(r.freshIDLocked(snap.Simulation.ID, s.id), snap.Simulation, r.opts)
		if err != nil {
			return nil, fmt.Errorf("simulation: %w", err)
		}
		sim.forkOf = s.id
		s.simulation = sim
	}
	r.addLocked(s)
	if sim != nil {
		r.addLocked(sim)
	}
	r.activateLocked(s.id)
	r.logger.Info("imported %q as %s", snap.Name, s.id)
	return s, nil
}

// freshIDLocked keeps id unless it is empty, open, or equal to reserved.
func (r *Registry) freshIDLocked(id, reserved core.SessionID) core.SessionID {
	if id.IsEmpty() || id == reserved {
		return core.NewSessionID()
	}
	if _, taken := r.sessions[id]; taken {
		return core.NewSessionID()
	}
	return id
}
