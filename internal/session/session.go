// Package session owns the per-file state of the regression workspace: the
// dataset, the row subsets, the viewport and the fit, plus the registry that
// holds several sessions side by side.
package session

import (
	"sync"
	"time"

	olsadapter "lraide/adapters/stats/regression"
	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/regression"
	"lraide/domain/selection"
	"lraide/domain/snapshot"
	"lraide/domain/viewport"
	"lraide/internal"
	"lraide/internal/recompute"
	geometry "lraide/internal/viewport"
	"lraide/ports"
)

// Observer receives engine telemetry. Implementations must not block.
type Observer interface {
	recompute.Recorder
	SetOpenSessions(n int)
	RecordNotice(code string)
	RecordDroppedEvent()
}

type nopObserver struct{}

func (nopObserver) RecordRecompute(string, time.Duration) {}
func (nopObserver) SetOpenSessions(int)                   {}
func (nopObserver) RecordNotice(string)                   {}
func (nopObserver) RecordDroppedEvent()                   {}

// Options are shared by every session a Registry creates.
type Options struct {
	Fitter    ports.Fitter
	Tolerance float64
	Padding   float64
	// ZoomStep is the factor used by ZoomIn/ZoomOut.
	ZoomStep float64
	Observer Observer
	Logger   *internal.Logger
}

func (o Options) withDefaults() Options {
	if o.Fitter == nil {
		o.Fitter = olsadapter.NewOLS()
	}
	if o.Tolerance <= 0 {
		o.Tolerance = regression.DefaultTolerance
	}
	if o.Padding <= 0 {
		o.Padding = geometry.DefaultPadding
	}
	if o.ZoomStep <= 1 {
		o.ZoomStep = 1.2
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = internal.DefaultLogger
	}
	return o
}

// Session is one open dataset with its own fit, subsets and viewport. All
// methods are safe for concurrent use; mutations are applied one at a time in
// call order and each recompute sees the state left by exactly the mutations
// before it.
type Session struct {
	mu sync.Mutex

	id        core.SessionID
	name      string
	createdAt time.Time
	opts      Options
	logger    *internal.Logger

	data      *dataset.Dataset
	xField    string
	yField    string
	isFitted  bool
	inclusion selection.IndexSet
	highlight selection.IndexSet
	view      viewport.State
	activeTab snapshot.Tab

	// simulation is the fork created from this session, if any. It is a
	// separate Session that shares no mutable state with this one.
	simulation *Session
	// forkOf is set on a simulation session.
	forkOf core.SessionID

	scheduler *recompute.Scheduler
	notice    error
	version   uint64
	closed    bool
	bus       *eventBus
}

func newSession(id core.SessionID, name string, data *dataset.Dataset, opts Options) *Session {
	if data == nil {
		data = dataset.Empty()
	}
	s := &Session{
		id:        id,
		name:      name,
		createdAt: time.Now(),
		opts:      opts,
		logger:    opts.Logger.WithComponent("session " + shortID(id)),
		data:      data,
		inclusion: selection.Range(data.Len()),
		highlight: selection.Of(),
		view:      viewport.DefaultState(),
		activeTab: snapshot.TabAnalysis,
		bus:       newEventBus(),
		scheduler: recompute.New(opts.Fitter,
			recompute.WithTolerance(opts.Tolerance),
			recompute.WithRecorder(opts.Observer),
			recompute.WithLogger(opts.Logger.WithComponent("recompute "+shortID(id))),
		),
	}
	s.bus.dropped = opts.Observer.RecordDroppedEvent

	cols := data.Columns()
	if len(cols) >= 2 {
		s.xField, s.yField = cols[0], cols[1]
	}
	return s
}

func shortID(id core.SessionID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// ID returns the session identifier.
func (s *Session) ID() core.SessionID { return s.id }

// Name returns the display name (usually the source file name).
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Closed reports whether the registry has closed the session.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ForkOf returns the source session id of a simulation, empty otherwise.
func (s *Session) ForkOf() core.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forkOf
}

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// View is a read-only snapshot of a session handed to renderers. The Dataset
// and Fit it references are immutable values; the slices are copies.
type View struct {
	ID               core.SessionID        `json:"id"`
	Name             string                `json:"name"`
	Version          uint64                `json:"version"`
	Dataset          *dataset.Dataset      `json:"-"`
	Columns          []string              `json:"columns"`
	RowCount         int                   `json:"row_count"`
	IndependentField string                `json:"independent_field"`
	DependentField   string                `json:"dependent_field"`
	IsFitted         bool                  `json:"is_fitted"`
	Inclusion        []int                 `json:"inclusion"`
	Highlight        []int                 `json:"highlight"`
	Viewport         viewport.State        `json:"viewport"`
	ActiveTab        snapshot.Tab          `json:"active_tab"`
	FitState         recompute.State       `json:"fit_state"`
	Fit              *regression.FitResult `json:"fit,omitempty"`
	ErrorCode        string                `json:"error_code,omitempty"`
	Error            string                `json:"error,omitempty"`
	NoticeCode       string                `json:"notice_code,omitempty"`
	Notice           string                `json:"notice,omitempty"`
	SimulationID     core.SessionID        `json:"simulation_id,omitempty"`
	ForkOf           core.SessionID        `json:"fork_of,omitempty"`
	ContributingRows []int                 `json:"contributing_rows"`
	ResidualsByRow   map[int]float64       `json:"residuals_by_row,omitempty"`
}

// View returns the current snapshot.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() *View {
	v := &View{
		ID:               s.id,
		Name:             s.name,
		Version:          s.version,
		Dataset:          s.data,
		Columns:          s.data.Columns(),
		RowCount:         s.data.Len(),
		IndependentField: s.xField,
		DependentField:   s.yField,
		IsFitted:         s.isFitted,
		Inclusion:        s.inclusion.Sorted(),
		Highlight:        s.highlight.Sorted(),
		Viewport:         s.view,
		ActiveTab:        s.activeTab,
		FitState:         s.scheduler.State(),
		Fit:              s.scheduler.Result(),
		ErrorCode:        s.scheduler.Code(),
		ForkOf:           s.forkOf,
		ContributingRows: s.contributingRowsLocked(),
		ResidualsByRow:   s.scheduler.ResidualsByRow(),
	}
	if err := s.scheduler.Err(); err != nil {
		v.Error = err.Error()
	}
	if s.notice != nil {
		v.NoticeCode = core.CodeOf(s.notice)
		v.Notice = s.notice.Error()
	}
	if s.simulation != nil {
		v.SimulationID = s.simulation.id
	}
	return v
}

// contributingRowsLocked lists included rows whose chosen fields are both
// finite. Included rows outside this list are shown as non-contributing.
func (s *Session) contributingRowsLocked() []int {
	out := []int{}
	if s.xField == "" || s.yField == "" {
		return out
	}
	for _, i := range s.inclusion.Sorted() {
		if i >= s.data.Len() {
			continue
		}
		r := s.data.Row(i)
		if r.Get(s.xField).IsFinite() && r.Get(s.yField).IsFinite() {
			out = append(out, i)
		}
	}
	return out
}

// Fit returns the held fit result, nil when none.
func (s *Session) Fit() *regression.FitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Result()
}

// FitState returns the scheduler state and last failure code.
func (s *Session) FitState() (recompute.State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.State(), s.scheduler.Code()
}

// Subscribe streams change events. Call cancel to stop and close the channel.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	return s.bus.subscribe(buffer)
}

// Simulation returns the forked simulation session, nil when none.
func (s *Session) Simulation() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulation
}

// recomputeLocked feeds a consistent snapshot of the fit inputs to the
// scheduler and publishes a fit event when the held result changed.
func (s *Session) recomputeLocked() recompute.Outcome {
	s.scheduler.Invalidate()
	indices := s.inclusion.Bounded(s.data.Len()).Sorted()
	out := s.scheduler.Recompute(recompute.Input{
		Rows:       s.data.Select(indices),
		RowIndices: indices,
		XField:     s.xField,
		YField:     s.yField,
		Enabled:    s.isFitted,
	})
	if out.Changed {
		s.emitLocked(EventFit, out.Code, errString(out.Err))
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// emitLocked bumps the version and publishes an event carrying a fresh View.
func (s *Session) emitLocked(kind EventKind, code, message string) {
	s.version++
	s.bus.publish(Event{
		Kind:      kind,
		SessionID: s.id,
		Version:   s.version,
		Code:      code,
		Message:   message,
		View:      s.viewLocked(),
		Timestamp: time.Now(),
	})
}

// rejectLocked records a precondition violation: state is untouched, the
// caller gets err back and subscribers get a notice.
func (s *Session) rejectLocked(err error) error {
	s.notice = err
	code := core.CodeOf(err)
	s.opts.Observer.RecordNotice(code)
	s.logger.Warn("rejected: %v", err)
	s.emitLocked(EventNotice, code, err.Error())
	return err
}

// acceptLocked clears the last notice after a successful mutation.
func (s *Session) acceptLocked() {
	s.notice = nil
}
