// Package recompute decides when a session's regression must be refitted and
// whether a fresh result replaces the held one.
//
// States:
//
//	Idle    no fit requested (or no fields chosen)
//	Stale   inputs changed since the last fit
//	Fitted  a valid FitResult is held
//	Failed  the last attempt produced a typed failure; no result is held
//
// A successful fit only replaces the held result when some field moved by
// more than the tolerance. Otherwise the old pointer is kept so that
// consumers can use pointer identity as a cheap change signal.
package recompute

import (
	"fmt"
	"time"

	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/regression"
	"lraide/internal"
	"lraide/ports"
)

// State is the scheduler state.
type State string

const (
	StateIdle   State = "idle"
	StateStale  State = "stale"
	StateFitted State = "fitted"
	StateFailed State = "failed"
)

// Outcome labels passed to a Recorder.
const (
	OutcomeCommitted = "committed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Input is one consistent view of everything the fit depends on. Rows are the
// included rows in ascending original index order and RowIndices maps each
// of them back to its original index.
type Input struct {
	Rows       []dataset.Row
	RowIndices []int
	XField     string
	YField     string
	Enabled    bool
}

// Outcome reports what a Recompute call did.
type Outcome struct {
	State State
	// Result is the held result after the call (nil unless Fitted).
	Result *regression.FitResult
	// Changed is true when the held result pointer changed, including
	// transitions to and from nil.
	Changed bool
	// KernelRan is false when a precondition short-circuited the call.
	KernelRan bool
	Err       error
	Code      string
}

// Recorder observes recompute outcomes. It must not block.
type Recorder interface {
	RecordRecompute(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRecompute(string, time.Duration) {}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTolerance overrides regression.DefaultTolerance.
func WithTolerance(tol float64) Option {
	return func(s *Scheduler) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *internal.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler owns the fit state of one session. It is not safe for
// concurrent use; the owning session serializes access.
type Scheduler struct {
	fitter    ports.Fitter
	tolerance float64
	recorder  Recorder
	logger    *internal.Logger

	state  State
	result *regression.FitResult
	err    error
	// rowIndices maps the held result's valid positions to original rows.
	rowIndices []int
}

// New creates a scheduler in the Idle state.
func New(fitter ports.Fitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		fitter:    fitter,
		tolerance: regression.DefaultTolerance,
		recorder:  nopRecorder{},
		logger:    internal.DefaultLogger.WithComponent("recompute"),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State() State { return s.state }

// Result returns the held result, nil unless Fitted.
func (s *Scheduler) Result() *regression.FitResult { return s.result }

// Err returns the failure of the last attempt, nil unless Failed.
func (s *Scheduler) Err() error { return s.err }

// Code returns the stable code of the last failure, "" otherwise.
func (s *Scheduler) Code() string { return core.CodeOf(s.err) }

// Tolerance returns the commit tolerance.
func (s *Scheduler) Tolerance() float64 { return s.tolerance }

// Invalidate marks the inputs as changed. The next Recompute refits.
func (s *Scheduler) Invalidate() {
	s.state = StateStale
}

// ResidualsByRow maps each residual of the held result to its original row
// index. Returns nil when no result is held.
func (s *Scheduler) ResidualsByRow() map[int]float64 {
	if s.result == nil {
		return nil
	}
	out := make(map[int]float64, len(s.result.Residuals))
	for i, pos := range s.result.ValidPositions {
		if pos < len(s.rowIndices) {
			out[s.rowIndices[pos]] = s.result.Residuals[i]
		}
	}
	return out
}

// Recompute evaluates in and moves the state machine. Cheap precondition
// checks run before the kernel.
func (s *Scheduler) Recompute(in Input) Outcome {
	start := time.Now()
	prev := s.result
	s.state = StateStale

	switch {
	case !in.Enabled || in.XField == "" || in.YField == "":
		s.clear(StateIdle, nil)
		s.recorder.RecordRecompute(OutcomeSkipped, time.Since(start))
		s.logger.Trace("idle: enabled=%v x=%q y=%q", in.Enabled, in.XField, in.YField)
		return s.outcome(prev, false)

	case in.XField == in.YField:
		s.clear(StateFailed, fmt.Errorf("%w: %q", core.ErrIdenticalFieldSelection, in.XField))
		s.recorder.RecordRecompute(OutcomeFailed, time.Since(start))
		s.logger.Debug("failed before kernel: %v", s.err)
		return s.outcome(prev, false)

	case len(in.Rows) < 2:
		s.clear(StateFailed, fmt.Errorf("%w: %d rows included", core.ErrNotEnoughData, len(in.Rows)))
		s.recorder.RecordRecompute(OutcomeFailed, time.Since(start))
		s.logger.Debug("failed before kernel: %v", s.err)
		return s.outcome(prev, false)
	}

	next, err := s.fitter.Fit(in.Rows, in.XField, in.YField)
	if err != nil {
		s.clear(StateFailed, err)
		s.recorder.RecordRecompute(OutcomeFailed, time.Since(start))
		s.logger.Debug("kernel failed: %v", err)
		return s.outcome(prev, true)
	}

	s.state = StateFitted
	s.err = nil
	// Row indices can shift (a row deleted outside the subset) while the
	// fit itself is unchanged, so the mapping is always refreshed.
	s.rowIndices = append([]int(nil), in.RowIndices...)
	if prev != nil && prev.WithinTolerance(next, s.tolerance) {
		s.recorder.RecordRecompute(OutcomeUnchanged, time.Since(start))
		s.logger.Trace("fit unchanged within %g, keeping held result", s.tolerance)
		return s.outcome(prev, true)
	}

	s.result = next
	s.recorder.RecordRecompute(OutcomeCommitted, time.Since(start))
	s.logger.Debug("committed fit n=%d slope=%g intercept=%g r2=%g", next.N, next.Slope, next.Intercept, next.RSquared)
	return s.outcome(prev, true)
}

// Restore seeds the scheduler with a previously computed state, used when a
// session is forked so the clone starts from the same fit.
func (s *Scheduler) Restore(state State, result *regression.FitResult, rowIndices []int, err error) {
	s.state = state
	s.result = result
	s.rowIndices = append([]int(nil), rowIndices...)
	s.err = err
}

// RowIndices returns the original row index of each input position of the
// held result.
func (s *Scheduler) RowIndices() []int {
	return append([]int(nil), s.rowIndices...)
}

func (s *Scheduler) clear(state State, err error) {
	s.state = state
	s.result = nil
	s.rowIndices = nil
	s.err = err
}

func (s *Scheduler) outcome(prev *regression.FitResult, kernelRan bool) Outcome {
	return Outcome{
		State:     s.state,
		Result:    s.result,
		Changed:   prev != s.result,
		KernelRan: kernelRan,
		Err:       s.err,
		Code:      core.CodeOf(s.err),
	}
}
