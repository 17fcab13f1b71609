package recompute

import (
	"fmt"
	"sync"
	"testing"
	"time"

	olsadapter "lraide/adapters/stats/regression"
	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/regression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFitter struct {
	mock.Mock
}

func (m *MockFitter) Fit(rows []dataset.Row, xField, yField string) (*regression.FitResult, error) {
	args := m.Called(rows, xField, yField)
	res, _ := args.Get(0).(*regression.FitResult)
	return res, args.Error(1)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordRecompute(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[outcome]++
}

func input(pairs ...[2]float64) Input {
	in := Input{XField: "x", YField: "y", Enabled: true}
	for i, p := range pairs {
		in.Rows = append(in.Rows, dataset.Row{"x": dataset.Number(p[0]), "y": dataset.Number(p[1])})
		in.RowIndices = append(in.RowIndices, i)
	}
	return in
}

func TestRecompute_DisabledIsIdleWithoutKernel(t *testing.T) {
	fitter := &MockFitter{}
	s := New(fitter)

	in := input([2]float64{1, 2}, [2]float64{2, 3})
	in.Enabled = false
	out := s.Recompute(in)

	assert.Equal(t, StateIdle, out.State)
	assert.False(t, out.KernelRan)
	assert.Nil(t, out.Result)
	fitter.AssertNotCalled(t, "Fit", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecompute_PreconditionFailuresSkipKernel(t *testing.T) {
	fitter := &MockFitter{}
	s := New(fitter)

	in := input([2]float64{1, 2}, [2]float64{2, 3})
	in.YField = "x"
	out := s.Recompute(in)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, core.CodeSameVariables, out.Code)
	assert.ErrorIs(t, out.Err, core.ErrIdenticalFieldSelection)

	out = s.Recompute(input([2]float64{1, 2}))
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, core.CodeNotEnoughData, out.Code)
	assert.False(t, out.KernelRan)

	fitter.AssertNotCalled(t, "Fit", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecompute_ToleranceCommitKeepsReference(t *testing.T) {
	first := &regression.FitResult{
		Slope: 2, Intercept: 1, RSquared: 0.9, N: 3,
		Residuals:      []float64{0.1, -0.2, 0.1},
		ValidPositions: []int{0, 1, 2},
		ResidualPoints: []regression.Point{{X: 1, Y: 0.1}, {X: 2, Y: -0.2}, {X: 3, Y: 0.1}},
	}
	nearly := *first
	nearly.Slope += 1e-11
	nearly.Intercept -= 1e-12
	moved := *first
	moved.Slope += 1e-3

	fitter := &MockFitter{}
	fitter.On("Fit", mock.Anything, "x", "y").Return(first, nil).Once()
	fitter.On("Fit", mock.Anything, "x", "y").Return(&nearly, nil).Once()
	fitter.On("Fit", mock.Anything, "x", "y").Return(&moved, nil).Once()

	rec := &countingRecorder{}
	s := New(fitter, WithRecorder(rec))
	in := input([2]float64{1, 3}, [2]float64{2, 5}, [2]float64{3, 7})

	out := s.Recompute(in)
	require.Equal(t, StateFitted, out.State)
	assert.True(t, out.Changed)
	assert.Same(t, first, out.Result)

	out = s.Recompute(in)
	assert.Equal(t, StateFitted, out.State)
	assert.False(t, out.Changed)
	assert.Same(t, first, s.Result(), "a change below tolerance must keep the held reference")

	out = s.Recompute(in)
	assert.True(t, out.Changed)
	assert.Same(t, &moved, s.Result())

	assert.Equal(t, 2, rec.counts[OutcomeCommitted])
	assert.Equal(t, 1, rec.counts[OutcomeUnchanged])
	fitter.AssertExpectations(t)
}

func TestRecompute_KernelFailureClearsResult(t *testing.T) {
	s := New(olsadapter.NewOLS())

	out := s.Recompute(input([2]float64{1, 2}, [2]float64{2, 4}, [2]float64{3, 6}))
	require.Equal(t, StateFitted, out.State)
	require.NotNil(t, s.Result())

	out = s.Recompute(input([2]float64{2, 1}, [2]float64{2, 5}, [2]float64{2, 9}))
	assert.Equal(t, StateFailed, out.State)
	assert.True(t, out.KernelRan)
	assert.True(t, out.Changed)
	assert.Nil(t, s.Result())
	assert.Equal(t, core.CodeIdenticalX, s.Code())
	assert.Nil(t, s.ResidualsByRow())
}

func TestRecompute_OverflowingValuesFailInsteadOfCommitting(t *testing.T) {
	s := New(olsadapter.NewOLS())
	huge := input([2]float64{1e200, 1}, [2]float64{2e200, 2}, [2]float64{3e200, 4})

	for i := 0; i < 2; i++ {
		s.Invalidate()
		out := s.Recompute(huge)
		assert.Equal(t, StateFailed, out.State)
		assert.Nil(t, s.Result())
		assert.Equal(t, core.CodeNumericOverflow, s.Code())
	}
}

func TestRecompute_RealKernelIsStableAcrossRepeats(t *testing.T) {
	s := New(olsadapter.NewOLS())
	in := input([2]float64{1, 2.2}, [2]float64{2, 2.8}, [2]float64{3, 3.6}, [2]float64{4, 4.5})

	s.Recompute(in)
	held := s.Result()
	for i := 0; i < 3; i++ {
		s.Invalidate()
		assert.Equal(t, StateStale, s.State())
		out := s.Recompute(in)
		assert.False(t, out.Changed)
		assert.Same(t, held, s.Result())
	}
}

func TestResidualsByRow_MapsToOriginalIndices(t *testing.T) {
	s := New(olsadapter.NewOLS())
	in := input([2]float64{1, 2}, [2]float64{2, 5}, [2]float64{3, 6})
	in.RowIndices = []int{0, 4, 7}

	s.Recompute(in)
	byRow := s.ResidualsByRow()
	require.Len(t, byRow, 3)
	for _, idx := range []int{0, 4, 7} {
		_, ok := byRow[idx]
		assert.True(t, ok, fmt.Sprintf("row %d should have a residual", idx))
	}

	// Same values, shifted indices: the result is kept but the mapping follows.
	in.RowIndices = []int{0, 3, 6}
	out := s.Recompute(in)
	assert.False(t, out.Changed)
	_, ok := s.ResidualsByRow()[6]
	assert.True(t, ok)
}

func TestWithTolerance(t *testing.T) {
	s := New(olsadapter.NewOLS(), WithTolerance(1e-3))
	assert.Equal(t, 1e-3, s.Tolerance())
	assert.Equal(t, regression.DefaultTolerance, New(olsadapter.NewOLS()).Tolerance())
}
