package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/snapshot"
	"lraide/internal/recompute"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
	notices  map[string]int
	open     int
	dropped  int
}

func (o *fakeObserver) RecordRecompute(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func (o *fakeObserver) SetOpenSessions(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = n
}

func (o *fakeObserver) RecordNotice(code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.notices == nil {
		o.notices = map[string]int{}
	}
	o.notices[code]++
}

func (o *fakeObserver) RecordDroppedEvent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func pairs(t *testing.T, xy ...[2]float64) *dataset.Dataset {
	t.Helper()
	rows := make([]dataset.Row, len(xy))
	for i, p := range xy {
		rows[i] = dataset.Row{"x": dataset.Number(p[0]), "y": dataset.Number(p[1])}
	}
	ds, err := dataset.New([]string{"x", "y"}, rows)
	require.NoError(t, err)
	return ds
}

func line(t *testing.T) *dataset.Dataset {
	return pairs(t, [2]float64{1, 2}, [2]float64{2, 4}, [2]float64{3, 6})
}

func five(t *testing.T) *dataset.Dataset {
	return pairs(t,
		[2]float64{1, 2.2}, [2]float64{2, 2.8}, [2]float64{3, 3.6},
		[2]float64{4, 4.5}, [2]float64{5, 5.1},
	)
}

func newTestSession(t *testing.T, ds *dataset.Dataset) *Session {
	t.Helper()
	return NewRegistry(Options{}).Create("test.csv", ds)
}

func TestNewSession_Defaults(t *testing.T) {
	s := newTestSession(t, line(t))
	v := s.View()

	assert.Equal(t, "x", v.IndependentField)
	assert.Equal(t, "y", v.DependentField)
	assert.False(t, v.IsFitted)
	assert.Equal(t, []int{0, 1, 2}, v.Inclusion)
	assert.Empty(t, v.Highlight)
	assert.True(t, v.Viewport.X.Auto)
	assert.Equal(t, snapshot.TabAnalysis, v.ActiveTab)
	assert.Equal(t, recompute.StateIdle, v.FitState)
	assert.Nil(t, v.Fit)
}

func TestPlot_PerfectLine(t *testing.T) {
	s := newTestSession(t, line(t))
	require.NoError(t, s.Plot())

	fit := s.Fit()
	require.NotNil(t, fit)
	assert.InDelta(t, 2.0, fit.Slope, 1e-12)
	assert.InDelta(t, 0.0, fit.Intercept, 1e-12)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-12)
	state, code := s.FitState()
	assert.Equal(t, recompute.StateFitted, state)
	assert.Empty(t, code)
	assert.Equal(t, []int{0, 1, 2}, s.View().ContributingRows)
}

func TestPlot_RejectsMissingOrSameFields(t *testing.T) {
	s := newTestSession(t, line(t))

	require.NoError(t, s.SetFields("x", "x"))
	err := s.Plot()
	assert.ErrorIs(t, err, core.ErrIdenticalFieldSelection)
	v := s.View()
	assert.False(t, v.IsFitted)
	assert.Equal(t, core.CodeSameVariables, v.NoticeCode)

	require.NoError(t, s.SetFields("", "y"))
	assert.ErrorIs(t, s.Plot(), core.ErrNoFieldSelected)
}

func TestSetFields_UnknownColumnLeavesStateUntouched(t *testing.T) {
	s := newTestSession(t, line(t))
	before := s.View()

	err := s.SetFields("x", "nope")
	assert.ErrorIs(t, err, core.ErrColumnNotFound)
	after := s.View()
	assert.Equal(t, before.IndependentField, after.IndependentField)
	assert.Equal(t, before.DependentField, after.DependentField)
	assert.Equal(t, core.CodeInvalidColumnOperation, after.NoticeCode)
}

func TestDeleteRows_ReindexesInclusionAndHighlight(t *testing.T) {
	s := newTestSession(t, five(t))
	s.SelectNone()
	for _, i := range []int{0, 2, 4} {
		require.NoError(t, s.ToggleRow(i, true))
	}
	require.NoError(t, s.HighlightRows([]int{1, 2, 3}))

	require.NoError(t, s.DeleteRows([]int{2}))

	v := s.View()
	assert.Equal(t, 4, v.RowCount)
	assert.Equal(t, []int{0, 3}, v.Inclusion)
	assert.Equal(t, []int{1, 2}, v.Highlight)
}

func TestDeleteRows_RejectsBadIndicesAtomically(t *testing.T) {
	s := newTestSession(t, five(t))

	assert.ErrorIs(t, s.DeleteRows([]int{1, 9}), core.ErrRowOutOfRange)
	assert.Error(t, s.DeleteRows([]int{1, 1}))
	assert.Equal(t, 5, s.View().RowCount)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, s.View().Inclusion)
}

func TestDeleteIncludedRows(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.ToggleRow(1, false))
	require.NoError(t, s.ToggleRow(3, false))

	require.NoError(t, s.DeleteIncludedRows())

	v := s.View()
	assert.Equal(t, 2, v.RowCount)
	assert.Empty(t, v.Inclusion)
	assert.Equal(t, 2.0, v.Dataset.Row(0).Get("x").Num)
	assert.Equal(t, 4.0, v.Dataset.Row(1).Get("x").Num)
}

func TestSelectAll_IsIdempotent(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())
	require.NoError(t, s.ToggleRow(0, false))
	s.SelectAll()

	fit := s.Fit()
	version := s.View().Version
	s.SelectAll()

	assert.Same(t, fit, s.Fit())
	assert.Equal(t, version, s.View().Version)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, s.View().Inclusion)
}

func TestSelectAllAndNone_ClearStaleNotice(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.ToggleRow(0, false))

	assert.Error(t, s.ToggleRow(99, true))
	require.Equal(t, core.CodeRowOutOfRange, s.View().NoticeCode)
	s.SelectAll()
	assert.Empty(t, s.View().NoticeCode)

	assert.Error(t, s.ToggleRow(99, true))
	s.SelectNone()
	assert.Empty(t, s.View().NoticeCode)
}

func TestToggleRow_RecomputesAndRejectsOutOfRange(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())
	full := s.Fit()

	require.NoError(t, s.ToggleRow(4, false))
	partial := s.Fit()
	require.NotNil(t, partial)
	assert.NotSame(t, full, partial)
	assert.Equal(t, 4, partial.N)

	err := s.ToggleRow(7, true)
	assert.ErrorIs(t, err, core.ErrRowOutOfRange)
	assert.Same(t, partial, s.Fit())
}

func TestSelectNone_FailsWithNotEnoughData(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())

	s.SelectNone()

	state, code := s.FitState()
	assert.Equal(t, recompute.StateFailed, state)
	assert.Equal(t, core.CodeNotEnoughData, code)
	assert.Nil(t, s.Fit())
	assert.Equal(t, core.CodeNotEnoughData, s.View().ErrorCode)
}

func TestIdenticalX_FailsAndClearsFit(t *testing.T) {
	s := newTestSession(t, pairs(t, [2]float64{1, 2}, [2]float64{1, 3}, [2]float64{1, 4}))
	require.NoError(t, s.Plot())

	state, code := s.FitState()
	assert.Equal(t, recompute.StateFailed, state)
	assert.Equal(t, core.CodeIdenticalX, code)
	assert.Nil(t, s.Fit())
}

func TestSetCell_OnlyFieldColumnsRecompute(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.AddColumn("note"))
	require.NoError(t, s.Plot())
	fit := s.Fit()

	require.NoError(t, s.SetCell(0, "note", dataset.Number(42)))
	assert.Same(t, fit, s.Fit())

	require.NoError(t, s.SetCell(0, "y", dataset.Number(10)))
	assert.NotSame(t, fit, s.Fit())
	assert.NotEqual(t, fit.Slope, s.Fit().Slope)

	assert.ErrorIs(t, s.SetCell(9, "y", dataset.Number(1)), core.ErrRowOutOfRange)
	assert.ErrorIs(t, s.SetCell(0, "missing", dataset.Number(1)), core.ErrColumnNotFound)
}

func TestSetCell_MissingValueExcludedFromFit(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())

	require.NoError(t, s.SetCell(2, "y", dataset.Missing()))

	fit := s.Fit()
	require.NotNil(t, fit)
	assert.Equal(t, 4, fit.N)
	v := s.View()
	assert.Equal(t, []int{0, 1, 3, 4}, v.ContributingRows)
	assert.NotContains(t, v.ResidualsByRow, 2)
	assert.Contains(t, v.ResidualsByRow, 4)
}

func TestAddRow_AppendsZerosAndIncludes(t *testing.T) {
	s := newTestSession(t, line(t))
	require.NoError(t, s.Plot())

	idx := s.AddRow()

	assert.Equal(t, 3, idx)
	v := s.View()
	assert.Equal(t, []int{0, 1, 2, 3}, v.Inclusion)
	assert.Equal(t, dataset.Number(0), v.Dataset.Row(3).Get("x"))
	require.NotNil(t, v.Fit)
	assert.Equal(t, 4, v.Fit.N)
	assert.InDelta(t, 2.0, v.Fit.Slope, 1e-12)
}

func TestAddColumn_DoesNotTouchInclusion(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.ToggleRow(2, false))

	require.NoError(t, s.AddColumn("z"))
	assert.ErrorIs(t, s.AddColumn("z"), core.ErrInvalidColumnOperation)

	v := s.View()
	assert.Equal(t, []string{"x", "y", "z"}, v.Columns)
	assert.Equal(t, []int{0, 1, 3, 4}, v.Inclusion)
	assert.Equal(t, dataset.Number(0), v.Dataset.Row(4).Get("z"))
}

func TestDeleteColumn_ClearsChosenField(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())

	require.NoError(t, s.DeleteColumn("y"))

	v := s.View()
	assert.Empty(t, v.DependentField)
	assert.Equal(t, "x", v.IndependentField)
	assert.Equal(t, recompute.StateIdle, v.FitState)
	assert.Nil(t, v.Fit)
	assert.ErrorIs(t, s.DeleteColumn("y"), core.ErrInvalidColumnOperation)
}

func TestRenameColumn_FollowsFieldAndKeepsFit(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())
	fit := s.Fit()

	require.NoError(t, s.RenameColumn("x", "dose"))

	v := s.View()
	assert.Equal(t, "dose", v.IndependentField)
	assert.Equal(t, []string{"dose", "y"}, v.Columns)
	assert.Same(t, fit, s.Fit())

	assert.Error(t, s.RenameColumn("dose", "y"))
	assert.Error(t, s.RenameColumn("dose", ""))
}

func TestClearFit(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())

	s.ClearFit()

	state, _ := s.FitState()
	assert.Equal(t, recompute.StateIdle, state)
	assert.Nil(t, s.Fit())
	assert.False(t, s.View().IsFitted)
}

func TestSetActiveTab(t *testing.T) {
	s := newTestSession(t, five(t))

	require.NoError(t, s.SetActiveTab(snapshot.TabSimulation))
	assert.Equal(t, snapshot.TabSimulation, s.View().ActiveTab)
	err := s.SetActiveTab("charts")
	assert.ErrorIs(t, err, core.ErrInvalidTab)
	assert.Equal(t, core.CodeInvalidTab, core.CodeOf(err))
	assert.Equal(t, snapshot.TabSimulation, s.View().ActiveTab)
}

func TestSubscribe_ReceivesFitEventWithView(t *testing.T) {
	s := newTestSession(t, line(t))
	ch, cancel := s.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Plot())

	ev := <-ch
	assert.Equal(t, EventFit, ev.Kind)
	assert.Equal(t, s.ID(), ev.SessionID)
	require.NotNil(t, ev.View)
	require.NotNil(t, ev.View.Fit)
	assert.InDelta(t, 2.0, ev.View.Fit.Slope, 1e-12)
}

func TestSubscribe_NoticeOnRejectedMutation(t *testing.T) {
	s := newTestSession(t, line(t))
	ch, cancel := s.Subscribe(8)
	defer cancel()

	err := s.ToggleRow(-1, true)
	require.Error(t, err)

	ev := <-ch
	assert.Equal(t, EventNotice, ev.Kind)
	assert.Equal(t, core.CodeRowOutOfRange, ev.Code)
}

func TestSubscribe_FullBufferDropsWithoutBlocking(t *testing.T) {
	obs := &fakeObserver{}
	s := NewRegistry(Options{Observer: obs}).Create("a", five(t))
	ch, cancel := s.Subscribe(1)

	s.SelectNone()
	s.SelectAll()

	ev := <-ch
	assert.Equal(t, EventInclusion, ev.Kind)
	obs.mu.Lock()
	assert.Equal(t, 1, obs.dropped)
	obs.mu.Unlock()

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestObserver_RecordsOutcomesAndNotices(t *testing.T) {
	obs := &fakeObserver{}
	s := NewRegistry(Options{Observer: obs}).Create("a", five(t))

	require.NoError(t, s.Plot())
	s.SelectNone()
	_ = s.ToggleRow(99, true)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.outcomes[recompute.OutcomeCommitted])
	assert.Equal(t, 1, obs.outcomes[recompute.OutcomeFailed])
	assert.Equal(t, 1, obs.notices[core.CodeRowOutOfRange])
	assert.Equal(t, 1, obs.open)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	s := newTestSession(t, five(t))
	require.NoError(t, s.Plot())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.ToggleRow(i%5, i%2 == 0)
			_ = s.View()
		}(i)
	}
	wg.Wait()

	v := s.View()
	if len(v.Inclusion) >= 2 {
		require.NotNil(t, v.Fit)
		assert.Equal(t, len(v.Inclusion), v.Fit.N)
	} else {
		assert.True(t, errors.Is(s.scheduler.Err(), core.ErrNotEnoughData))
	}
}
