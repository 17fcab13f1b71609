package session

import (
	"fmt"

	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/selection"
	"lraide/domain/snapshot"
)

// SetFields chooses the independent (x) and dependent (y) fields. Either may
// be empty to clear it. Unknown columns are rejected.
func (s *Session) SetFields(xField, yField string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range []string{xField, yField} {
		if f != "" && !s.data.HasColumn(f) {
			return s.rejectLocked(fmt.Errorf("%w: %q", core.ErrColumnNotFound, f))
		}
	}
	if xField == s.xField && yField == s.yField {
		return nil
	}
	s.xField, s.yField = xField, yField
	s.acceptLocked()
	s.emitLocked(EventFields, "", "")
	s.recomputeLocked()
	return nil
}

// Plot turns fitting on. Both fields must be chosen and differ.
func (s *Session) Plot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Len() == 0 || s.xField == "" || s.yField == "" {
		return s.rejectLocked(core.ErrNoFieldSelected)
	}
	if s.xField == s.yField {
		return s.rejectLocked(fmt.Errorf("%w: %q", core.ErrIdenticalFieldSelection, s.xField))
	}
	s.acceptLocked()
	if !s.isFitted {
		s.isFitted = true
		s.logger.Debug("fitting enabled for %s ~ %s", s.yField, s.xField)
	}
	s.recomputeLocked()
	return nil
}

// ClearFit turns fitting off and drops the held result.
func (s *Session) ClearFit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isFitted {
		return
	}
	s.isFitted = false
	s.recomputeLocked()
}

// ToggleRow includes or excludes row index from the fit.
func (s *Session) ToggleRow(index int, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= s.data.Len() {
		return s.rejectLocked(core.NewRowRangeError(index, s.data.Len()))
	}
	if s.inclusion.Has(index) == included {
		return nil
	}
	if included {
		s.inclusion = s.inclusion.Add(index)
	} else {
		s.inclusion = s.inclusion.Remove(index)
	}
	s.acceptLocked()
	s.emitLocked(EventInclusion, "", "")
	s.recomputeLocked()
	return nil
}

// SelectAll includes every row. Calling it again is a no-op.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := selection.Range(s.data.Len())
	if s.inclusion.Equal(all) {
		return
	}
	s.inclusion = all
	s.acceptLocked()
	s.emitLocked(EventInclusion, "", "")
	s.recomputeLocked()
}

// SelectNone excludes every row.
func (s *Session) SelectNone() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inclusion.Len() == 0 {
		return
	}
	s.inclusion = selection.Of()
	s.acceptLocked()
	s.emitLocked(EventInclusion, "", "")
	s.recomputeLocked()
}

// DeleteRows removes rows and re-indexes the inclusion and highlight sets:
// members that were deleted drop out, the rest shift down by the number of
// deleted rows below them. Duplicate or out-of-range indices reject the whole
// call.
func (s *Session) DeleteRows(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteRowsLocked(indices)
}

func (s *Session) deleteRowsLocked(indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	next, err := s.data.WithoutRows(indices)
	if err != nil {
		return s.rejectLocked(err)
	}
	deleted := dataset.SortedUnique(indices)

	s.data = next
	s.inclusion = s.inclusion.Reindex(deleted)
	s.highlight = s.highlight.Reindex(deleted)
	s.acceptLocked()
	s.logger.Debug("deleted %d rows, %d remain", len(deleted), next.Len())
	s.emitLocked(EventTable, "", "")
	s.recomputeLocked()
	return nil
}

// DeleteIncludedRows deletes every row currently in the inclusion set,
// leaving an empty inclusion set.
func (s *Session) DeleteIncludedRows() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteRowsLocked(s.inclusion.Bounded(s.data.Len()).Sorted())
}

// AddRow appends a row of zeros, includes it in the fit and returns its index.
func (s *Session) AddRow() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = s.data.WithRow(nil)
	idx := s.data.Len() - 1
	s.inclusion = s.inclusion.Add(idx)
	s.acceptLocked()
	s.emitLocked(EventTable, "", "")
	s.recomputeLocked()
	return idx
}

// SetCell replaces one cell. The fit is recomputed only when column is one of
// the chosen fields.
func (s *Session) SetCell(index int, column string, v dataset.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.data.WithCell(index, column, v)
	if err != nil {
		return s.rejectLocked(err)
	}
	s.data = next
	s.acceptLocked()
	s.emitLocked(EventTable, "", "")
	if column == s.xField || column == s.yField {
		s.recomputeLocked()
	}
	return nil
}

// AddColumn appends a column filled with zeros. The inclusion set is not
// touched.
func (s *Session) AddColumn(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.data.WithColumn(name, dataset.Number(0))
	if err != nil {
		return s.rejectLocked(err)
	}
	s.data = next
	s.acceptLocked()
	s.emitLocked(EventTable, "", "")
	return nil
}

// DeleteColumn drops a column. A chosen field equal to it is cleared.
func (s *Session) DeleteColumn(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.data.WithoutColumn(name)
	if err != nil {
		return s.rejectLocked(err)
	}
	s.data = next
	s.acceptLocked()

	fieldsChanged := false
	if s.xField == name {
		s.xField = ""
		fieldsChanged = true
	}
	if s.yField == name {
		s.yField = ""
		fieldsChanged = true
	}
	s.emitLocked(EventTable, "", "")
	if fieldsChanged {
		s.emitLocked(EventFields, "", "")
		s.recomputeLocked()
	}
	return nil
}

// RenameColumn renames a column. A chosen field equal to it follows the new
// name. The fit inputs are numerically unchanged, so the held result keeps
// its identity.
func (s *Session) RenameColumn(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldName == newName {
		return nil
	}
	next, err := s.data.WithRenamedColumn(oldName, newName)
	if err != nil {
		return s.rejectLocked(err)
	}
	s.data = next
	s.acceptLocked()

	fieldsChanged := false
	if s.xField == oldName {
		s.xField = newName
		fieldsChanged = true
	}
	if s.yField == oldName {
		s.yField = newName
		fieldsChanged = true
	}
	s.emitLocked(EventTable, "", "")
	if fieldsChanged {
		s.emitLocked(EventFields, "", "")
		s.recomputeLocked()
	}
	return nil
}

// SetActiveTab switches between the analysis and simulation views.
func (s *Session) SetActiveTab(tab snapshot.Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tab != snapshot.TabAnalysis && tab != snapshot.TabSimulation {
		return s.rejectLocked(fmt.Errorf("%w %q", core.ErrInvalidTab, tab))
	}
	if s.activeTab == tab {
		return nil
	}
	s.activeTab = tab
	s.emitLocked(EventTab, "", "")
	return nil
}

// Rename changes the display name.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}
