package session

import (
	"fmt"

	"lraide/domain/core"
	"lraide/domain/regression"
	"lraide/domain/selection"
	"lraide/domain/viewport"
	geometry "lraide/internal/viewport"
)

// dataDomainsLocked fits both axes to the included rows, per axis.
func (s *Session) dataDomainsLocked() (viewport.Domain, viewport.Domain) {
	var xs, ys []float64
	for _, i := range s.inclusion.Bounded(s.data.Len()).Sorted() {
		r := s.data.Row(i)
		if x, ok := r.Get(s.xField).Float(); ok && s.xField != "" {
			xs = append(xs, x)
		}
		if y, ok := r.Get(s.yField).Float(); ok && s.yField != "" {
			ys = append(ys, y)
		}
	}
	return geometry.PaddedDomain(xs, s.opts.Padding), geometry.PaddedDomain(ys, s.opts.Padding)
}

// resolveAutoLocked replaces Auto domains with the data-fitted ones so that
// pan and zoom have explicit bounds to work on.
func (s *Session) resolveAutoLocked() viewport.State {
	st := s.view
	if st.X.Auto || st.Y.Auto {
		dx, dy := s.dataDomainsLocked()
		if st.X.Auto {
			st.X = dx
		}
		if st.Y.Auto {
			st.Y = dy
		}
	}
	return st
}

func (s *Session) setViewLocked(st viewport.State) {
	if st == s.view {
		return
	}
	s.view = st
	s.emitLocked(EventViewport, "", "")
}

// PanBy shifts both domains by (dx, dy) in data units. A pan whose bounds
// would leave the float64 range is rejected and the view kept.
func (s *Session) PanBy(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.resolveAutoLocked()
	var err error
	if st.X, err = geometry.Pan(st.X, dx); err != nil {
		return s.rejectLocked(err)
	}
	if st.Y, err = geometry.Pan(st.Y, dy); err != nil {
		return s.rejectLocked(err)
	}
	s.acceptLocked()
	s.setViewLocked(st)
	return nil
}

// ZoomBy scales both domains by factor about the given point, or about the
// center of the current view when about is nil. factor < 1 zooms in.
func (s *Session) ZoomBy(factor float64, about *regression.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := geometry.CheckFactor(factor); err != nil {
		return s.rejectLocked(err)
	}
	st := s.resolveAutoLocked()
	cx, cy := geometry.Center(st.X), geometry.Center(st.Y)
	if about != nil {
		cx, cy = about.X, about.Y
	}
	var err error
	if st.X, err = geometry.Zoom(st.X, factor, cx); err != nil {
		return s.rejectLocked(err)
	}
	if st.Y, err = geometry.Zoom(st.Y, factor, cy); err != nil {
		return s.rejectLocked(err)
	}
	s.acceptLocked()
	s.setViewLocked(st)
	return nil
}

// ZoomIn narrows the view by the configured zoom step.
func (s *Session) ZoomIn() error {
	return s.ZoomBy(1/s.opts.ZoomStep, nil)
}

// ZoomOut widens the view by the configured zoom step.
func (s *Session) ZoomOut() error {
	return s.ZoomBy(s.opts.ZoomStep, nil)
}

// ResetView fits both domains to the included rows with padding and clears
// the active tool.
func (s *Session) ResetView() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dx, dy := s.dataDomainsLocked()
	s.setViewLocked(viewport.State{X: dx, Y: dy, Tool: viewport.ToolNone})
}

// SetTool selects the active interaction tool.
func (s *Session) SetTool(tool viewport.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !tool.Valid() {
		return s.rejectLocked(core.NewViewportError(fmt.Sprintf("unknown tool %q", tool)))
	}
	st := s.view
	st.Tool = tool
	s.setViewLocked(st)
	return nil
}

// SetDomains replaces both axis domains, e.g. after the renderer applied its
// own zoom. Use viewport.AutoDomain() to return an axis to fit-to-data.
func (s *Session) SetDomains(x, y viewport.Domain) error {
	return s.UpdateDomains(&x, &y)
}

// UpdateDomains replaces the given axis domains; a nil axis keeps its current
// domain. Unordered or non-finite ranges are rejected and nothing changes.
func (s *Session) UpdateDomains(x, y *viewport.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.view
	for _, axis := range []struct {
		name string
		in   *viewport.Domain
		out  *viewport.Domain
	}{{"x", x, &st.X}, {"y", y, &st.Y}} {
		if axis.in == nil {
			continue
		}
		if !axis.in.Valid() {
			return s.rejectLocked(core.NewViewportError(fmt.Sprintf("invalid %s domain %s", axis.name, *axis.in)))
		}
		*axis.out = *axis.in
	}
	s.acceptLocked()
	s.setViewLocked(st)
	return nil
}

// BoxSelect adds every included row whose (x, y) lies inside rect (edges
// included) to the highlight set and returns the rows it matched. The
// inclusion set, and so the fit, is untouched.
func (s *Session) BoxSelect(rect geometry.Rect) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []int{}
	if s.xField == "" || s.yField == "" {
		return matched
	}
	for _, i := range s.inclusion.Bounded(s.data.Len()).Sorted() {
		r := s.data.Row(i)
		x, okX := r.Get(s.xField).Float()
		y, okY := r.Get(s.yField).Float()
		if okX && okY && rect.Contains(x, y) {
			matched = append(matched, i)
		}
	}
	next := s.highlight.Union(selection.Of(matched...))
	if !next.Equal(s.highlight) {
		s.highlight = next
		s.emitLocked(EventHighlight, "", "")
	}
	return matched
}

// HighlightRows adds rows to the highlight set.
func (s *Session) HighlightRows(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range indices {
		if i < 0 || i >= s.data.Len() {
			return s.rejectLocked(core.NewRowRangeError(i, s.data.Len()))
		}
	}
	next := s.highlight.Union(selection.Of(indices...))
	if !next.Equal(s.highlight) {
		s.highlight = next
		s.emitLocked(EventHighlight, "", "")
	}
	return nil
}

// ClearHighlight empties the highlight set.
func (s *Session) ClearHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.highlight.Len() == 0 {
		return
	}
	s.highlight = selection.Of()
	s.emitLocked(EventHighlight, "", "")
}
