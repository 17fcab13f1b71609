package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/selection"
	"lraide/domain/snapshot"
	"lraide/domain/viewport"
	"lraide/internal/recompute"
)

// Export captures the session, and its simulation fork if any, as a portable
// snapshot. The fit is not stored; Import recomputes it.
func (s *Session) Export() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.exportLocked()
	if s.simulation != nil {
		s.simulation.mu.Lock()
		snap.Simulation = s.simulation.exportLocked()
		s.simulation.mu.Unlock()
	}
	return snap
}

func (s *Session) exportLocked() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Version:          snapshot.CurrentVersion,
		ID:               s.id,
		Name:             s.name,
		Table:            s.data.Table(),
		IndependentField: s.xField,
		DependentField:   s.yField,
		IsFitted:         s.isFitted,
		Inclusion:        s.inclusion.Sorted(),
		Highlight:        s.highlight.Sorted(),
		Viewport:         s.view,
		ActiveTab:        s.activeTab,
		ExportedAt:       time.Now().UTC(),
	}
}

// ExportJSON is Export encoded as indented JSON.
func (s *Session) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s.Export(), "", "  ")
}

// DecodeSnapshot parses and validates a JSON snapshot. The version is read
// first so that payloads from a newer format fail with a clear message
// instead of a field-level decode error.
func DecodeSnapshot(data []byte) (*snapshot.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, core.NewSnapshotError("payload is not valid JSON")
	}
	version := gjson.GetBytes(data, "version")
	if !version.Exists() {
		return nil, core.NewSnapshotError("missing version")
	}
	if v := version.Int(); v < 1 || v > snapshot.CurrentVersion {
		return nil, core.NewSnapshotError(fmt.Sprintf("unsupported version %d", v))
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, core.NewSnapshotError(err.Error())
	}
	if err := Validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks that a snapshot describes a consistent session: the table
// parses, chosen fields exist, every set index addresses a row and the
// viewport is well formed.
func Validate(snap *snapshot.Snapshot) error {
	if snap == nil {
		return core.NewSnapshotError("empty snapshot")
	}
	if snap.Version < 1 || snap.Version > snapshot.CurrentVersion {
		return core.NewSnapshotError(fmt.Sprintf("unsupported version %d", snap.Version))
	}
	data, err := dataset.FromTable(snap.Table)
	if err != nil {
		return core.NewSnapshotError(err.Error())
	}
	for _, f := range []string{snap.IndependentField, snap.DependentField} {
		if f != "" && !data.HasColumn(f) {
			return core.NewSnapshotError(fmt.Sprintf("field %q is not a column", f))
		}
	}
	for name, set := range map[string][]int{"inclusion": snap.Inclusion, "highlight": snap.Highlight} {
		for _, i := range set {
			if i < 0 || i >= data.Len() {
				return core.NewSnapshotError(fmt.Sprintf("%s index %d outside 0..%d", name, i, data.Len()-1))
			}
		}
	}
	if !snap.Viewport.Tool.Valid() {
		return core.NewSnapshotError(fmt.Sprintf("unknown tool %q", snap.Viewport.Tool))
	}
	for _, d := range []viewport.Domain{snap.Viewport.X, snap.Viewport.Y} {
		if !d.Valid() {
			return core.NewSnapshotError(fmt.Sprintf("invalid domain %s", d))
		}
	}
	switch snap.ActiveTab {
	case "", snapshot.TabAnalysis, snapshot.TabSimulation:
	default:
		return core.NewSnapshotError(fmt.Sprintf("unknown tab %q", snap.ActiveTab))
	}
	if snap.Simulation != nil {
		if snap.Simulation.Simulation != nil {
			return core.NewSnapshotError("nested simulation")
		}
		if err := Validate(snap.Simulation); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint identifies the content of a snapshot, ignoring its session id
// and export time, so identical states hash the same.
func Fingerprint(snap *snapshot.Snapshot) core.Hash {
	c := *snap
	c.ID = ""
	c.ExportedAt = time.Time{}
	if c.Simulation != nil {
		sim := *c.Simulation
		sim.ID = ""
		sim.ExportedAt = time.Time{}
		c.Simulation = &sim
	}
	payload, _ := json.Marshal(c)
	return core.NewHash(payload)
}

// NewRecord encodes snap for a snapshot repository. An empty key defaults
// to the session id followed by the export time.
func NewRecord(key string, snap *snapshot.Snapshot) (*snapshot.Record, error) {
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if key == "" {
		key = fmt.Sprintf("%s-%s", snap.ID, snap.ExportedAt.UTC().Format("20060102T150405.000Z"))
	}
	return &snapshot.Record{
		Key:         key,
		SessionID:   snap.ID,
		Name:        snap.Name,
		Fingerprint: Fingerprint(snap),
		Payload:     payload,
		CreatedAt:   snap.ExportedAt,
	}, nil
}

// fromSnapshot builds a session from a validated snapshot and recomputes its
// fit. The simulation, if any, is restored by the registry.
func fromSnapshot(id core.SessionID, snap *snapshot.Snapshot, opts Options) (*Session, error) {
	data, err := dataset.FromTable(snap.Table)
	if err != nil {
		return nil, core.NewSnapshotError(err.Error())
	}
	s := newSession(id, snap.Name, data, opts)
	s.xField = snap.IndependentField
	s.yField = snap.DependentField
	s.isFitted = snap.IsFitted
	s.inclusion = selection.Of(snap.Inclusion...)
	s.highlight = selection.Of(snap.Highlight...)
	s.view = snap.Viewport
	if snap.ActiveTab != "" {
		s.activeTab = snap.ActiveTab
	}
	s.mu.Lock()
	out := s.recomputeLocked()
	s.mu.Unlock()
	if out.State == recompute.StateFailed {
		s.logger.Debug("imported with failed fit: %v", out.Err)
	}
	return s, nil
}
