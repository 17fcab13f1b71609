package snapshot

import (
	"time"

	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/viewport"
)

// CurrentVersion is the snapshot format version written by Export.
const CurrentVersion = 1

// Tab names the view shown for a session.
type Tab string

const (
	TabAnalysis   Tab = "analysis"
	TabSimulation Tab = "simulation"
)

// Snapshot is the portable form of one session. Sets are ascending index
// lists; domains keep their "auto" sentinel. Fit results are not stored:
// they are recomputed on import.
type Snapshot struct {
	Version          int            `json:"version"`
	ID               core.SessionID `json:"id"`
	Name             string         `json:"name"`
	Table            dataset.Table  `json:"table"`
	IndependentField string         `json:"independent_field"`
	DependentField   string         `json:"dependent_field"`
	IsFitted         bool           `json:"is_fitted"`
	Inclusion        []int          `json:"inclusion"`
	Highlight        []int          `json:"highlight"`
	Viewport         viewport.State `json:"viewport"`
	ActiveTab        Tab            `json:"active_tab"`
	Simulation       *Snapshot      `json:"simulation,omitempty"`
	ExportedAt       time.Time      `json:"exported_at"`
}

// Record is a stored snapshot together with its lookup metadata.
type Record struct {
	Key         string         `json:"key" db:"snapshot_key"`
	SessionID   core.SessionID `json:"session_id" db:"session_id"`
	Name        string         `json:"name" db:"name"`
	Fingerprint core.Hash      `json:"fingerprint" db:"fingerprint"`
	Payload     []byte         `json:"-" db:"payload"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
