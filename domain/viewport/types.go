package viewport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Tool is the active plot interaction tool.
type Tool string

const (
	ToolNone   Tool = ""
	ToolPan    Tool = "pan"
	ToolSelect Tool = "select"
)

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolNone, ToolPan, ToolSelect:
		return true
	}
	return false
}

// autoSentinel is the wire form of an automatic (fit-to-data) axis.
const autoSentinel = "auto"

// Domain is one axis range: either an explicit [Min, Max] pair or Auto,
// meaning the renderer fits the axis to the data.
type Domain struct {
	Min  float64
	Max  float64
	Auto bool
}

// AutoDomain returns the fit-to-data sentinel.
func AutoDomain() Domain {
	return Domain{Auto: true}
}

// Fixed returns an explicit range, ordered so that Min <= Max.
func Fixed(lo, hi float64) Domain {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Domain{Min: lo, Max: hi}
}

// Valid reports whether d is Auto or a finite range with Min <= Max.
func (d Domain) Valid() bool {
	if d.Auto {
		return true
	}
	for _, v := range []float64{d.Min, d.Max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return d.Min <= d.Max
}

// Span returns Max - Min for explicit domains and 0 for Auto.
func (d Domain) Span() float64 {
	if d.Auto {
		return 0
	}
	return d.Max - d.Min
}

// Contains reports whether v lies in [Min, Max]. Auto contains everything.
func (d Domain) Contains(v float64) bool {
	if d.Auto {
		return true
	}
	return v >= d.Min && v <= d.Max
}

func (d Domain) String() string {
	if d.Auto {
		return autoSentinel
	}
	return fmt.Sprintf("[%g, %g]", d.Min, d.Max)
}

// MarshalJSON encodes Auto as "auto" and explicit ranges as [min, max].
func (d Domain) MarshalJSON() ([]byte, error) {
	if d.Auto {
		return json.Marshal(autoSentinel)
	}
	return json.Marshal([2]float64{d.Min, d.Max})
}

// UnmarshalJSON accepts "auto", ["auto","auto"] and [min, max]. Bounds given
// in descending order are swapped.
func (d *Domain) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != autoSentinel {
			return fmt.Errorf("unknown domain sentinel %q", s)
		}
		*d = AutoDomain()
		return nil
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("invalid domain: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("invalid domain: want 2 bounds, got %d", len(pair))
	}
	var lo, hi float64
	if json.Unmarshal(pair[0], &s) == nil && s == autoSentinel {
		*d = AutoDomain()
		return nil
	}
	if err := json.Unmarshal(pair[0], &lo); err != nil {
		return fmt.Errorf("invalid domain lower bound: %w", err)
	}
	if err := json.Unmarshal(pair[1], &hi); err != nil {
		return fmt.Errorf("invalid domain upper bound: %w", err)
	}
	*d = Fixed(lo, hi)
	return nil
}

// State is the per-session viewport: axis domains and the active tool.
type State struct {
	X    Domain `json:"x_domain"`
	Y    Domain `json:"y_domain"`
	Tool Tool   `json:"active_tool"`
}

// DefaultState has both axes on Auto and no tool selected.
func DefaultState() State {
	return State{X: AutoDomain(), Y: AutoDomain(), Tool: ToolNone}
}
