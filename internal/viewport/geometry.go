// Package viewport holds the pure axis arithmetic behind pan, zoom, reset
// and box selection. Session state lives in internal/session.
package viewport

import (
	"fmt"
	"math"

	"lraide/domain/core"
	domain "lraide/domain/viewport"

	"github.com/montanaflynn/stats"
)

// DefaultPadding is the fraction of the data range added on each side when
// fitting a domain to the data.
const DefaultPadding = 0.1

// PaddedDomain fits an axis to values with padding on each side. Non-finite
// values are ignored; with no values left the axis stays on Auto. A zero-width
// range is widened by padding·|v| (or ±1 around zero).
func PaddedDomain(values []float64, padding float64) domain.Domain {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return domain.AutoDomain()
	}

	lo, _ := stats.Min(finite)
	hi, _ := stats.Max(finite)
	span := hi - lo
	if span == 0 {
		pad := math.Abs(lo) * padding
		if pad == 0 {
			pad = 1
		}
		return domain.Fixed(lo-pad, hi+pad)
	}
	pad := span * padding
	return domain.Fixed(lo-pad, hi+pad)
}

// Pan shifts an explicit domain by delta. A shift that leaves the float64
// range is rejected.
func Pan(d domain.Domain, delta float64) (domain.Domain, error) {
	if d.Auto {
		return d, nil
	}
	return checkResult(domain.Fixed(d.Min+delta, d.Max+delta))
}

// Zoom scales an explicit domain's span by factor around center, keeping
// center at the same relative position. factor < 1 zooms in.
func Zoom(d domain.Domain, factor, center float64) (domain.Domain, error) {
	if err := CheckFactor(factor); err != nil {
		return d, err
	}
	if d.Auto {
		return d, nil
	}
	lo := center - (center-d.Min)*factor
	hi := center + (d.Max-center)*factor
	return checkResult(domain.Fixed(lo, hi))
}

func checkResult(d domain.Domain) (domain.Domain, error) {
	if !d.Valid() {
		return d, core.NewViewportError(fmt.Sprintf("domain %s is out of range", d))
	}
	return d, nil
}

// Center returns the midpoint of an explicit domain.
func Center(d domain.Domain) float64 {
	return d.Min + (d.Max-d.Min)/2
}

// CheckFactor validates a zoom factor.
func CheckFactor(factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return core.NewViewportError(fmt.Sprintf("zoom factor must be positive and finite, got %v", factor))
	}
	return nil
}

// Rect is a box in data coordinates with inclusive bounds.
type Rect struct {
	X domain.Domain `json:"x"`
	Y domain.Domain `json:"y"`
}

// NewRect builds a rectangle from two corner points in any order.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{X: domain.Fixed(x0, x1), Y: domain.Fixed(y0, y1)}
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return r.X.Contains(x) && r.Y.Contains(y)
}
