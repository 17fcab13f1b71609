package regression

import (
	"fmt"
	"math"
)

// DefaultTolerance is the absolute tolerance used when deciding whether a new
// fit differs from the one already held.
const DefaultTolerance = 1e-9

// Point is an (x, y) pair in data coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FitResult is the outcome of an ordinary least squares fit of y on x.
//
// A FitResult is immutable once returned: a recompute builds a new value and
// never edits an old one, so consumers may compare results by pointer.
type FitResult struct {
	Slope                  float64 `json:"slope"`
	Intercept              float64 `json:"intercept"`
	RSquared               float64 `json:"r_squared"`
	StandardError          float64 `json:"standard_error"`
	StandardErrorSlope     float64 `json:"standard_error_slope"`
	StandardErrorIntercept float64 `json:"standard_error_intercept"`
	PValueSlope            float64 `json:"p_value_slope"`
	PValueIntercept        float64 `json:"p_value_intercept"`

	// N is the number of valid rows (finite x and y) that entered the fit.
	N int `json:"n"`

	// Residuals holds y - ŷ per valid row, in input order.
	Residuals []float64 `json:"residuals"`

	// ValidPositions holds, for each residual, the position of its row in
	// the input row slice. len(ValidPositions) == len(Residuals) == N.
	ValidPositions []int `json:"valid_positions"`

	// ResidualPoints pairs each valid row's x with its residual.
	ResidualPoints []Point `json:"residual_points"`

	// Line holds the fitted values at the minimum and maximum x.
	Line [2]Point `json:"line"`
}

// Predict returns the fitted y at x.
func (r *FitResult) Predict(x float64) float64 {
	return r.Intercept + r.Slope*x
}

// DegreesOfFreedom returns n - 2, the residual degrees of freedom.
func (r *FitResult) DegreesOfFreedom() int {
	if r.N < 2 {
		return 0
	}
	return r.N - 2
}

// Equation renders the fitted line, e.g. "y = 2.0000x + 0.5000".
func (r *FitResult) Equation() string {
	sign := "+"
	intercept := r.Intercept
	if intercept < 0 {
		sign = "-"
		intercept = -intercept
	}
	return fmt.Sprintf("y = %.4fx %s %.4f", r.Slope, sign, intercept)
}

// WithinTolerance reports whether every numeric field of r and other differs
// by at most tol. Results over a different number of rows never match.
func (r *FitResult) WithinTolerance(other *FitResult, tol float64) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.N != other.N || len(r.Residuals) != len(other.Residuals) {
		return false
	}
	scalars := [][2]float64{
		{r.Slope, other.Slope},
		{r.Intercept, other.Intercept},
		{r.RSquared, other.RSquared},
		{r.StandardError, other.StandardError},
		{r.StandardErrorSlope, other.StandardErrorSlope},
		{r.StandardErrorIntercept, other.StandardErrorIntercept},
		{r.PValueSlope, other.PValueSlope},
		{r.PValueIntercept, other.PValueIntercept},
		{r.Line[0].X, other.Line[0].X},
		{r.Line[0].Y, other.Line[0].Y},
		{r.Line[1].X, other.Line[1].X},
		{r.Line[1].Y, other.Line[1].Y},
	}
	for _, p := range scalars {
		if !within(p[0], p[1], tol) {
			return false
		}
	}
	for i := range r.Residuals {
		if !within(r.Residuals[i], other.Residuals[i], tol) {
			return false
		}
		if r.ValidPositions[i] != other.ValidPositions[i] {
			return false
		}
		if !within(r.ResidualPoints[i].X, other.ResidualPoints[i].X, tol) {
			return false
		}
	}
	return true
}

func within(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol
}
