// Package regression implements the closed-form ordinary least squares kernel
// for simple linear regression of one field on another.
package regression

import (
	"fmt"
	"math"

	"lraide/domain/core"
	"lraide/domain/dataset"
	domain "lraide/domain/regression"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// epsilon guards the zero-variance checks on x and y.
const epsilon = 1e-9

// OLS fits y = intercept + slope·x. It holds no state.
type OLS struct{}

// NewOLS creates the kernel.
func NewOLS() *OLS {
	return &OLS{}
}

// Fit runs the kernel. See the package-level Fit.
func (k *OLS) Fit(rows []dataset.Row, xField, yField string) (*domain.FitResult, error) {
	return Fit(rows, xField, yField)
}

// Fit computes the OLS fit of yField on xField over rows. Rows where either
// field is missing or non-finite are skipped. The result's residuals follow
// the order of the valid rows in the input.
//
// Fails with core.ErrNotEnoughData when fewer than two rows are valid, with
// core.ErrIdenticalIndependentValues when x has no spread and with
// core.ErrNonFiniteFit when the values are too large to fit in float64.
func Fit(rows []dataset.Row, xField, yField string) (*domain.FitResult, error) {
	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	positions := make([]int, 0, len(rows))
	for i, r := range rows {
		x, okX := r.Get(xField).Float()
		y, okY := r.Get(yField).Float()
		if !okX || !okY {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
		positions = append(positions, i)
	}

	n := len(xs)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d valid rows", core.ErrNotEnoughData, n)
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
		sumY2 += ys[i] * ys[i]
	}
	if !finite(sumX, sumY, sumXY, sumX2, sumY2) {
		return nil, fmt.Errorf("%w: sums overflow for %s on %s", core.ErrNonFiniteFit, yField, xField)
	}
	fn := float64(n)
	meanX := sumX / fn
	meanY := sumY / fn

	sxx := sumX2 - (sumX*sumX)/fn
	if !finite(sxx) {
		return nil, fmt.Errorf("%w: x variance overflows for %s", core.ErrNonFiniteFit, xField)
	}
	if math.Abs(sxx) < epsilon {
		return nil, fmt.Errorf("%w: %s", core.ErrIdenticalIndependentValues, xField)
	}

	slope := (fn*sumXY - sumX*sumY) / (fn*sumX2 - sumX*sumX)
	intercept := meanY - slope*meanX

	minX, _ := stats.Min(xs)
	maxX, _ := stats.Max(xs)

	ssTotal := sumY2 - (sumY*sumY)/fn
	if !finite(slope, intercept, ssTotal) {
		return nil, fmt.Errorf("%w: coefficients overflow for %s on %s", core.ErrNonFiniteFit, yField, xField)
	}
	if math.Abs(ssTotal) < epsilon {
		return flatFit(xs, positions, intercept, meanY, minX, maxX), nil
	}

	residuals := make([]float64, n)
	residualPoints := make([]domain.Point, n)
	var ssResidual float64
	for i := 0; i < n; i++ {
		res := ys[i] - (intercept + slope*xs[i])
		residuals[i] = res
		residualPoints[i] = domain.Point{X: xs[i], Y: res}
		ssResidual += res * res
	}

	result := &domain.FitResult{
		Slope:           slope,
		Intercept:       intercept,
		RSquared:        1 - ssResidual/ssTotal,
		PValueSlope:     1,
		PValueIntercept: 1,
		N:               n,
		Residuals:       residuals,
		ValidPositions:  positions,
		ResidualPoints:  residualPoints,
		Line: [2]domain.Point{
			{X: minX, Y: intercept + slope*minX},
			{X: maxX, Y: intercept + slope*maxX},
		},
	}

	// With two rows the line passes through both points and there are no
	// residual degrees of freedom left; errors stay at zero.
	df := n - 2
	if df > 0 {
		stdErr := math.Sqrt(ssResidual / float64(df))
		mse := stdErr * stdErr
		result.StandardError = stdErr
		result.StandardErrorSlope = math.Sqrt(mse / sxx)
		result.StandardErrorIntercept = math.Sqrt(mse * (1/fn + (meanX*meanX)/sxx))
		result.PValueSlope = coefficientPValue(slope, result.StandardErrorSlope, df)
		result.PValueIntercept = coefficientPValue(intercept, result.StandardErrorIntercept, df)
	}

	if !finite(ssResidual, result.RSquared, result.StandardError,
		result.StandardErrorSlope, result.StandardErrorIntercept,
		result.Line[0].Y, result.Line[1].Y) {
		return nil, fmt.Errorf("%w: residuals overflow for %s on %s", core.ErrNonFiniteFit, yField, xField)
	}
	return result, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// flatFit is the result when every y is identical: a horizontal line at the
// mean with zero residuals. rSquared is reported as 1.
func flatFit(xs []float64, positions []int, intercept, meanY, minX, maxX float64) *domain.FitResult {
	n := len(xs)
	residualPoints := make([]domain.Point, n)
	for i, x := range xs {
		residualPoints[i] = domain.Point{X: x, Y: 0}
	}
	return &domain.FitResult{
		Slope:           0,
		Intercept:       intercept,
		RSquared:        1,
		PValueSlope:     1,
		PValueIntercept: 1,
		N:               n,
		Residuals:       make([]float64, n),
		ValidPositions:  positions,
		ResidualPoints:  residualPoints,
		Line: [2]domain.Point{
			{X: minX, Y: meanY},
			{X: maxX, Y: meanY},
		},
	}
}

// coefficientPValue is the two-sided Student t p-value for H0: coefficient = 0.
func coefficientPValue(coefficient, stdErr float64, df int) float64 {
	if df <= 0 {
		return 1.0
	}
	if stdErr == 0 {
		if coefficient == 0 {
			return 1.0
		}
		return 0.0
	}
	t := coefficient / stdErr
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return 2 * (1 - tDist.CDF(math.Abs(t)))
}
