package regression

import (
	"math"
	"math/rand"
	"testing"

	"lraide/domain/core"
	"lraide/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsOf(pairs ...[2]float64) []dataset.Row {
	rows := make([]dataset.Row, len(pairs))
	for i, p := range pairs {
		rows[i] = dataset.Row{"x": dataset.Number(p[0]), "y": dataset.Number(p[1])}
	}
	return rows
}

func TestFit_PerfectLine(t *testing.T) {
	result, err := Fit(rowsOf([2]float64{1, 2}, [2]float64{2, 4}, [2]float64{3, 6}), "x", "y")
	require.NoError(t, err)

	assert.InDelta(t, 2.0, result.Slope, 1e-12)
	assert.InDelta(t, 0.0, result.Intercept, 1e-12)
	assert.InDelta(t, 1.0, result.RSquared, 1e-12)
	require.Len(t, result.Residuals, 3)
	for _, r := range result.Residuals {
		assert.InDelta(t, 0.0, r, 1e-12)
	}
	assert.Equal(t, 1.0, result.Line[0].X)
	assert.InDelta(t, 2.0, result.Line[0].Y, 1e-12)
	assert.Equal(t, 3.0, result.Line[1].X)
	assert.InDelta(t, 6.0, result.Line[1].Y, 1e-12)
}

func TestFit_DegenerateFlatY(t *testing.T) {
	result, err := Fit(rowsOf([2]float64{1, 5}, [2]float64{2, 5}, [2]float64{3, 5}), "x", "y")
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Slope)
	assert.Equal(t, 5.0, result.Intercept)
	assert.Equal(t, 1.0, result.RSquared)
	assert.Equal(t, 0.0, result.StandardError)
	assert.Equal(t, 0.0, result.StandardErrorSlope)
	assert.Equal(t, 0.0, result.StandardErrorIntercept)
	assert.Equal(t, []float64{0, 0, 0}, result.Residuals)
	assert.Equal(t, 1.0, result.Line[0].X)
	assert.Equal(t, 5.0, result.Line[0].Y)
	assert.Equal(t, 3.0, result.Line[1].X)
	assert.Equal(t, 5.0, result.Line[1].Y)
}

func TestFit_IdenticalX(t *testing.T) {
	_, err := Fit(rowsOf([2]float64{2, 1}, [2]float64{2, 5}, [2]float64{2, 9}), "x", "y")
	assert.ErrorIs(t, err, core.ErrIdenticalIndependentValues)
	assert.Equal(t, core.CodeIdenticalX, core.CodeOf(err))
}

func TestFit_HugeValuesFailInsteadOfNaN(t *testing.T) {
	tests := []struct {
		name string
		rows []dataset.Row
	}{
		{"huge x", rowsOf([2]float64{1e200, 1}, [2]float64{2e200, 2}, [2]float64{3e200, 4})},
		{"huge y", rowsOf([2]float64{1, 1e200}, [2]float64{2, 2e200}, [2]float64{3, 4e200})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Fit(tt.rows, "x", "y")
			assert.Nil(t, result)
			assert.ErrorIs(t, err, core.ErrNonFiniteFit)
			assert.Equal(t, core.CodeNumericOverflow, core.CodeOf(err))
		})
	}
}

func TestFit_NotEnoughData(t *testing.T) {
	_, err := Fit(rowsOf([2]float64{1, 1}), "x", "y")
	assert.ErrorIs(t, err, core.ErrNotEnoughData)

	_, err = Fit(nil, "x", "y")
	assert.ErrorIs(t, err, core.ErrNotEnoughData)

	// Two rows present but only one is valid.
	rows := rowsOf([2]float64{1, 1})
	rows = append(rows, dataset.Row{"x": dataset.Number(2), "y": dataset.Missing()})
	_, err = Fit(rows, "x", "y")
	assert.ErrorIs(t, err, core.ErrNotEnoughData)
}

func TestFit_SkipsInvalidRowsAndKeepsPositions(t *testing.T) {
	rows := []dataset.Row{
		{"x": dataset.Number(1), "y": dataset.Number(3)},
		{"x": dataset.Missing(), "y": dataset.Number(100)},
		{"x": dataset.Number(2), "y": dataset.Number(5.5)},
		{"x": dataset.Number(math.NaN()), "y": dataset.Number(1)},
		{"x": dataset.Number(3), "y": dataset.Number(6.5)},
		{"y": dataset.Number(7)},
	}
	result, err := Fit(rows, "x", "y")
	require.NoError(t, err)

	assert.Equal(t, 3, result.N)
	assert.Equal(t, []int{0, 2, 4}, result.ValidPositions)
	assert.Len(t, result.Residuals, result.N)
	assert.Len(t, result.ResidualPoints, result.N)
	for i, p := range result.ResidualPoints {
		assert.Equal(t, result.Residuals[i], p.Y)
	}
}

func TestFit_KnownStatistics(t *testing.T) {
	// x = 1..5, y = 2.2, 2.8, 3.6, 4.5, 5.1
	rows := rowsOf(
		[2]float64{1, 2.2}, [2]float64{2, 2.8}, [2]float64{3, 3.6},
		[2]float64{4, 4.5}, [2]float64{5, 5.1},
	)
	result, err := Fit(rows, "x", "y")
	require.NoError(t, err)

	// Sxx = 10, Sxy = 7.5, slope = 0.75, intercept = 3.64 - 0.75*3 = 1.39
	assert.InDelta(t, 0.75, result.Slope, 1e-12)
	assert.InDelta(t, 1.39, result.Intercept, 1e-12)

	var ssRes float64
	for _, r := range result.Residuals {
		ssRes += r * r
	}
	ssTot := 0.0
	mean := (2.2 + 2.8 + 3.6 + 4.5 + 5.1) / 5
	for _, y := range []float64{2.2, 2.8, 3.6, 4.5, 5.1} {
		ssTot += (y - mean) * (y - mean)
	}
	assert.InDelta(t, 1-ssRes/ssTot, result.RSquared, 1e-9)

	se := math.Sqrt(ssRes / 3)
	assert.InDelta(t, se, result.StandardError, 1e-12)
	assert.InDelta(t, math.Sqrt(se*se/10), result.StandardErrorSlope, 1e-12)
	assert.InDelta(t, math.Sqrt(se*se*(1.0/5+9.0/10)), result.StandardErrorIntercept, 1e-12)

	assert.Greater(t, result.PValueSlope, 0.0)
	assert.Less(t, result.PValueSlope, 0.001)
	assert.Equal(t, 3, result.DegreesOfFreedom())
}

func TestFit_TwoRowsHasNoResidualFreedom(t *testing.T) {
	result, err := Fit(rowsOf([2]float64{0, 1}, [2]float64{2, 5}), "x", "y")
	require.NoError(t, err)

	assert.InDelta(t, 2.0, result.Slope, 1e-12)
	assert.InDelta(t, 1.0, result.Intercept, 1e-12)
	assert.Equal(t, 0.0, result.StandardError)
	assert.Equal(t, 1.0, result.PValueSlope)
	assert.False(t, math.IsNaN(result.StandardErrorSlope))
}

func TestFit_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pairs := make([][2]float64, 200)
	for i := range pairs {
		x := rng.Float64() * 100
		pairs[i] = [2]float64{x, 3*x - 4 + rng.NormFloat64()}
	}
	rows := rowsOf(pairs...)

	first, err := Fit(rows, "x", "y")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Fit(rows, "x", "y")
		require.NoError(t, err)
		assert.Equal(t, first, again, "fit must be bit-identical across calls")
		assert.NotSame(t, first, again)
	}
}

func TestOLS_ImplementsFit(t *testing.T) {
	k := NewOLS()
	result, err := k.Fit(rowsOf([2]float64{1, 2}, [2]float64{2, 4}, [2]float64{3, 7}), "x", "y")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, result.Slope, 1e-12)
}
