package report

import (
	"strings"
	"testing"

	"lraide/domain/dataset"
	"lraide/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fittedView(t *testing.T) *session.View {
	t.Helper()
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2.2, 2.8, 3.6, 4.5, 5.1}
	rows := make([]dataset.Row, len(xs))
	for i := range xs {
		rows[i] = dataset.Row{"height": dataset.Number(xs[i]), "weight": dataset.Number(ys[i])}
	}
	ds, err := dataset.New([]string{"height", "weight"}, rows)
	require.NoError(t, err)

	s := session.NewRegistry(session.Options{}).Create("people.csv", ds)
	require.NoError(t, s.Plot())
	return s.View()
}

func TestFromView_RequiresFit(t *testing.T) {
	_, err := FromView(nil)
	assert.ErrorIs(t, err, ErrNoFit)
	_, err = FromView(&session.View{})
	assert.ErrorIs(t, err, ErrNoFit)
}

func TestEquationAndText(t *testing.T) {
	r, err := FromView(fittedView(t))
	require.NoError(t, err)

	assert.Equal(t, "weight = 1.3900 + 0.7500 * height", r.Equation())
	text := r.Text()
	assert.True(t, strings.HasPrefix(text, "Linear Regression Analysis Report\n====="))
	assert.Contains(t, text, "Slope: 0.750000")
	assert.Contains(t, text, "Observations: 5")
}

func TestMarkdown(t *testing.T) {
	r, err := FromView(fittedView(t))
	require.NoError(t, err)

	md := r.Markdown()
	assert.Contains(t, md, "# Linear Regression Analysis Report")
	assert.Contains(t, md, "Source: **people.csv**, 5 of 5 rows included")
	assert.Contains(t, md, "| height | 0.750000 |")
	assert.Contains(t, md, "strong fit")
	assert.Contains(t, md, "slope is significant")
}

func TestHTML(t *testing.T) {
	r, err := FromView(fittedView(t))
	require.NoError(t, err)

	out := string(r.HTML())
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<code>weight = 1.3900 + 0.7500 * height</code>")
}

func TestStrength(t *testing.T) {
	tests := []struct {
		r2   float64
		want string
	}{
		{0.95, "strong"},
		{0.7, "strong"},
		{0.5, "moderate"},
		{0.1, "weak"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Strength(tt.r2), "r2=%v", tt.r2)
	}
}
