// Package report renders a fitted session as a plain-text, markdown or HTML
// analysis report.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"lraide/domain/regression"
	"lraide/internal/session"
)

// SignificanceLevel is the p-value threshold used in the interpretation.
const SignificanceLevel = 0.05

// ErrNoFit is returned when a report is requested for a session without a
// held fit.
var ErrNoFit = errors.New("session has no fit to report")

// Report is the input of every renderer.
type Report struct {
	Title       string
	Source      string
	XField      string
	YField      string
	Included    int
	RowCount    int
	Fit         *regression.FitResult
	GeneratedAt time.Time
}

// FromView builds a report from a session snapshot.
func FromView(v *session.View) (*Report, error) {
	if v == nil || v.Fit == nil {
		return nil, ErrNoFit
	}
	return &Report{
		Title:       "Linear Regression Analysis Report",
		Source:      v.Name,
		XField:      v.IndependentField,
		YField:      v.DependentField,
		Included:    len(v.Inclusion),
		RowCount:    v.RowCount,
		Fit:         v.Fit,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Equation writes the fitted line with field names, e.g.
// "weight = 1.3900 + 0.7500 * height".
func (r *Report) Equation() string {
	return fmt.Sprintf("%s = %.4f + %.4f * %s", r.YField, r.Fit.Intercept, r.Fit.Slope, r.XField)
}

// Strength classifies R² as strong, moderate or weak.
func Strength(rSquared float64) string {
	switch {
	case rSquared >= 0.7:
		return "strong"
	case rSquared >= 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

// Interpretation summarizes the fit in two sentences.
func (r *Report) Interpretation() string {
	f := r.Fit
	direction := "increases"
	if f.Slope < 0 {
		direction = "decreases"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Each unit increase in %s %s %s by %.4f on average. ", r.XField, direction, r.YField, abs(f.Slope))
	fmt.Fprintf(&b, "The model explains %.1f%% of the variance (%s fit)", f.RSquared*100, Strength(f.RSquared))
	if f.DegreesOfFreedom() > 0 {
		if f.PValueSlope < SignificanceLevel {
			fmt.Fprintf(&b, " and the slope is significant at the %.0f%% level.", SignificanceLevel*100)
		} else {
			fmt.Fprintf(&b, " but the slope is not significant at the %.0f%% level.", SignificanceLevel*100)
		}
	} else {
		b.WriteString("; with two points there are no residual degrees of freedom to test significance.")
	}
	return b.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Text renders the plain-text export.
func (r *Report) Text() string {
	f := r.Fit
	lines := []string{
		r.Title,
		strings.Repeat("=", len(r.Title)),
		"",
		"Summary Statistics:",
		fmt.Sprintf("R-Squared: %.6f", f.RSquared),
		fmt.Sprintf("Standard Error: %.6f", f.StandardError),
		fmt.Sprintf("Observations: %d", f.N),
		"",
		"Coefficients:",
		fmt.Sprintf("Slope: %.6f (p-value: %.6f)", f.Slope, f.PValueSlope),
		fmt.Sprintf("Intercept: %.6f (p-value: %.6f)", f.Intercept, f.PValueIntercept),
		"",
		"Regression Equation: " + r.Equation(),
	}
	return strings.Join(lines, "\n") + "\n"
}

// Markdown renders the report as GitHub-flavored markdown.
func (r *Report) Markdown() string {
	f := r.Fit
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Source != "" {
		fmt.Fprintf(&b, "Source: **%s**, %d of %d rows included, generated %s.\n\n",
			r.Source, r.Included, r.RowCount, r.GeneratedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "## Model\n\n`%s`\n\n", r.Equation())

	b.WriteString("## Summary Statistics\n\n")
	b.WriteString("| Statistic | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| R² | %.6f |\n", f.RSquared)
	fmt.Fprintf(&b, "| Standard error of estimate | %.6f |\n", f.StandardError)
	fmt.Fprintf(&b, "| Observations | %d |\n", f.N)
	fmt.Fprintf(&b, "| Degrees of freedom | %d |\n\n", f.DegreesOfFreedom())

	b.WriteString("## Coefficients\n\n")
	b.WriteString("| Term | Estimate | Std. error | p-value |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| Intercept | %.6f | %.6f | %.6f |\n", f.Intercept, f.StandardErrorIntercept, f.PValueIntercept)
	fmt.Fprintf(&b, "| %s | %.6f | %.6f | %.6f |\n\n", r.XField, f.Slope, f.StandardErrorSlope, f.PValueSlope)

	fmt.Fprintf(&b, "## Interpretation\n\n%s\n", r.Interpretation())
	return b.String()
}

// HTML renders the markdown report to an HTML fragment.
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}
