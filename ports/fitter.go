package ports

import (
	"lraide/domain/dataset"
	"lraide/domain/regression"
)

// Fitter runs the regression kernel over a row subset.
type Fitter interface {
	Fit(rows []dataset.Row, xField, yField string) (*regression.FitResult, error)
}
