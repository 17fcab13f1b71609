package ports

import (
	"context"
	"io"

	"lraide/domain/dataset"
)

// DatasetReader parses an external file into a Dataset.
type DatasetReader interface {
	Read(ctx context.Context, r io.Reader) (*dataset.Dataset, error)
}
