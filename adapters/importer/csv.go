package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"time"

	"lraide/domain/dataset"
	"lraide/internal"
	"lraide/internal/errors"
)

// CSVReader parses delimited text.
type CSVReader struct {
	comma  rune
	logger *internal.Logger
}

// NewCSVReader creates a reader for the given delimiter.
func NewCSVReader(comma rune, logger *internal.Logger) *CSVReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CSVReader{comma: comma, logger: logger.WithComponent("importer")}
}

// Read decodes the input to UTF-8 and parses it. Rows whose field count
// differs from the header are skipped.
func (r *CSVReader) Read(ctx context.Context, in io.Reader) (*dataset.Dataset, error) {
	start := time.Now()
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV input")
	}
	text, enc, err := toUTF8(raw)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "failed to decode %s input", enc))
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = r.comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "failed to parse CSV"))
	}

	ds, skipped, err := buildDataset(ctx, rows, true)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("CSV parsed in %.2fms: %s, %d columns, %d rows, %d skipped",
		float64(time.Since(start).Nanoseconds())/1e6, enc, len(ds.Columns()), ds.Len(), skipped)
	return ds, nil
}
