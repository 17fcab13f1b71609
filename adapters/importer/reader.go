// Package importer turns CSV and Excel files into datasets. Cells are coerced
// to numbers; anything that does not parse becomes a missing value.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lraide/domain/dataset"
	"lraide/internal"
	"lraide/internal/errors"
	"lraide/ports"
)

// ForFile picks a reader from the file extension.
func ForFile(name string, logger *internal.Logger) (ports.DatasetReader, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		return NewCSVReader(',', logger), nil
	case ".tsv":
		return NewCSVReader('\t', logger), nil
	case ".xlsx", ".xlsm":
		return NewXLSXReader("", logger), nil
	default:
		return nil, errors.UnsupportedFormat(ext)
	}
}

// ReadFile opens path and parses it with the reader matching its extension.
func ReadFile(ctx context.Context, path string, logger *internal.Logger) (*dataset.Dataset, error) {
	reader, err := ForFile(path, logger)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeNotFound, errors.Wrapf(err, "failed to open %s", path))
	}
	defer f.Close()
	return reader.Read(ctx, f)
}

// buildDataset treats rows[0] as the header. With strict set, data rows whose
// width differs from the header are skipped; otherwise short rows are padded
// with missing values.
func buildDataset(ctx context.Context, rows [][]string, strict bool) (*dataset.Dataset, int, error) {
	if len(rows) == 0 {
		return dataset.Empty(), 0, nil
	}
	headers := normalizeHeaders(rows[0])

	out := make([]dataset.Row, 0, len(rows)-1)
	skipped := 0
	for i := 1; i < len(rows); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		cells := rows[i]
		if isBlank(cells) {
			continue
		}
		if strict && len(cells) != len(headers) {
			skipped++
			continue
		}
		row := make(dataset.Row, len(headers))
		for j, h := range headers {
			if j < len(cells) {
				row[h] = dataset.ParseValue(cells[j])
			} else {
				row[h] = dataset.Missing()
			}
		}
		out = append(out, row)
	}

	ds, err := dataset.New(headers, out)
	if err != nil {
		return nil, 0, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return ds, skipped, nil
}

// normalizeHeaders trims names, names blank headers by position and
// suffixes duplicates so every column is addressable.
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		}
		seen[h]++
		headers[i] = h
	}
	return headers
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
