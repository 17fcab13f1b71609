package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"lraide/domain/dataset"
	"lraide/internal"
	"lraide/internal/errors"
)

// XLSXReader reads one worksheet of an Excel workbook.
type XLSXReader struct {
	sheet  string
	logger *internal.Logger
}

// NewXLSXReader reads the named sheet, or the first sheet when sheet is empty.
func NewXLSXReader(sheet string, logger *internal.Logger) *XLSXReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &XLSXReader{sheet: sheet, logger: logger.WithComponent("importer")}
}

// Read parses the sheet. Trailing empty cells are dropped by Excel, so short
// rows are padded with missing values rather than skipped.
func (r *XLSXReader) Read(ctx context.Context, in io.Reader) (*dataset.Dataset, error) {
	start := time.Now()
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "failed to open Excel workbook"))
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("sheet %q not found", sheet))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "failed to read %s", sheet))
	}

	ds, _, err := buildDataset(ctx, rows, false)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("sheet %s read in %.2fms (%d columns, %d rows)",
		sheet, float64(time.Since(start).Nanoseconds())/1e6, len(ds.Columns()), ds.Len())
	return ds, nil
}
