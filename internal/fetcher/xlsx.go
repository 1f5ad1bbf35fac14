// Package fetcher reads source workbooks into raw rows.
package fetcher

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/childcare-etl/internal/model"
)

// Workbook is an opened .xlsx file whose sheets are source layouts.
type Workbook struct {
	path string
	file *xlsx.File
	// date1904 is set for workbooks using the 1904 date system.
	date1904 bool
}

// OpenWorkbook opens the workbook at path.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open file %s", path)
	}
	return &Workbook{path: path, file: f, date1904: f.Date1904}, nil
}

// SheetNames returns the workbook's sheet names in order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.file.Sheets))
	for i, s := range w.file.Sheets {
		names[i] = s.Name
	}
	return names
}

// StreamSheet sends the named sheet's records to a channel, one RawRow per
// row after the header. Every header column is present in each RawRow;
// cells missing from a short row are nil. Both channels are closed when
// processing completes.
func (w *Workbook) StreamSheet(ctx context.Context, name string) (<-chan model.RawRow, <-chan error) {
	rowCh := make(chan model.RawRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		sheet, ok := w.file.Sheet[name]
		if !ok {
			errCh <- eris.Errorf("xlsx: sheet %q not found in %s (have %s)",
				name, w.path, strings.Join(w.SheetNames(), ", "))
			return
		}
		if len(sheet.Rows) == 0 {
			return
		}

		header := headerNames(sheet.Rows[0])
		for _, row := range sheet.Rows[1:] {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			select {
			case rowCh <- toRawRow(header, row, w.date1904):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// headerNames returns the trimmed header cell texts. Blank headers are
// kept as "" and their columns dropped.
func headerNames(row *xlsx.Row) []string {
	names := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		names[i] = strings.TrimSpace(cell.String())
	}
	return names
}

func toRawRow(header []string, row *xlsx.Row, date1904 bool) model.RawRow {
	raw := make(model.RawRow, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i >= len(row.Cells) {
			raw[name] = nil
			continue
		}
		raw[name] = cellValue(row.Cells[i], date1904)
	}
	return raw
}

// cellValue converts a cell to the scalar types a RawRow carries: string,
// bool, time.Time, int64, float64 or nil. date1904 selects the workbook's
// date epoch.
func cellValue(cell *xlsx.Cell, date1904 bool) any {
	if cell == nil {
		return nil
	}
	switch cell.Type() {
	case xlsx.CellTypeBool:
		return cell.Bool()
	case xlsx.CellTypeDate:
		if t, err := cell.GetTime(date1904); err == nil {
			return t
		}
	case xlsx.CellTypeNumeric:
		if cell.Value == "" {
			return nil
		}
		if isDateFormat(cell.GetNumberFormat()) {
			if t, err := cell.GetTime(date1904); err == nil {
				return t
			}
		}
		f, err := cell.Float()
		if err != nil {
			break
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	}

	if cell.Value == "" {
		return nil
	}
	return cell.Value
}

// isDateFormat reports whether an Excel number format renders a date or
// time. Quoted literals and bracketed sections (colors, locales) are ignored.
func isDateFormat(format string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	code := b.String()
	if code == "" || code == "general" || code == "@" {
		return false
	}
	return strings.ContainsAny(code, "dmyhs")
}
