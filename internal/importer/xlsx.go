package importer

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/investor-resolver/internal/model"
)

// ReadXLSX reads one sheet of an XLSX workbook whose first row names the
// fields.
func ReadXLSX(ctx context.Context, path string, opts Options) ([]model.Document, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: xlsx: open file")
	}

	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := normalizeHeader(rowToStrings(sheet.Rows[0]))
	var docs []model.Document
	for _, row := range sheet.Rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "importer: xlsx: context cancelled")
		}
		fields := rowFields(header, rowToStrings(row))
		if len(fields) == 0 {
			continue
		}
		docs = append(docs, newDocument(fields, opts))
	}
	return docs, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("importer: xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
