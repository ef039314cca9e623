package importer

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-resolver/internal/model"
)

// ReadCSV reads a CSV file whose first row names the fields.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]model.Document, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: csv: read header")
	}
	header = normalizeHeader(header)

	var docs []model.Document
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "importer: csv: context cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "importer: csv: read row %d", len(docs)+2)
		}
		fields := rowFields(header, row)
		if len(fields) == 0 {
			continue
		}
		docs = append(docs, newDocument(fields, opts))
	}
}
