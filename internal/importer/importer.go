// Package importer reads seed files (JSON, CSV, XLSX) into documents for
// loading a store collection.
package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

// Options configures how rows become documents.
type Options struct {
	// IDField names the field holding the document id. Rows without it, or
	// with it blank, get a generated UUID. The field stays in Fields.
	IDField string
	// SheetName selects an XLSX sheet; the first sheet is used by default.
	SheetName string
	// Delimiter overrides the CSV separator (default ',').
	Delimiter rune
}

// ReadFile reads path, picking the format from its extension.
func ReadFile(ctx context.Context, path string, opts Options) ([]model.Document, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return ReadXLSX(ctx, path, opts)
	case ".json", ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		if ext == ".json" {
			return ReadJSON(ctx, f, opts)
		}
		return ReadCSV(ctx, f, opts)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", ext)
	}
}

func newDocument(fields map[string]any, opts Options) model.Document {
	id := ""
	if opts.IDField != "" {
		id = normalize.ID(normalize.String(fields[opts.IDField]))
	}
	if id == "" {
		id = uuid.NewString()
	}
	return model.Document{ID: id, Fields: fields}
}

// rowFields zips a header with one row. Blank cells and unnamed columns are
// left out.
func rowFields(header, row []string) map[string]any {
	fields := make(map[string]any, len(header))
	for i, name := range header {
		if name == "" || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			fields[name] = v
		}
	}
	return fields
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}
