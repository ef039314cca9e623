package importer

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-resolver/internal/model"
)

// ReadJSON decodes a JSON array of objects, one document per object.
// Numbers are kept as json.Number.
func ReadJSON(ctx context.Context, r io.Reader, opts Options) ([]model.Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("importer: json: expected '[', got %v", tok)
	}

	var docs []model.Document
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "importer: json: context cancelled")
		}
		fields := make(map[string]any)
		if err := dec.Decode(&fields); err != nil {
			return nil, eris.Wrapf(err, "importer: json: decode element %d", len(docs))
		}
		docs = append(docs, newDocument(fields, opts))
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "importer: json: read closing token")
	}
	return docs, nil
}
