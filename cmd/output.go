package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// writeOutput renders v as indented JSON or as YAML. YAML goes through the
// JSON form so decimals and field names match the JSON output.
func writeOutput(w io.Writer, v any, format string) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}

	switch format {
	case "", "json":
		_, err = w.Write(append(raw, '\n'))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return eris.Wrap(err, "decode output")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format %q", format)
	}
}
