// Package model holds the data types shared by the resolution engine, the
// document store adapters, and the CLI.
package model

// Document is one schemaless record read from (or written to) a store
// collection. Fields keeps whatever the import pipeline wrote, including
// legacy field spellings.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Get returns the value stored under field and whether it was present and non-nil.
func (d Document) Get(field string) (any, bool) {
	if d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// WriteOutcome reports the result of writing one document in a batch.
type WriteOutcome struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// OK reports whether the document was written.
func (o WriteOutcome) OK() bool { return o.Err == nil }
