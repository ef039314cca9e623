package main

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Tags   []string        `json:"tags,omitempty"`
}

func TestWriteOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, sample{Name: "Alfa", Amount: decimal.RequireFromString("1500.50")}, "json"))
	assert.JSONEq(t, `{"name":"Alfa","amount":"1500.5"}`, buf.String())
}

func TestWriteOutput_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, sample{Name: "Alfa", Amount: decimal.RequireFromString("10"), Tags: []string{"a"}}, "yaml"))
	out := buf.String()
	assert.Contains(t, out, "amount: \"10\"\n")
	assert.Contains(t, out, "name: Alfa\n")
	assert.Contains(t, out, "- a\n")
}

func TestWriteOutput_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := writeOutput(&buf, sample{}, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
