package tabular

import (
	"context"
)

// Table is a parsed worksheet: an ordered header row plus one string map per
// data row. Missing cells are absent keys.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Source reads a named worksheet of form results.
type Source interface {
	Read(ctx context.Context) (*Table, error)
}
