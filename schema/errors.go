package schema

import (
	"fmt"
	"strings"
)

// ColumnError describes a single column violation.
type ColumnError struct {
	Column  string
	Kind    Kind
	Value   string
	Message string
}

func (e ColumnError) String() string {
	return fmt.Sprintf("%s: %s (got %q)", e.Column, e.Message, e.Value)
}

// ValidationError aggregates every column violation of a validated row.
type ValidationError struct {
	Columns []ColumnError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%v: %s", ErrSchemaValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidationFailed
}
