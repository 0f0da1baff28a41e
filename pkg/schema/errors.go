package schema

import "fmt"

// FieldError reports a value that could not be coerced into its column.
// It wraps one of the field-level sentinel errors.
type FieldError struct {
	Column string
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("column %s: %v (got %q)", e.Column, e.Err, truncate(e.Value, 40))
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
