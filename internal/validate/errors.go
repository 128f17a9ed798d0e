package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Errors is a field-level validation report keyed by field name.
type Errors struct {
	Fields map[string][]string `json:"fields"`
}

// Add records a failed constraint for field.
func (e *Errors) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field failed any constraint.
func (e *Errors) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Error lists the failing fields in a stable order.
func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// orNil returns e as an error only when it holds at least one field.
func (e *Errors) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
