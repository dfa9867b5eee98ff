package repository

import (
	"fmt"
	"strings"

	apperrors "github.com/hnatiak/photoshare/pkg/errors"
)

// FilterClause is one field/value pair of a parsed filter expression.
type FilterClause struct {
	Field string
	Value string
}

// ParseFilter parses the list-endpoint filter grammar:
//
//	field::value|field::value
//
// Clauses keep their input order so two requests with the same expression
// build the same SQL and share a cache entry. An empty expression parses to
// no clauses. Fields are lowercased; values keep their case.
func ParseFilter(expression string, allowed ...string) ([]FilterClause, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	var clauses []FilterClause
	for _, raw := range strings.Split(expression, "|") {
		field, value, ok := strings.Cut(raw, "::")
		if !ok {
			return nil, apperrors.NewValidation(fmt.Sprintf("malformed filter clause %q", raw), nil)
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)
		if field == "" || value == "" {
			return nil, apperrors.NewValidation(fmt.Sprintf("empty filter clause %q", raw), nil)
		}
		if !fieldAllowed(field, allowed) {
			return nil, apperrors.NewValidation(fmt.Sprintf("unsupported filter field %q", field), nil)
		}
		clauses = append(clauses, FilterClause{Field: field, Value: value})
	}
	return clauses, nil
}

func fieldAllowed(field string, allowed []string) bool {
	for _, a := range allowed {
		if field == a {
			return true
		}
	}
	return false
}
