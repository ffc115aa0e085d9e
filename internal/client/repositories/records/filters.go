package records

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter is one WHERE condition of a page query.
type Filter interface {
	SQL() string
	Args() []any
}

type EntityTypeFilter struct{ EntityType string }

func (f EntityTypeFilter) SQL() string { return "entity_type = ?" }
func (f EntityTypeFilter) Args() []any { return []any{f.EntityType} }

type CreatedByFilter struct{ UserID string }

func (f CreatedByFilter) SQL() string { return "created_by = ?" }
func (f CreatedByFilter) Args() []any { return []any{f.UserID} }

// PayloadEqualsFilter matches a top-level payload field by value.
type PayloadEqualsFilter struct {
	Field string
	Value any
}

func (f PayloadEqualsFilter) SQL() string {
	return fmt.Sprintf("json_extract(payload, '$.%s') = ?", f.Field)
}
func (f PayloadEqualsFilter) Args() []any { return []any{f.Value} }

// UpdatedSinceFilter keeps records touched at or after Nanos.
type UpdatedSinceFilter struct{ Nanos int64 }

func (f UpdatedSinceFilter) SQL() string { return "updated_at >= ?" }
func (f UpdatedSinceFilter) Args() []any { return []any{f.Nanos} }

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField reports whether name can be embedded in a json path.
func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

// Sort keys understood by Page. Payload fields are addressed as "payload.<field>".
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortVersion   = "version"
	payloadPrefix = "payload."
)

// sortExpr maps a sort key to its SQL expression. Missing payload fields
// sort as the empty string so every row has a comparable key.
func sortExpr(key string) (string, error) {
	switch key {
	case "", SortCreatedAt:
		return "created_at", nil
	case SortUpdatedAt:
		return "updated_at", nil
	case SortVersion:
		return "version", nil
	}
	if field, ok := strings.CutPrefix(key, payloadPrefix); ok && ValidField(field) {
		return fmt.Sprintf("IFNULL(json_extract(payload, '$.%s'), '')", field), nil
	}
	return "", fmt.Errorf("unsupported sort key %q", key)
}
