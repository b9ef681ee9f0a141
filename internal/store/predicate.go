package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Field names accepted by predicates. Payload fields are addressed as
// "payload.<path>", where path may name a nested object like "site.title".
const (
	FieldID          = "id"
	FieldEncodedID   = "encodedIdentifier"
	FieldCreatedAt   = "createdAt"
	payloadPrefix    = "payload."
	defaultOrderExpr = "created_at, id"
)

var payloadKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Predicate filters records within one entity kind. A nil Predicate matches
// every record of the kind.
type Predicate interface {
	// where renders the predicate as a SQL boolean expression.
	where() (string, []any, error)
	String() string
}

func column(field string) (string, error) {
	switch field {
	case FieldID:
		return "id", nil
	case FieldEncodedID:
		return "sync_display_uuid", nil
	case FieldCreatedAt:
		return "created_at", nil
	}
	if name, ok := strings.CutPrefix(field, payloadPrefix); ok && payloadKey.MatchString(name) {
		return "json_extract(payload, '$." + name + "')", nil
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrMalformedPredicate, field)
}

// Comparison matches Field = Value.
type Comparison struct {
	Field string
	Value any
}

// Eq matches records whose field equals v.
func Eq(field string, v any) Comparison { return Comparison{Field: field, Value: v} }

func (p Comparison) where() (string, []any, error) {
	col, err := column(p.Field)
	if err != nil {
		return "", nil, err
	}
	return col + " = ?", []any{p.Value}, nil
}

func (p Comparison) String() string { return fmt.Sprintf("%s == %v", p.Field, p.Value) }

// Membership matches Field IN Values.
type Membership struct {
	Field  string
	Values []any
}

// In matches records whose field is one of values. An empty set matches nothing.
func In[T any](field string, values []T) Membership {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Membership{Field: field, Values: vs}
}

func (p Membership) where() (string, []any, error) {
	col, err := column(p.Field)
	if err != nil {
		return "", nil, err
	}
	if len(p.Values) == 0 {
		return "0", nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(p.Values)), ", ")
	return col + " IN (" + marks + ")", p.Values, nil
}

func (p Membership) String() string { return fmt.Sprintf("%s IN %v", p.Field, p.Values) }

// Substring matches records whose field contains Text.
type Substring struct {
	Field string
	Text  string
}

// Like matches records whose field contains text, case-insensitively.
func Like(field, text string) Substring { return Substring{Field: field, Text: text} }

func (p Substring) where() (string, []any, error) {
	col, err := column(p.Field)
	if err != nil {
		return "", nil, err
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(p.Text)
	return col + ` LIKE ? ESCAPE '\'`, []any{"%" + escaped + "%"}, nil
}

func (p Substring) String() string { return fmt.Sprintf("%s CONTAINS %q", p.Field, p.Text) }

// Null matches records whose field is (or is not) NULL.
type Null struct {
	Field  string
	Negate bool
}

// IsNull matches records with no value for field.
func IsNull(field string) Null { return Null{Field: field} }

// NotNull matches records with a value for field.
func NotNull(field string) Null { return Null{Field: field, Negate: true} }

func (p Null) where() (string, []any, error) {
	col, err := column(p.Field)
	if err != nil {
		return "", nil, err
	}
	if p.Negate {
		return col + " IS NOT NULL", nil, nil
	}
	return col + " IS NULL", nil, nil
}

func (p Null) String() string {
	if p.Negate {
		return p.Field + " != nil"
	}
	return p.Field + " == nil"
}

// Compound joins predicates with AND or OR.
type Compound struct {
	Op    string
	Terms []Predicate
}

// And matches records satisfying every term.
func And(terms ...Predicate) Compound { return Compound{Op: "AND", Terms: terms} }

// Or matches records satisfying any term.
func Or(terms ...Predicate) Compound { return Compound{Op: "OR", Terms: terms} }

func (p Compound) where() (string, []any, error) {
	if p.Op != "AND" && p.Op != "OR" {
		return "", nil, fmt.Errorf("%w: operator %q", ErrMalformedPredicate, p.Op)
	}
	if len(p.Terms) == 0 {
		if p.Op == "AND" {
			return "1", nil, nil
		}
		return "0", nil, nil
	}
	parts := make([]string, 0, len(p.Terms))
	var args []any
	for _, t := range p.Terms {
		if t == nil {
			return "", nil, fmt.Errorf("%w: nil term", ErrMalformedPredicate)
		}
		sql, a, err := t.where()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, " "+p.Op+" "), args, nil
}

func (p Compound) String() string {
	parts := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		if t == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = "(" + t.String() + ")"
	}
	return strings.Join(parts, " "+p.Op+" ")
}
