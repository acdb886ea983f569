// Package filter builds injection-safe range-scan predicates from
// caller-supplied field/value/operator triples. The output grammar is
// deliberately tiny (`field op 'value'` joined by a single conjunction)
// and is the only predicate syntax storage adapters accept.
package filter

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Operator is a comparison operator from the allow-list.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "<>"
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
)

// Conjunction joins conditions.
type Conjunction string

const (
	And Conjunction = "AND"
	Or  Conjunction = "OR"
)

var (
	// ErrInvalidField is returned for field names outside the identifier
	// grammar.
	ErrInvalidField = errors.New("invalid filter field name")
	// ErrInvalidOperator is returned for operators outside the allow-list.
	ErrInvalidOperator = errors.New("invalid filter operator")
)

// maxValueLen bounds escaped values.
const maxValueLen = 256

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var allowedOps = map[Operator]bool{
	OpEqual:          true,
	OpNotEqual:       true,
	OpGreater:        true,
	OpGreaterOrEqual: true,
	OpLess:           true,
	OpLessOrEqual:    true,
}

// Condition is one field/operator/value triple. Conditions with an empty
// value are skipped, so callers can pass optional filters unconditionally.
type Condition struct {
	Field string
	Op    Operator
	Value string
}

// Build assembles a predicate string from conditions. It returns an empty
// string when no condition carries a value, ErrInvalidField for a malformed
// field name, and ErrInvalidOperator for an operator outside the allow-list.
func Build(conds []Condition, conj Conjunction) (string, error) {
	if conj != And && conj != Or {
		conj = And
	}

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if c.Value == "" {
			continue
		}
		if !fieldPattern.MatchString(c.Field) {
			return "", ErrInvalidField
		}
		if !allowedOps[c.Op] {
			return "", ErrInvalidOperator
		}
		parts = append(parts, c.Field+" "+string(c.Op)+" '"+EscapeValue(c.Value)+"'")
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, " "+string(conj)+" "), nil
}

// EscapeValue doubles single quotes, strips control characters and truncates
// to the bounded length. The result is always safe to embed between single
// quotes.
func EscapeValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	n := 0
	for _, r := range v {
		if unicode.IsControl(r) {
			continue
		}
		if n >= maxValueLen {
			break
		}
		if r == '\'' {
			b.WriteString("''")
		} else {
			b.WriteRune(r)
		}
		n++
	}
	return b.String()
}
