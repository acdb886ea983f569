package sqlite

import (
	"fmt"
	"strings"

	"github.com/ganot/coursetrace/internal/storage"
)

// predicate evaluates a filter expression against one item.
type predicate func(storage.Item) bool

// compile parses the restricted predicate grammar emitted by the filter
// package:
//
//	expr := cond (("AND" | "OR") cond)*
//	cond := field op 'value'
//
// AND binds tighter than OR. Values use '' to escape a literal quote.
// Comparison is lexicographic on strings. A condition on a missing
// attribute is false.
func compile(expr string) (predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return func(storage.Item) bool { return true }, nil
	}

	p := &exprParser{input: expr}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected trailing input in filter at offset %d", p.pos)
	}
	return pred, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseOr() (predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(it storage.Item) bool { return l(it) || r(it) }
	}
	return left, nil
}

func (p *exprParser) parseAnd() (predicate, error) {
	left, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(it storage.Item) bool { return l(it) && r(it) }
	}
	return left, nil
}

func (p *exprParser) parseCond() (predicate, error) {
	field, err := p.readIdent()
	if err != nil {
		return nil, err
	}
	op, err := p.readOp()
	if err != nil {
		return nil, err
	}
	value, err := p.readString()
	if err != nil {
		return nil, err
	}

	return func(it storage.Item) bool {
		actual, ok := resolveField(it, field)
		if !ok {
			return false
		}
		switch op {
		case "=":
			return actual == value
		case "<>":
			return actual != value
		case ">":
			return actual > value
		case ">=":
			return actual >= value
		case "<":
			return actual < value
		case "<=":
			return actual <= value
		}
		return false
	}, nil
}

// resolveField exposes the key columns alongside the item attributes.
func resolveField(it storage.Item, field string) (string, bool) {
	switch field {
	case "partition_key":
		return it.PartitionKey, true
	case "sort_key":
		return it.SortKey, true
	}
	v, ok := it.Attributes[field]
	return v, ok
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) atEnd() bool {
	p.skipSpace()
	return p.pos >= len(p.input)
}

// acceptKeyword consumes a conjunction keyword if it is next.
func (p *exprParser) acceptKeyword(kw string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], kw+" ") {
		p.pos += len(kw) + 1
		return true
	}
	return false
}

func (p *exprParser) readIdent() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("expected field name in filter at offset %d", start)
	}
	return p.input[start:p.pos], nil
}

func (p *exprParser) readOp() (string, error) {
	p.skipSpace()
	for _, op := range []string{"<>", ">=", "<=", "=", ">", "<"} {
		if strings.HasPrefix(p.input[p.pos:], op) {
			p.pos += len(op)
			return op, nil
		}
	}
	return "", fmt.Errorf("expected operator in filter at offset %d", p.pos)
}

func (p *exprParser) readString() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != '\'' {
		return "", fmt.Errorf("expected quoted value in filter at offset %d", p.pos)
	}
	p.pos++

	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '\'' {
			// '' is an escaped quote; a lone quote closes the string.
			if p.pos+1 < len(p.input) && p.input[p.pos+1] == '\'' {
				b.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated value in filter")
}
