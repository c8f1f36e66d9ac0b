package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"arxcore/core/entity"
	"arxcore/core/index"
)

// SyntaxError reports a malformed query with the offending position.
type SyntaxError struct {
	// Query is the original query text.
	Query string
	// Pos is the byte offset of the error.
	Pos int
	// Reason describes what went wrong.
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at offset %d: %s", e.Pos, e.Reason)
}

// Aggregate selects the output shape of a query.
type Aggregate int

const (
	// AggregateNone returns the matching entities.
	AggregateNone Aggregate = iota
	// AggregateCount returns only the number of matches.
	AggregateCount
	// AggregateGroupBy returns per-value match counts for GroupField.
	AggregateGroupBy
)

// Within is the spatial predicate of a query.
type Within struct {
	Center entity.Point3D
	Radius float64
}

// Query is a parsed, validated query ready for evaluation.
type Query struct {
	Aggregate  Aggregate
	GroupField string
	Filters    []index.ColumnFilter
	Within     *Within
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type parser struct {
	input  string
	tokens []token
	i      int
}

// Parse turns query text into a validated Query.
func Parse(input string) (*Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}
	return p.parse()
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case c == '=':
			tokens = append(tokens, token{tokOp, "=", i})
			i++
		case c == '!':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, &SyntaxError{input, i, "expected != after !"}
			}
			tokens = append(tokens, token{tokOp, "!=", i})
			i += 2
		case c == '<' || c == '>':
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
				i++
			}
			tokens = append(tokens, token{tokOp, op, i})
			i++
		case c == '\'' || c == '"':
			quote := c
			start := i
			i++
			for i < len(input) && input[i] != quote {
				i++
			}
			if i >= len(input) {
				return nil, &SyntaxError{input, start, "unterminated string"}
			}
			tokens = append(tokens, token{tokString, input[start+1 : i], start})
			i++
		case c == '-' || c == '.' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(input) && (input[i] == '.' || (input[i] >= '0' && input[i] <= '9')) {
				i++
			}
			text := input[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, &SyntaxError{input, start, fmt.Sprintf("malformed number %q", text)}
			}
			tokens = append(tokens, token{tokNumber, text, start})
		case isIdentByte(c):
			start := i
			for i < len(input) && isIdentByte(input[i]) {
				i++
			}
			tokens = append(tokens, token{tokIdent, input[start:i], start})
		default:
			return nil, &SyntaxError{input, i, fmt.Sprintf("unexpected character %q", c)}
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(input)})
	return tokens, nil
}

// Identifier bytes cover both column names and bare address values.
func isIdentByte(c byte) bool {
	return c == '_' || c == '-' || c == '/' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) peek() token { return p.tokens[p.i] }
func (p *parser) next() token { t := p.tokens[p.i]; p.i++; return t }
func (p *parser) errf(pos int, format string, args ...any) error {
	return &SyntaxError{p.input, pos, fmt.Sprintf(format, args...)}
}

func (p *parser) parse() (*Query, error) {
	q := &Query{}

	// Optional aggregate prefix.
	if t := p.peek(); t.kind == tokIdent {
		switch strings.ToUpper(t.text) {
		case "COUNT":
			p.next()
			q.Aggregate = AggregateCount
		case "GROUP":
			p.next()
			by := p.next()
			if by.kind != tokIdent || !strings.EqualFold(by.text, "BY") {
				return nil, p.errf(by.pos, "expected BY after GROUP")
			}
			field := p.next()
			if field.kind != tokIdent {
				return nil, p.errf(field.pos, "expected field after GROUP BY")
			}
			if !index.FilterableColumn(field.text) {
				return nil, p.errf(field.pos, "unknown field %q", field.text)
			}
			q.Aggregate = AggregateGroupBy
			q.GroupField = field.text
		}
	}

	// Optional predicate chain.
	for p.peek().kind != tokEOF {
		if err := p.parsePredicate(q); err != nil {
			return nil, err
		}
		switch t := p.peek(); {
		case t.kind == tokEOF:
		case t.kind == tokIdent && strings.EqualFold(t.text, "AND"):
			p.next()
			if p.peek().kind == tokEOF {
				return nil, p.errf(t.pos, "dangling AND")
			}
		default:
			return nil, p.errf(t.pos, "expected AND or end of query, got %q", t.text)
		}
	}
	return q, nil
}

func (p *parser) parsePredicate(q *Query) error {
	t := p.next()
	if t.kind != tokIdent {
		return p.errf(t.pos, "expected field or WITHIN, got %q", t.text)
	}
	if strings.EqualFold(t.text, "WITHIN") {
		return p.parseWithin(q, t.pos)
	}

	if !index.FilterableColumn(t.text) {
		return p.errf(t.pos, "unknown field %q", t.text)
	}
	op := p.next()
	if op.kind != tokOp {
		return p.errf(op.pos, "expected operator after %q", t.text)
	}
	val := p.next()
	var value any
	switch val.kind {
	case tokNumber:
		value, _ = strconv.ParseFloat(val.text, 64)
	case tokIdent, tokString:
		value = val.text
	default:
		return p.errf(val.pos, "expected value after operator")
	}
	q.Filters = append(q.Filters, index.ColumnFilter{Column: t.text, Op: op.text, Value: value})
	return nil
}

func (p *parser) parseWithin(q *Query, pos int) error {
	if q.Within != nil {
		return p.errf(pos, "WITHIN may appear at most once")
	}
	if t := p.next(); t.kind != tokLParen {
		return p.errf(t.pos, "expected ( after WITHIN")
	}
	nums := make([]float64, 0, 4)
	for k := 0; k < 4; k++ {
		t := p.next()
		if t.kind != tokNumber {
			return p.errf(t.pos, "expected number in WITHIN, got %q", t.text)
		}
		f, _ := strconv.ParseFloat(t.text, 64)
		nums = append(nums, f)
		sep := p.next()
		if k < 3 {
			if sep.kind != tokComma {
				return p.errf(sep.pos, "expected , in WITHIN")
			}
		} else if sep.kind != tokRParen {
			return p.errf(sep.pos, "expected ) closing WITHIN")
		}
	}
	if nums[3] < 0 {
		return p.errf(pos, "WITHIN radius must be non-negative")
	}
	q.Within = &Within{
		Center: entity.Point3D{X: nums[0], Y: nums[1], Z: nums[2]},
		Radius: nums[3],
	}
	return nil
}
