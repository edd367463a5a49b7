// Package tags selects test cases by tag.
//
// Expressions combine tags with AND, OR, NOT and parentheses:
//
//	(smoke || regression) && !slow
//	smoke and not (slow or flaky)
//
// NOT binds tightest, then AND, then OR. Operator words are case-insensitive.
package tags

import (
	"strings"
	"unicode"

	"tcm/internal/tcerr"
)

// Expression is a parsed, immutable tag expression.
type Expression interface {
	// Evaluate reports whether the tag set satisfies the expression.
	Evaluate(tagSet map[string]bool) bool

	// String renders the expression in canonical symbolic form.
	String() string
}

type tagExpr struct{ name string }

type notExpr struct{ operand Expression }

type andExpr struct{ left, right Expression }

type orExpr struct{ left, right Expression }

func (e tagExpr) Evaluate(set map[string]bool) bool { return set[e.name] }
func (e tagExpr) String() string                    { return e.name }

func (e notExpr) Evaluate(set map[string]bool) bool { return !e.operand.Evaluate(set) }
func (e notExpr) String() string                    { return "!" + wrap(e.operand) }

func (e andExpr) Evaluate(set map[string]bool) bool {
	return e.left.Evaluate(set) && e.right.Evaluate(set)
}
func (e andExpr) String() string { return wrapOr(e.left) + " && " + wrapOr(e.right) }

func (e orExpr) Evaluate(set map[string]bool) bool {
	return e.left.Evaluate(set) || e.right.Evaluate(set)
}
func (e orExpr) String() string { return e.left.String() + " || " + e.right.String() }

// wrap parenthesizes binary operands of NOT.
func wrap(e Expression) string {
	switch e.(type) {
	case tagExpr, notExpr:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}

// wrapOr parenthesizes OR operands inside AND.
func wrapOr(e Expression) string {
	if _, ok := e.(orExpr); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Parse parses a tag expression. An empty or blank string yields a nil
// Expression, which Matches treats as matching everything.
func Parse(input string) (Expression, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	p := &parser{tokens: tokens, end: len(input)}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, tcerr.TagExpressionSyntax(tok.pos, "unexpected %s", tok.describe())
	}
	return expr, nil
}

// MustParse is like Parse but panics on a syntax error.
func MustParse(input string) Expression {
	expr, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return expr
}

// Matches evaluates expr against tags. A nil expression matches everything.
func Matches(expr Expression, tags []string) bool {
	if expr == nil {
		return true
	}
	return expr.Evaluate(toSet(tags))
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[tag] = true
	}
	return set
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokTag
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokTag:
		return "tag " + `"` + t.text + `"`
	default:
		return `"` + t.text + `"`
	}
}

func isTagRune(r rune) bool {
	return !unicode.IsSpace(r) && !strings.ContainsRune("()!&|", r)
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	// byte offsets of each rune, for positions in errors
	offsets := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		offsets[i] = off
		off += len(string(r))
	}
	offsets[len(runes)] = off

	for i := 0; i < len(runes); {
		r := runes[i]
		pos := offsets[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", pos})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", pos})
			i++
		case r == '!':
			tokens = append(tokens, token{tokNot, "!", pos})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, tcerr.TagExpressionSyntax(pos, "expected %q", string([]rune{r, r}))
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind, string([]rune{r, r}), pos})
			i += 2
		default:
			start := i
			for i < len(runes) && isTagRune(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{tokAnd, word, pos})
			case "OR":
				tokens = append(tokens, token{tokOr, word, pos})
			case "NOT":
				tokens = append(tokens, token{tokNot, word, pos})
			default:
				tokens = append(tokens, token{tokTag, word, pos})
			}
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
	end    int
}

func (p *parser) peek() token {
	if p.pos >= len(p.tokens) {
		return token{kind: tokEOF, pos: p.end}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expr := term (OR term)*
func (p *parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

// term := factor (AND factor)*
func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = andExpr{left, right}
	}
	return left, nil
}

// factor := NOT factor | '(' expr ')' | TAG
func (p *parser) parseFactor() (Expression, error) {
	tok := p.next()
	switch tok.kind {
	case tokNot:
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return notExpr{operand}, nil

	case tokLParen:
		if p.peek().kind == tokRParen {
			return nil, tcerr.TagExpressionSyntax(p.peek().pos, "empty parentheses")
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			return nil, tcerr.TagExpressionSyntax(closing.pos, "expected \")\" to close \"(\" at position %d, found %s", tok.pos, closing.describe())
		}
		return inner, nil

	case tokTag:
		return tagExpr{tok.text}, nil

	default:
		return nil, tcerr.TagExpressionSyntax(tok.pos, "expected tag, \"(\" or NOT, found %s", tok.describe())
	}
}
