// Package formula parses infix arithmetic expressions over named variables
// (spec §4.3): + - * / ** with standard precedence, parentheses, a small
// function whitelist, and no mechanism for executing arbitrary host code.
package formula

import "fmt"

// whitelistedFuncs are the only callable identifiers the parser accepts.
// Comparisons below yield 0/1 the way spec §4.3 specifies.
var whitelistedFuncs = map[string]int{ // name -> arity, -1 means variadic(>=1)
	"abs": 1,
	"min": -1,
	"max": -1,
	"log": 1,
	"exp": 1,
}

// Parse compiles src into an evaluable Expr. It returns a parse error for
// malformed syntax; unbound identifiers are only detected at Eval time
// (spec §4.3, UnboundVariable).
func Parse(src string) (Expr, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("formula: unexpected trailing input near %q", p.tok.text)
	}
	return expr, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// precedence table; ** binds tighter than unary minus which binds tighter
// than * /, which binds tighter than + -; comparisons bind loosest.
func binaryPrecedence(k tokenKind) (prec int, rightAssoc bool, ok bool) {
	switch k {
	case tokLt, tokGt, tokLe, tokGe, tokEq, tokNe:
		return 1, false, true
	case tokPlus, tokMinus:
		return 2, false, true
	case tokStar, tokSlash:
		return 3, false, true
	case tokCaret:
		return 4, true, true
	default:
		return 0, false, false
	}
}

func (p *parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		prec, rightAssoc, ok := binaryPrecedence(p.tok.kind)
		if !ok || prec < minPrec {
			return left, nil
		}
		op := opByte(p.tok.kind)
		if err := p.advance(); err != nil {
			return nil, err
		}
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		right, err := p.parseExpr(nextMin)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func opByte(k tokenKind) byte {
	switch k {
	case tokPlus:
		return '+'
	case tokMinus:
		return '-'
	case tokStar:
		return '*'
	case tokSlash:
		return '/'
	case tokCaret:
		return '^'
	case tokLt:
		return '<'
	case tokGt:
		return '>'
	case tokLe:
		return 'l' // <=
	case tokGe:
		return 'g' // >=
	case tokEq:
		return '='
	case tokNe:
		return '!'
	}
	return 0
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokMinus {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if p.tok.kind == tokCaret {
			if err := p.advance(); err != nil {
				return nil, err
			}
			exponent, err := p.parseExpr(4)
			if err != nil {
				return nil, err
			}
			operand = &binaryNode{op: '^', left: operand, right: exponent}
		}
		return &unaryNode{negate: true, operand: operand}, nil
	}
	if p.tok.kind == tokPlus {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.tok.kind {
	case tokNumber:
		n := &numberNode{value: p.tok.num}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("formula: expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokLParen {
			return p.parseCall(name)
		}
		return &identNode{name: name}, nil

	default:
		return nil, fmt.Errorf("formula: unexpected token while parsing expression")
	}
}

func (p *parser) parseCall(name string) (Expr, error) {
	arity, known := whitelistedFuncs[name]
	if !known {
		return nil, fmt.Errorf("formula: function %q is not in the allowed whitelist", name)
	}

	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}

	var args []Expr
	if p.tok.kind != tokRParen {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.kind == tokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if p.tok.kind != tokRParen {
		return nil, fmt.Errorf("formula: expected ')' to close call to %q", name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if arity >= 0 && len(args) != arity {
		return nil, fmt.Errorf("formula: %q expects %d argument(s), got %d", name, arity, len(args))
	}
	if arity < 0 && len(args) == 0 {
		return nil, fmt.Errorf("formula: %q expects at least one argument", name)
	}

	return &callNode{fn: name, args: args}, nil
}
