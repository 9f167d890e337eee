package formula

import (
	"github.com/shopspring/decimal"
)

// checkParentheses rejects a closing paren without an opener and any opener
// left unclosed.
func checkParentheses(tokens []token) error {
	depth := 0
	for _, t := range tokens {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth < 0 {
				return newError(ErrUnbalancedParentheses, t.text, t.pos)
			}
		}
	}
	if depth != 0 {
		return newError(ErrUnbalancedParentheses, "", -1)
	}
	return nil
}

// checkOperators enforces binary-only operators: none first or last, none
// adjacent, none directly after "(" or before ")".
func checkOperators(tokens []token) error {
	for i, t := range tokens {
		if t.kind != tokOperator {
			continue
		}
		if i == 0 || i == len(tokens)-1 {
			return newError(ErrMisplacedOperator, t.text, t.pos)
		}
		prev, next := tokens[i-1], tokens[i+1]
		if prev.kind == tokOperator || prev.kind == tokLParen {
			return newError(ErrMisplacedOperator, t.text, t.pos)
		}
		if next.kind == tokOperator || next.kind == tokRParen {
			return newError(ErrMisplacedOperator, t.text, t.pos)
		}
	}
	return nil
}

// parser is a recursive-descent evaluator over resolved tokens:
//
//	expr   := term (("+" | "-") term)*
//	term   := factor (("*" | "/") factor)*
//	factor := number | "(" expr ")"
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parse() (decimal.Decimal, error) {
	v, err := p.expr()
	if err != nil {
		return decimal.Zero, err
	}
	if t, ok := p.peek(); ok {
		return decimal.Zero, newError(ErrMalformedExpression, t.text, t.pos)
	}
	return v, nil
}

func (p *parser) expr() (decimal.Decimal, error) {
	left, err := p.term()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOperator || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return decimal.Zero, err
		}
		if t.text == "+" {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

func (p *parser) term() (decimal.Decimal, error) {
	left, err := p.factor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOperator || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.pos++
		right, err := p.factor()
		if err != nil {
			return decimal.Zero, err
		}
		if t.text == "*" {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, newError(ErrInvalidResult, t.text, t.pos)
		}
		left = left.Div(right)
	}
}

func (p *parser) factor() (decimal.Decimal, error) {
	t, ok := p.peek()
	if !ok {
		return decimal.Zero, newError(ErrMalformedExpression, "", -1)
	}
	switch t.kind {
	case tokNumber:
		p.pos++
		return t.value, nil
	case tokLParen:
		p.pos++
		v, err := p.expr()
		if err != nil {
			return decimal.Zero, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return decimal.Zero, newError(ErrMalformedExpression, closing.text, closing.pos)
		}
		p.pos++
		return v, nil
	default:
		return decimal.Zero, newError(ErrMalformedExpression, t.text, t.pos)
	}
}
