package formula

import (
	"regexp"

	"github.com/shopspring/decimal"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	text  string
	pos   int
	value decimal.Decimal
}

var numberLiteral = regexp.MustCompile(`^([0-9]+\.?[0-9]*|\.[0-9]+)$`)

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// isSpace reports the only separator formulas allow. Tabs and newlines fall
// through to the unresolved-character branch.
func isSpace(c byte) bool {
	return c == ' '
}

// tokenize splits src into tokens. Word runs are taken whole, so an
// identifier never matches part of a longer name.
func tokenize(src string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case isSpace(c):
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{kind: tokOperator, text: string(c), pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isWordChar(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
		case (c >= '0' && c <= '9') || c == '.':
			start := i
			for i < len(src) && (isWordChar(src[i]) || src[i] == '.') {
				i++
			}
			text := src[start:i]
			if !numberLiteral.MatchString(text) {
				return nil, newError(ErrUnresolvedReference, text, start)
			}
			value, err := decimal.NewFromString(normalizeLiteral(text))
			if err != nil {
				return nil, newError(ErrUnresolvedReference, text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, pos: start, value: value})
		default:
			return nil, newError(ErrUnresolvedReference, string(c), i)
		}
	}

	return tokens, nil
}

// normalizeLiteral turns "1." into "1" and ".5" into "0.5".
func normalizeLiteral(text string) string {
	if text[0] == '.' {
		text = "0" + text
	}
	if text[len(text)-1] == '.' {
		text = text[:len(text)-1]
	}
	return text
}
