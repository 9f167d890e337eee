package formula

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by this package wraps exactly one.
var (
	ErrUnresolvedReference   = errors.New("unresolved reference")
	ErrUnbalancedParentheses = errors.New("unbalanced parentheses")
	ErrMisplacedOperator     = errors.New("misplaced operator")
	ErrMalformedExpression   = errors.New("malformed expression")
	ErrInvalidResult         = errors.New("invalid result")
)

// Error carries the kind plus the offending token and its byte offset.
type Error struct {
	Kind     error
	Token    string
	Position int
}

func (e *Error) Error() string {
	if e.Token == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %q at position %d", e.Kind, e.Token, e.Position)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, token string, pos int) *Error {
	return &Error{Kind: kind, Token: token, Position: pos}
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnresolvedReference):
		return "UNRESOLVED_REFERENCE"
	case errors.Is(err, ErrUnbalancedParentheses):
		return "UNBALANCED_PARENTHESES"
	case errors.Is(err, ErrMisplacedOperator):
		return "MISPLACED_OPERATOR"
	case errors.Is(err, ErrMalformedExpression):
		return "MALFORMED_EXPRESSION"
	case errors.Is(err, ErrInvalidResult):
		return "INVALID_RESULT"
	default:
		return ""
	}
}
