// Package formula evaluates the arithmetic expressions stored on formula
// fields. Identifiers reference numeric fields of the catalog; every other
// identifier is an unresolved reference. Evaluation is pure and never
// mutates its inputs.
package formula

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"order-crm/internal/models"

	"github.com/shopspring/decimal"
)

// Sample values substituted when previewing a formula during authoring.
var (
	SampleNumber   = decimal.NewFromInt(10)
	SampleCurrency = decimal.NewFromInt(100)
)

// Evaluator resolves identifiers against a fixed set of known numeric fields.
type Evaluator struct {
	known map[string]models.FieldType
}

// NewEvaluator builds an evaluator over the numeric fields in defs.
// Non-numeric definitions are ignored.
func NewEvaluator(defs []models.FieldDefinition) *Evaluator {
	known := make(map[string]models.FieldType, len(defs))
	for _, d := range defs {
		if d.FieldType.Numeric() {
			known[d.FieldName] = d.FieldType
		}
	}
	return &Evaluator{known: known}
}

// NewNameEvaluator treats every name as a number field.
func NewNameEvaluator(names ...string) *Evaluator {
	known := make(map[string]models.FieldType, len(names))
	for _, n := range names {
		known[n] = models.FieldTypeNumber
	}
	return &Evaluator{known: known}
}

// Known reports whether name is a referenceable field.
func (e *Evaluator) Known(name string) bool {
	_, ok := e.known[name]
	return ok
}

// Evaluate computes formula against values, rounded to two decimal places.
// Known fields with a missing, empty or non-numeric value count as zero.
func (e *Evaluator) Evaluate(formula string, values map[string]any) (decimal.Decimal, error) {
	return e.evaluate(formula, func(name string) decimal.Decimal {
		return numericValue(values[name])
	})
}

// Preview evaluates formula with sample values: 10 for number fields and
// 100 for currency fields.
func (e *Evaluator) Preview(formula string) (decimal.Decimal, error) {
	return e.evaluate(formula, func(name string) decimal.Decimal {
		if e.known[name] == models.FieldTypeCurrency {
			return SampleCurrency
		}
		return SampleNumber
	})
}

func (e *Evaluator) evaluate(formula string, lookup func(string) decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(formula) == "" {
		return decimal.Zero, nil
	}

	tokens, err := tokenize(formula)
	if err != nil {
		return decimal.Zero, err
	}

	for i, t := range tokens {
		if t.kind != tokIdent {
			continue
		}
		if !e.Known(t.text) {
			return decimal.Zero, newError(ErrUnresolvedReference, t.text, t.pos)
		}
		tokens[i].kind = tokNumber
		tokens[i].value = lookup(t.text)
	}

	if err := checkParentheses(tokens); err != nil {
		return decimal.Zero, err
	}
	if err := checkOperators(tokens); err != nil {
		return decimal.Zero, err
	}

	p := &parser{tokens: tokens}
	result, err := p.parse()
	if err != nil {
		return decimal.Zero, err
	}
	return result.Round(2), nil
}

// Identifiers lists the distinct identifiers referenced by formula in
// sorted order. Malformed input yields the identifiers found before the
// first bad token.
func Identifiers(formula string) []string {
	seen := map[string]bool{}
	for i := 0; i < len(formula); {
		if isIdentStart(formula[i]) && (i == 0 || !isWordChar(formula[i-1]) && formula[i-1] != '.') {
			start := i
			for i < len(formula) && isWordChar(formula[i]) {
				i++
			}
			seen[formula[start:i]] = true
			continue
		}
		i++
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Format renders a result the way it is displayed and exported.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// numericValue coerces a stored field value to a number, defaulting to zero.
func numericValue(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	case float32:
		return numericValue(float64(n))
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case json.Number:
		return numericValue(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// NumericValue exposes the coercion used for field values so that callers
// aggregating amounts agree with formula results.
func NumericValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		if _, err := decimal.NewFromString(strings.TrimSpace(n)); err != nil {
			return decimal.Zero, false
		}
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
	case bool, map[string]any, []any:
		return decimal.Zero, false
	}
	return numericValue(v), true
}
