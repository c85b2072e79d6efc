// Package formula parses and evaluates the arithmetic templates used by
// computed fields, e.g. "({price} - {discount}) * {qty}".
//
// Only numeric literals, {field} references, + - * / and parentheses are
// accepted. Identifiers, function calls and any other syntax are rejected
// when the template is parsed.
package formula

import (
	"math"
	"strconv"
	"strings"

	"go-aggregation-engine/internal/model"
)

type token interface {
	String() string
}

type numberToken float64

func (t numberToken) String() string { return strconv.FormatFloat(float64(t), 'f', -1, 64) }

type fieldToken string

func (t fieldToken) String() string { return "{" + string(t) + "}" }

type opToken string

func (t opToken) String() string { return string(t) }

// placeholderToken is the missing left operand of a unary operator.
type placeholderToken struct{}

func (placeholderToken) String() string { return "_" }

// Expression is a parsed formula. It is immutable and safe for concurrent use.
type Expression struct {
	src    string
	rpn    []token
	fields []string
}

// Parse compiles src into an Expression.
func Parse(src string) (*Expression, error) {
	var b rpnBuilder
	var fields []string
	seen := map[string]bool{}

	expr := []rune(src)
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			continue

		case c == '{':
			end := i + 1
			for end < len(expr) && expr[end] != '}' {
				end++
			}
			if end == len(expr) {
				return nil, model.ConfigValidationError("unterminated field reference", map[string]any{
					"formula": src,
					"pos":     i,
				})
			}
			name := strings.TrimSpace(string(expr[i+1 : end]))
			if name == "" || strings.ContainsRune(name, '{') {
				return nil, model.ConfigValidationError("invalid field reference", map[string]any{
					"formula": src,
					"pos":     i,
				})
			}
			if err := b.handleOperand(fieldToken(name)); err != nil {
				return nil, withFormula(err, src)
			}
			if !seen[name] {
				seen[name] = true
				fields = append(fields, name)
			}
			i = end

		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			f, err := strconv.ParseFloat(string(expr[i:j]), 64)
			if err != nil {
				return nil, model.ConfigValidationError("invalid number", map[string]any{
					"formula": src,
					"number":  string(expr[i:j]),
				})
			}
			if err := b.handleOperand(numberToken(f)); err != nil {
				return nil, withFormula(err, src)
			}
			i = j - 1

		case c == '+' || c == '-' || c == '*' || c == '/':
			if err := b.handleOp(string(c)); err != nil {
				return nil, withFormula(err, src)
			}

		case c == '(':
			if err := b.openBracket(); err != nil {
				return nil, withFormula(err, src)
			}

		case c == ')':
			if err := b.closeBracket(); err != nil {
				return nil, withFormula(err, src)
			}

		default:
			return nil, model.ConfigValidationError("unexpected character in formula", map[string]any{
				"formula": src,
				"char":    string(c),
				"pos":     i,
			})
		}
	}

	rpn, err := b.finish()
	if err != nil {
		return nil, withFormula(err, src)
	}

	return &Expression{
		src:    src,
		rpn:    rpn,
		fields: fields,
	}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Fields returns the referenced field names in order of first appearance.
func (e *Expression) Fields() []string {
	return e.fields
}

func (e *Expression) String() string {
	return e.src
}

// RPN returns the postfix form of the expression, mostly for debugging.
func (e *Expression) RPN() string {
	parts := make([]string, len(e.rpn))
	for i, t := range e.rpn {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Eval evaluates the expression against rec. Field values are coerced to
// numbers, missing or non-numeric values count as 0.
func (e *Expression) Eval(rec model.Record) (float64, error) {
	stack := make([]float64, 0, len(e.rpn))
	for _, t := range e.rpn {
		switch tok := t.(type) {
		case numberToken:
			stack = append(stack, float64(tok))
		case fieldToken:
			stack = append(stack, rec.Numeric(string(tok)))
		case placeholderToken:
			stack = append(stack, 0)
		case opToken:
			l := len(stack)
			if l < 2 {
				return 0, model.ComputationError("malformed expression", map[string]any{
					"formula": e.src,
				})
			}
			left, right := stack[l-2], stack[l-1]
			stack = stack[:l-2]

			var v float64
			switch tok {
			case "+":
				v = left + right
			case "-":
				v = left - right
			case "*":
				v = left * right
			case "/":
				if right == 0 {
					return 0, model.ComputationError("division by zero", map[string]any{
						"formula": e.src,
					})
				}
				v = left / right
			}
			stack = append(stack, v)
		}
	}

	if len(stack) != 1 {
		return 0, model.ComputationError("malformed expression", map[string]any{
			"formula": e.src,
		})
	}
	if math.IsNaN(stack[0]) || math.IsInf(stack[0], 0) {
		return 0, model.ComputationError("expression result is not a finite number", map[string]any{
			"formula": e.src,
		})
	}
	return stack[0], nil
}

func withFormula(err error, src string) error {
	e, ok := err.(model.Err)
	if !ok {
		return err
	}
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data["formula"] = src
	e.Data = data
	return e
}
