package formula

import "go-aggregation-engine/internal/model"

// opPrecedence lists the supported operators, lower binds tighter.
// Left unary operators are prefixed with "L".
var opPrecedence = map[string]int{
	"L-": 3, "L+": 3,
	"*": 5, "/": 5,
	"+": 6, "-": 6,

	// Never popped by an operator, only by its closing bracket.
	"(": 100,
}

// rpnBuilder turns a stream of tokens into Reverse Polish Notation
// using the shunting-yard algorithm.
//
// E.g. "{a} + {b} * 2" becomes [a, b, 2, *, +].
type rpnBuilder struct {
	rpn     []token
	opStack []string

	// lastOp holds the last operator seen, or "no" when the last token
	// was an operand. The zero value counts as an operator so a leading
	// "-" is read as unary.
	lastOp       string
	lastWasUnary bool
}

func (r *rpnBuilder) handleOperand(t token) error {
	if r.lastOp == "no" {
		return model.ConfigValidationError("expected an operator between operands", map[string]any{
			"token": t.String(),
		})
	}

	r.rpn = append(r.rpn, t)
	r.lastOp = "no"
	r.lastWasUnary = false
	return nil
}

func (r *rpnBuilder) handleOp(op string) error {
	if r.lastOp != "no" {
		if _, ok := opPrecedence["L"+op]; !ok {
			return model.ConfigValidationError("unexpected operator", map[string]any{
				"op": op,
			})
		}
		// The placeholder stands for the missing left operand.
		r.rpn = append(r.rpn, placeholderToken{})
		r.opStack = append(r.opStack, "L"+op)
		r.lastOp = op
		r.lastWasUnary = true
		return nil
	}

	r.popWhile(op)
	r.opStack = append(r.opStack, op)
	r.lastOp = op
	r.lastWasUnary = false
	return nil
}

// popWhile moves operators that bind at least as tight as op to the output.
func (r *rpnBuilder) popWhile(op string) {
	l := len(r.opStack)
	for ; l > 0 && opPrecedence[op] >= opPrecedence[r.opStack[l-1]]; l-- {
		r.rpn = append(r.rpn, opToken(normalizeOp(r.opStack[l-1])))
	}
	r.opStack = r.opStack[:l]
}

func (r *rpnBuilder) openBracket() error {
	if r.lastOp == "no" {
		return model.ConfigValidationError("unexpected opening bracket after an operand", nil)
	}
	r.opStack = append(r.opStack, "(")
	r.lastOp = "("
	r.lastWasUnary = false
	return nil
}

func (r *rpnBuilder) closeBracket() error {
	if r.lastOp == "(" {
		return model.ConfigValidationError("bracket closed with no elements", nil)
	}
	if r.lastOp != "no" {
		return model.ConfigValidationError("expected operand before closing bracket", map[string]any{
			"op": r.lastOp,
		})
	}

	l := len(r.opStack)
	for ; l > 0 && r.opStack[l-1] != "("; l-- {
		r.rpn = append(r.rpn, opToken(normalizeOp(r.opStack[l-1])))
	}
	if l == 0 {
		return model.ConfigValidationError("extra closing bracket on the expression", nil)
	}

	// Drop the open bracket:
	r.opStack = r.opStack[:l-1]
	r.lastOp = "no"
	return nil
}

func (r *rpnBuilder) finish() ([]token, error) {
	if r.lastWasUnary || r.lastOp != "no" {
		if len(r.rpn) == 0 && len(r.opStack) == 0 {
			return nil, model.ConfigValidationError("empty expression", nil)
		}
		return nil, model.ConfigValidationError("expected operand at the end of the expression", map[string]any{
			"op": r.lastOp,
		})
	}

	for l := len(r.opStack); l > 0; l-- {
		op := r.opStack[l-1]
		if op == "(" {
			return nil, model.ConfigValidationError("missing closing bracket", nil)
		}
		r.rpn = append(r.rpn, opToken(normalizeOp(op)))
	}
	r.opStack = r.opStack[:0]

	return r.rpn, nil
}

func normalizeOp(op string) string {
	if op[0] == 'L' {
		return op[1:]
	}
	return op
}
