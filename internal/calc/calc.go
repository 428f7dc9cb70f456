// Package calc evaluates the calculator's arithmetic expressions.
//
// Expressions are built by a keypad: decimal numbers joined by the four
// binary operators, where multiplication and division arrive as the
// display glyphs '×' and '÷'. Input is never executed as code; a small
// shunting-yard evaluator handles the restricted grammar.
package calc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBadExpression is returned for expressions that cannot be
// evaluated to a finite number (malformed input, division by zero).
var ErrBadExpression = errors.New("bad expression")

var glyphs = strings.NewReplacer("×", "*", "÷", "/", ",", ".", " ", "")

func isOperator(r rune) bool {
	return r == '+' || r == '-' || r == '*' || r == '/'
}

func precedence(op rune) int {
	if op == '*' || op == '/' {
		return 2
	}
	return 1
}

// Evaluate computes the value of an expression as typed:
//   - display glyphs are mapped to their operators,
//   - an operator typed directly after another replaces it,
//   - a trailing operator is trimmed,
//   - the remainder is evaluated with the usual precedence.
func Evaluate(expr string) (decimal.Decimal, error) {
	normalized := normalize(glyphs.Replace(expr))
	if normalized == "" {
		return decimal.Zero, fmt.Errorf("%w: empty expression", ErrBadExpression)
	}
	if isOperator(rune(normalized[0])) {
		return decimal.Zero, fmt.Errorf("%w: starts with operator", ErrBadExpression)
	}

	tokens, err := tokenize(normalized)
	if err != nil {
		return decimal.Zero, err
	}
	return evaluate(tokens)
}

// normalize applies the as-typed editing rules: consecutive operators
// collapse to the last one typed and a trailing operator is dropped.
func normalize(expr string) string {
	var b strings.Builder
	for _, r := range expr {
		if isOperator(r) && b.Len() > 0 && isOperator(rune(b.String()[b.Len()-1])) {
			s := b.String()
			b.Reset()
			b.WriteString(s[:len(s)-1])
		}
		b.WriteRune(r)
	}
	out := b.String()
	for len(out) > 0 && isOperator(rune(out[len(out)-1])) {
		out = out[:len(out)-1]
	}
	return out
}

type token struct {
	op  rune
	num decimal.Decimal
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	var current strings.Builder
	flush := func() error {
		if current.Len() == 0 {
			return nil
		}
		d, err := decimal.NewFromString(current.String())
		if err != nil {
			return fmt.Errorf("%w: number %q", ErrBadExpression, current.String())
		}
		tokens = append(tokens, token{num: d})
		current.Reset()
		return nil
	}

	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			current.WriteRune(r)
		case isOperator(r):
			if err := flush(); err != nil {
				return nil, err
			}
			if len(tokens) == 0 || tokens[len(tokens)-1].op != 0 {
				return nil, fmt.Errorf("%w: misplaced operator %q", ErrBadExpression, string(r))
			}
			tokens = append(tokens, token{op: r})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrBadExpression, string(r))
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 || tokens[len(tokens)-1].op != 0 {
		return nil, fmt.Errorf("%w: incomplete expression", ErrBadExpression)
	}
	return tokens, nil
}

// evaluate runs the shunting-yard algorithm over the token stream.
func evaluate(tokens []token) (decimal.Decimal, error) {
	var nums []decimal.Decimal
	var ops []rune

	apply := func() error {
		if len(nums) < 2 || len(ops) == 0 {
			return fmt.Errorf("%w: incomplete expression", ErrBadExpression)
		}
		b, a := nums[len(nums)-1], nums[len(nums)-2]
		nums = nums[:len(nums)-2]
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]

		var v decimal.Decimal
		switch op {
		case '+':
			v = a.Add(b)
		case '-':
			v = a.Sub(b)
		case '*':
			v = a.Mul(b)
		case '/':
			if b.IsZero() {
				return fmt.Errorf("%w: division by zero", ErrBadExpression)
			}
			v = a.Div(b)
		}
		nums = append(nums, v)
		return nil
	}

	for _, tok := range tokens {
		if tok.op == 0 {
			nums = append(nums, tok.num)
			continue
		}
		for len(ops) > 0 && precedence(ops[len(ops)-1]) >= precedence(tok.op) {
			if err := apply(); err != nil {
				return decimal.Zero, err
			}
		}
		ops = append(ops, tok.op)
	}
	for len(ops) > 0 {
		if err := apply(); err != nil {
			return decimal.Zero, err
		}
	}
	if len(nums) != 1 {
		return decimal.Zero, fmt.Errorf("%w: incomplete expression", ErrBadExpression)
	}
	return nums[0], nil
}
