package calc

import (
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"2+3", "5"},
		{"10-4", "6"},
		{"6×7", "42"},
		{"10÷4", "2.5"},
		{"2+3×4", "14"},
		{"100-20÷4", "95"},
		{"1.5+1,5", "3"},
		{"12.50×2", "25"},
		// Operator replacement: the later operator wins.
		{"3+×2", "6"},
		{"8÷-2", "6"},
		// Trailing operators are trimmed as typed.
		{"3+2+", "5"},
		{"7×", "7"},
		{"5--", "5"},
		{"42", "42"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Evaluate(tc.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q) unexpected error: %v", tc.expr, err)
			}
			if got.String() != tc.want {
				t.Fatalf("Evaluate(%q) = %s, want %s", tc.expr, got, tc.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	cases := []string{
		"",
		"+2",
		"×3",
		"abc",
		"2+x",
		"1..2+3",
		"5÷0",
		"1+2÷0",
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			if _, err := Evaluate(expr); !errors.Is(err, ErrBadExpression) {
				t.Fatalf("Evaluate(%q) error = %v, want ErrBadExpression", expr, err)
			}
		})
	}
}
