package core

import (
	"errors"
	"testing"
)

func TestFormatClientName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john", "John"},
		{"  jean   paul ", "Jean Paul"},
		{"MARIE CLAIRE", "Marie Claire"},
		{"o'brien", "O'brien"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := FormatClientName(tc.in); got != tc.want {
			t.Fatalf("FormatClientName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"250", "250", true},
		{"12.50", "12.5", true},
		{"12,50", "12.5", true},
		{" 100 ", "100", true},
		{"-5", "-5", true},
		{"0", "0", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseMoney(%q) unexpected error: %v", tc.in, err)
			}
			if got.String() != tc.out {
				t.Fatalf("ParseMoney(%q) = %s, want %s", tc.in, got, tc.out)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseMoney(%q) expected error", tc.in)
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseMoney(%q) error %v is not ErrInvalidAmount", tc.in, err)
		}
	}
}

func TestMoneyClampZero(t *testing.T) {
	if got := MustMoney("-3").ClampZero(); !got.IsZero() {
		t.Fatalf("ClampZero(-3) = %s, want 0", got)
	}
	if got := MustMoney("7").ClampZero(); got.String() != "7" {
		t.Fatalf("ClampZero(7) = %s, want 7", got)
	}
}

func TestBottleCountsClone(t *testing.T) {
	orig := BottleCounts{Beer: 2}
	clone := orig.Clone()
	clone[Beer] = 9
	if orig[Beer] != 2 {
		t.Fatal("Clone must not share storage with the original")
	}
	for _, cat := range Categories() {
		if _, ok := clone[cat]; !ok {
			t.Fatalf("Clone missing category %s", cat)
		}
	}
}
