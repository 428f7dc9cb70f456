package core

import "testing"

func TestNextClientID(t *testing.T) {
	cases := []struct {
		name     string
		existing []string
		want     string
	}{
		{"empty set", []string{}, "G001"},
		{"dense sequence", []string{"G001", "G002", "G003"}, "G004"},
		{"gap is recycled", []string{"G001", "G002", "G004"}, "G003"},
		{"first slot free", []string{"G002", "G003"}, "G001"},
		{"non-matching ids ignored", []string{"G001", "X999", "g002", "G02", "item-7"}, "G002"},
		{"unordered input", []string{"G003", "G001"}, "G002"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextClientID(tc.existing, "G", 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NextClientID(%v) = %q, want %q", tc.existing, got, tc.want)
			}
		})
	}
}

func TestNextClientIDDeterministic(t *testing.T) {
	existing := []string{"G001", "G004", "G002"}
	first, err := NextClientID(existing, "G", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NextClientID(existing, "G", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("allocation is not deterministic: %q vs %q", first, second)
	}
}

func TestNextClientIDExhausted(t *testing.T) {
	existing := make([]string, 0, 9)
	for i := 1; i <= 9; i++ {
		id, err := NextClientID(existing, "G", 1)
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
		existing = append(existing, id)
	}
	if _, err := NextClientID(existing, "G", 1); err == nil {
		t.Fatal("expected capacity error once the numeric space is full")
	}
}
