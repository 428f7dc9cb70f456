package core

import (
	"reflect"
	"testing"
	"time"
)

func counts(beer, guinness, malta, coca, chopine int) BottleCounts {
	return BottleCounts{
		Beer:     beer,
		Guinness: guinness,
		Malta:    malta,
		Coca:     coca,
		Chopine:  chopine,
	}
}

func TestInferBottleCounts(t *testing.T) {
	cases := []struct {
		desc string
		want BottleCounts
	}{
		{"2 Bouteille", counts(2, 0, 0, 0, 0)},
		{"3 bouteilles", counts(3, 0, 0, 0, 0)},
		{"2 bottles", counts(2, 0, 0, 0, 0)},
		{"1 chopine", counts(0, 0, 0, 0, 1)},
		{"4 Chopines", counts(0, 0, 0, 0, 4)},
		{"chopine", counts(0, 0, 0, 0, 1)},
		{"bouteille", counts(1, 0, 0, 0, 0)},
		{"bottle", counts(1, 0, 0, 0, 0)},
		{"2 bouteille 1.5L", counts(0, 0, 2, 0, 0)},
		{"2 bouteille 1,5l", counts(0, 0, 2, 0, 0)},
		{"3 bouteille 2L", counts(0, 0, 0, 3, 0)},
		{"1 bouteille 0.5l", counts(0, 1, 0, 0, 0)},
		{"2 1.5l", counts(0, 0, 2, 0, 0)},
		// Mixed categories in one description are summed per category.
		{"2 bouteille + 3 chopine", counts(2, 0, 0, 0, 3)},
		{"1 bouteille 2l et 2 chopines", counts(0, 0, 0, 1, 2)},
		{"2 bouteille, 1 bouteille 1.5L", counts(2, 0, 1, 0, 0)},
		// Bare "bouteille" with a size qualifier anywhere is not beer.
		{"bouteille 1.5l", counts(0, 0, 0, 0, 0)},
		// Unrecognized phrasing yields zero everywhere, no error.
		{"pain maison", counts(0, 0, 0, 0, 0)},
		{"", counts(0, 0, 0, 0, 0)},
		{"du riz 5kg", counts(0, 0, 0, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got := InferBottleCounts(tc.desc)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("InferBottleCounts(%q) = %v, want %v", tc.desc, got, tc.want)
			}
		})
	}
}

func TestInferBottleCountsIdempotent(t *testing.T) {
	desc := "2 Bouteille et 3 chopine, 1 bouteille 1.5L"
	first := InferBottleCounts(desc)
	second := InferBottleCounts(desc)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("inference is not idempotent: %v vs %v", first, second)
	}
}

func TestOutstandingBottles(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	debt := func(desc string) Transaction {
		return Transaction{ID: desc, ClientID: "G001", Description: desc, Date: day, Type: TxDebt}
	}

	log := []Transaction{
		debt("2 Bouteille"),
		debt("3 chopine"),
		debt("Returned: 1 Chopine"),
		debt("2 bouteille 1.5L"),
		debt("Returned: 1 Beer, 1 Malta"),
	}

	got := OutstandingBottles(log)
	want := counts(1, 0, 1, 0, 2)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OutstandingBottles = %v, want %v", got, want)
	}

	// Aggregation over the same immutable log must be idempotent.
	again := OutstandingBottles(log)
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("aggregation is not idempotent: %v vs %v", got, again)
	}
}

func TestOutstandingBottlesClampsAtZero(t *testing.T) {
	log := []Transaction{
		{ID: "1", Description: "1 chopine", Type: TxDebt},
		{ID: "2", Description: "Returned: 99 Chopine", Type: TxDebt},
	}
	got := OutstandingBottles(log)
	if got[Chopine] != 0 {
		t.Fatalf("chopine outstanding = %d, want 0", got[Chopine])
	}
}

func TestReturnDescriptionRoundTrip(t *testing.T) {
	returned := counts(1, 0, 0, 0, 2)
	desc := ReturnDescription(returned)
	if desc != "Returned: 1 Beer, 2 Chopine" {
		t.Fatalf("unexpected audit description %q", desc)
	}

	log := []Transaction{
		{ID: "1", Description: "3 bouteille + 2 chopine", Type: TxDebt},
		{ID: "2", Description: desc, Type: TxDebt},
	}
	got := OutstandingBottles(log)
	want := counts(2, 0, 0, 0, 0)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("net outstanding = %v, want %v", got, want)
	}
}
