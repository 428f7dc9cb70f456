package core

import (
	"strings"
	"time"
	"unicode"
)

// BottleCategory is one of the fixed returnable-container categories a
// client can owe deposits on.
type BottleCategory string

const (
	Beer     BottleCategory = "beer"
	Guinness BottleCategory = "guinness"
	Malta    BottleCategory = "malta"
	Coca     BottleCategory = "coca"
	Chopine  BottleCategory = "chopine"
)

// Categories returns the fixed category set in display order.
func Categories() []BottleCategory {
	return []BottleCategory{Beer, Guinness, Malta, Coca, Chopine}
}

// BottleCounts maps a category to a non-negative count of bottles.
type BottleCounts map[BottleCategory]int

// NewBottleCounts returns an all-zero mapping covering every category.
func NewBottleCounts() BottleCounts {
	c := make(BottleCounts, len(Categories()))
	for _, cat := range Categories() {
		c[cat] = 0
	}
	return c
}

// Clone returns an independent copy, filling in missing categories
// with zero.
func (c BottleCounts) Clone() BottleCounts {
	out := NewBottleCounts()
	for cat, n := range c {
		out[cat] = n
	}
	return out
}

// Plus returns a copy with o added per category.
func (c BottleCounts) Plus(o BottleCounts) BottleCounts {
	out := c.Clone()
	for cat, n := range o {
		out[cat] += n
	}
	return out
}

// IsZero reports whether every category count is zero.
func (c BottleCounts) IsZero() bool {
	for _, n := range c {
		if n != 0 {
			return false
		}
	}
	return true
}

type TransactionType string

const (
	TxDebt    TransactionType = "debt"
	TxPayment TransactionType = "payment"
)

type PaymentType string

const (
	PaymentPartial PaymentType = "partial"
	PaymentFull    PaymentType = "full"
)

// Client is a person with a running debt and a bottle-deposit balance.
// TotalDebt and BottlesOwed are cached aggregates; both are derivable
// from the transaction and payment logs at any time.
type Client struct {
	ID                string
	Name              string
	TotalDebt         Money
	BottlesOwed       BottleCounts
	CreatedAt         time.Time
	LastTransactionAt time.Time
}

// Transaction is an append-only ledger entry. Corrections are made via
// new compensating entries, never by editing history.
type Transaction struct {
	ID          string
	ClientID    string
	Description string
	Amount      Money
	Date        time.Time
	Type        TransactionType
}

// Payment is an append-only record decreasing a client's owed amount.
type Payment struct {
	ID       string
	ClientID string
	Amount   Money
	Date     time.Time
	Type     PaymentType
}

// FormatClientName normalizes a display name: collapse whitespace and
// title-case each word ("  jean   paul " -> "Jean Paul").
func FormatClientName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
