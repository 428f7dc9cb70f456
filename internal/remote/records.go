package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"karne/internal/core"
)

// Wire records: snake_case field names, ISO-8601 date strings and a
// JSON-encoded bottles_owed mapping. The same shapes travel on the
// change feed and sit in the local fallback store.

type ClientRecord struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	TotalDebt         string `json:"total_debt"`
	BottlesOwed       string `json:"bottles_owed"`
	CreatedAt         string `json:"created_at"`
	LastTransactionAt string `json:"last_transaction_at"`
}

type TransactionRecord struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

type PaymentRecord struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
	Type     string `json:"type"`
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", core.ErrParse, s)
	}
	return t, nil
}

// EncodeBottles renders the bottles_owed mapping as its JSON wire form.
func EncodeBottles(c core.BottleCounts) string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeBottles parses the stored bottles_owed payload. On failure it
// returns the all-zero mapping together with a core.ErrParse so the
// caller can degrade gracefully, one client at a time.
func DecodeBottles(payload string) (core.BottleCounts, error) {
	out := core.NewBottleCounts()
	if payload == "" {
		return out, nil
	}
	var raw map[string]int
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return core.NewBottleCounts(), fmt.Errorf("%w: bottles_owed %q", core.ErrParse, payload)
	}
	for k, v := range raw {
		cat := core.BottleCategory(k)
		if _, known := out[cat]; known && v > 0 {
			out[cat] = v
		}
	}
	return out, nil
}

func ClientRecordFromCore(c core.Client) ClientRecord {
	return ClientRecord{
		ID:                c.ID,
		Name:              c.Name,
		TotalDebt:         c.TotalDebt.String(),
		BottlesOwed:       EncodeBottles(c.BottlesOwed),
		CreatedAt:         formatTime(c.CreatedAt),
		LastTransactionAt: formatTime(c.LastTransactionAt),
	}
}

// ToCore converts the record back into the domain form. A bottles_owed
// decode failure is recovered in place: the returned client carries the
// zero mapping and the error wraps core.ErrParse for logging.
func (r ClientRecord) ToCore() (core.Client, error) {
	debt, err := core.ParseMoney(r.TotalDebt)
	if err != nil {
		return core.Client{}, fmt.Errorf("client %s: total_debt: %w", r.ID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Client{}, fmt.Errorf("client %s: %w", r.ID, err)
	}
	lastAt, err := parseTime(r.LastTransactionAt)
	if err != nil {
		return core.Client{}, fmt.Errorf("client %s: %w", r.ID, err)
	}

	bottles, bottlesErr := DecodeBottles(r.BottlesOwed)
	c := core.Client{
		ID:                r.ID,
		Name:              r.Name,
		TotalDebt:         debt.ClampZero(),
		BottlesOwed:       bottles,
		CreatedAt:         createdAt,
		LastTransactionAt: lastAt,
	}
	if bottlesErr != nil {
		return c, fmt.Errorf("client %s: %w", r.ID, bottlesErr)
	}
	return c, nil
}

func TransactionRecordFromCore(tx core.Transaction) TransactionRecord {
	return TransactionRecord{
		ID:          tx.ID,
		ClientID:    tx.ClientID,
		Description: tx.Description,
		Amount:      tx.Amount.String(),
		Date:        formatTime(tx.Date),
		Type:        string(tx.Type),
	}
}

func (r TransactionRecord) ToCore() (core.Transaction, error) {
	amount, err := core.ParseMoney(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: amount: %w", r.ID, err)
	}
	date, err := parseTime(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	return core.Transaction{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Description: r.Description,
		Amount:      amount,
		Date:        date,
		Type:        core.TransactionType(r.Type),
	}, nil
}

func PaymentRecordFromCore(p core.Payment) PaymentRecord {
	return PaymentRecord{
		ID:       p.ID,
		ClientID: p.ClientID,
		Amount:   p.Amount.String(),
		Date:     formatTime(p.Date),
		Type:     string(p.Type),
	}
}

func (r PaymentRecord) ToCore() (core.Payment, error) {
	amount, err := core.ParseMoney(r.Amount)
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment %s: amount: %w", r.ID, err)
	}
	date, err := parseTime(r.Date)
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment %s: %w", r.ID, err)
	}
	return core.Payment{
		ID:       r.ID,
		ClientID: r.ClientID,
		Amount:   amount,
		Date:     date,
		Type:     core.PaymentType(r.Type),
	}, nil
}
