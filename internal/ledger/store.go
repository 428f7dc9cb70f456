// Package ledger holds the in-memory aggregate of clients, debt
// transactions and payments. It is the single shared mutable resource:
// the ledger service writes user-initiated mutations into it and the
// sync bridge writes remote-origin mutations into it, both through the
// same idempotent per-id primitives.
package ledger

import (
	"sort"
	"strings"
	"sync"

	"karne/internal/core"
)

type Store struct {
	mu           sync.RWMutex
	clients      map[string]core.Client
	transactions map[string]core.Transaction
	payments     map[string]core.Payment
}

func NewStore() *Store {
	return &Store{
		clients:      make(map[string]core.Client),
		transactions: make(map[string]core.Transaction),
		payments:     make(map[string]core.Payment),
	}
}

// ReplaceAll swaps the whole store content in one step. Used by the
// loader after a full reload.
func (s *Store) ReplaceAll(clients []core.Client, txs []core.Transaction, payments []core.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients = make(map[string]core.Client, len(clients))
	for _, c := range clients {
		c.BottlesOwed = c.BottlesOwed.Clone()
		s.clients[c.ID] = c
	}
	s.transactions = make(map[string]core.Transaction, len(txs))
	for _, tx := range txs {
		s.transactions[tx.ID] = tx
	}
	s.payments = make(map[string]core.Payment, len(payments))
	for _, p := range payments {
		s.payments[p.ID] = p
	}
}

// UpsertClient inserts or replaces a client by id. Inserting an id
// that already exists is a pure replace, never a duplicate.
func (s *Store) UpsertClient(c core.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.BottlesOwed = c.BottlesOwed.Clone()
	s.clients[c.ID] = c
}

// RemoveClient removes a client and cascades to its transactions and
// payments. Removing an absent id is a no-op.
func (s *Store) RemoveClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
	for txID, tx := range s.transactions {
		if tx.ClientID == id {
			delete(s.transactions, txID)
		}
	}
	for pID, p := range s.payments {
		if p.ClientID == id {
			delete(s.payments, pID)
		}
	}
}

func (s *Store) UpsertTransaction(tx core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
}

func (s *Store) RemoveTransaction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
}

func (s *Store) UpsertPayment(p core.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *Store) RemovePayment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payments, id)
}

// Client returns the cached client record by id.
func (s *Store) Client(id string) (core.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if ok {
		c.BottlesOwed = c.BottlesOwed.Clone()
	}
	return c, ok
}

// Clients returns all clients ordered by name.
func (s *Store) Clients() []core.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Client, 0, len(s.clients))
	for _, c := range s.clients {
		c.BottlesOwed = c.BottlesOwed.Clone()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ClientIDs returns the set of ids currently in use, for the allocator.
func (s *Store) ClientIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.clients))
	for id := range s.clients {
		out = append(out, id)
	}
	return out
}

// Search returns clients whose name or id contains q,
// case-insensitively, ordered by name.
func (s *Store) Search(q string) []core.Client {
	q = strings.ToLower(strings.TrimSpace(q))
	all := s.Clients()
	if q == "" {
		return all
	}
	out := all[:0]
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.ID), q) {
			out = append(out, c)
		}
	}
	return out
}

// TransactionsFor returns the client's transactions, newest first.
func (s *Store) TransactionsFor(clientID string) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.ClientID == clientID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// PaymentsFor returns the client's payments, newest first.
func (s *Store) PaymentsFor(clientID string) []core.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Payment
	for _, p := range s.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// TotalDebt recomputes the client's debt from the logs:
// max(0, sum of debt transactions - sum of payments). The cached
// aggregate on the client record must always equal this value.
func (s *Store) TotalDebt(clientID string) core.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var debt core.Money
	for _, tx := range s.transactions {
		if tx.ClientID == clientID && tx.Type == core.TxDebt {
			debt = debt.Add(tx.Amount)
		}
	}
	for _, p := range s.payments {
		if p.ClientID == clientID {
			debt = debt.Sub(p.Amount)
		}
	}
	return debt.ClampZero()
}

// OutstandingBottles recomputes the per-category bottle balance from
// the transaction log alone.
func (s *Store) OutstandingBottles(clientID string) core.BottleCounts {
	return core.OutstandingBottles(s.TransactionsFor(clientID))
}

// Snapshot returns a copy of everything in the store, ordered the way
// the collections are listed (clients by name, logs newest first).
func (s *Store) Snapshot() ([]core.Client, []core.Transaction, []core.Payment) {
	clients := s.Clients()

	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := make([]core.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date.Equal(txs[j].Date) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].Date.After(txs[j].Date)
	})
	payments := make([]core.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		payments = append(payments, p)
	}
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].Date.Equal(payments[j].Date) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].Date.After(payments[j].Date)
	})
	return clients, txs, payments
}
