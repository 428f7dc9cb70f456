// Package memory provides an in-process fake of the remote store, used
// by the dev backend and by service tests. A failure can be injected to
// exercise the commit-on-success path.
package memory

import (
	"context"
	"sort"
	"sync"

	"karne/internal/core"
)

type Store struct {
	mu           sync.Mutex
	failWith     error
	clients      map[string]core.Client
	transactions map[string]core.Transaction
	payments     map[string]core.Payment
}

func New() *Store {
	return &Store{
		clients:      make(map[string]core.Client),
		transactions: make(map[string]core.Transaction),
		payments:     make(map[string]core.Payment),
	}
}

// FailWith makes every subsequent call return err; nil restores normal
// operation.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failWith
}

func (s *Store) InsertClient(_ context.Context, c core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	c.BottlesOwed = c.BottlesOwed.Clone()
	s.clients[c.ID] = c
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, c core.Client) error {
	return s.InsertClient(ctx, c)
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
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
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) InsertPayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) ListClients(_ context.Context) ([]core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]core.Client, 0, len(s.clients))
	for _, c := range s.clients {
		c.BottlesOwed = c.BottlesOwed.Clone()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) ListPayments(_ context.Context) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]core.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
