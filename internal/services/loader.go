package services

import (
	"context"
	"fmt"
	"log/slog"

	"karne/internal/core"
	"karne/internal/ledger"
	"karne/internal/remote"
	"karne/internal/storage"
)

// Loader fills the ledger store at startup: remote first, local mirror
// when the remote is unreachable. After a successful remote load it
// refreshes the mirror so the next offline start serves current data.
type Loader struct {
	remote remote.Store
	local  *storage.Local
	store  *ledger.Store
}

// NewLoader builds a loader. local may be nil when no fallback store is
// configured.
func NewLoader(r remote.Store, local *storage.Local, store *ledger.Store) *Loader {
	return &Loader{remote: r, local: local, store: store}
}

func (l *Loader) Load(ctx context.Context) error {
	clients, txs, payments, err := l.loadRemote(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Remote load failed, falling back to local mirror", "error", err)
		if l.local == nil {
			return err
		}
		clients, txs, payments, err = l.local.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load local mirror: %w", err)
		}
		l.store.ReplaceAll(clients, txs, payments)
		slog.InfoContext(ctx, "Ledger loaded from local mirror",
			"clients", len(clients),
			"transactions", len(txs),
			"payments", len(payments))
		return nil
	}

	l.store.ReplaceAll(clients, txs, payments)
	slog.InfoContext(ctx, "Ledger loaded from remote store",
		"clients", len(clients),
		"transactions", len(txs),
		"payments", len(payments))

	if l.local != nil {
		if err := l.local.ReplaceAll(ctx, clients, txs, payments); err != nil {
			// The in-memory state is already good; a stale mirror only
			// hurts the next offline start.
			slog.ErrorContext(ctx, "Failed to refresh local mirror", "error", err)
		}
	}
	return nil
}

func (l *Loader) loadRemote(ctx context.Context) ([]core.Client, []core.Transaction, []core.Payment, error) {
	clients, err := l.remote.ListClients(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	txs, err := l.remote.ListTransactions(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := l.remote.ListPayments(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return clients, txs, payments, nil
}
