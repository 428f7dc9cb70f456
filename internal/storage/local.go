// Package storage is the local SQLite mirror of the remote store. The
// server reads it at startup when the remote is unreachable and
// refreshes it after every successful remote load; the mirror worker
// keeps it current by applying change-feed events.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"karne/internal/core"
	"karne/internal/feed"
	"karne/internal/remote"

	_ "modernc.org/sqlite"
)

type Local struct {
	db *sql.DB
}

func NewLocal(dbPath string) (*Local, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Local{db: db}, nil
}

func (l *Local) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// ReplaceAll swaps the whole mirror for a fresh snapshot in one
// transaction, so a reader never sees a half-written state.
func (l *Local) ReplaceAll(ctx context.Context, clients []core.Client, txs []core.Transaction, payments []core.Payment) error {
	dbTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, table := range []string{"payments", "transactions", "clients"} {
		if _, err := dbTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range clients {
		if err := upsertClient(ctx, dbTx, remote.ClientRecordFromCore(c)); err != nil {
			return err
		}
	}
	for _, t := range txs {
		if err := upsertTransaction(ctx, dbTx, remote.TransactionRecordFromCore(t)); err != nil {
			return err
		}
	}
	for _, p := range payments {
		if err := upsertPayment(ctx, dbTx, remote.PaymentRecordFromCore(p)); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Local mirror refreshed",
		"clients", len(clients),
		"transactions", len(txs),
		"payments", len(payments))
	return nil
}

// LoadAll reads the full mirror. A client whose bottles_owed payload is
// corrupt comes back with the all-zero mapping instead of failing the
// load.
func (l *Local) LoadAll(ctx context.Context) ([]core.Client, []core.Transaction, []core.Payment, error) {
	clients, err := l.loadClients(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	txs, err := l.loadTransactions(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := l.loadPayments(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return clients, txs, payments, nil
}

func (l *Local) loadClients(ctx context.Context) ([]core.Client, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, name, total_debt, bottles_owed, created_at, last_transaction_at
		FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		var r remote.ClientRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.TotalDebt, &r.BottlesOwed, &r.CreatedAt, &r.LastTransactionAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c, err := r.ToCore()
		if err != nil {
			if !errors.Is(err, core.ErrParse) {
				return nil, err
			}
			slog.WarnContext(ctx, "Recovered corrupt client record", "client_id", r.ID, "error", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (l *Local) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, client_id, description, amount, date, type
		FROM transactions ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var r remote.TransactionRecord
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Description, &r.Amount, &r.Date, &r.Type); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := r.ToCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (l *Local) loadPayments(ctx context.Context) ([]core.Payment, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, client_id, amount, date, type
		FROM payments ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var r remote.PaymentRecord
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Amount, &r.Date, &r.Type); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p, err := r.ToCore()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyEvent applies one change-feed event to the mirror. Upserts keyed
// on id make redelivery harmless.
func (l *Local) ApplyEvent(ctx context.Context, ev feed.Event) error {
	switch ev.Table {
	case feed.Clients:
		var r remote.ClientRecord
		if err := json.Unmarshal(ev.Payload(), &r); err != nil {
			return fmt.Errorf("decode client event: %w", err)
		}
		if ev.Kind == feed.Delete {
			return l.deleteClient(ctx, r.ID)
		}
		return upsertClient(ctx, l.db, r)
	case feed.Transactions:
		var r remote.TransactionRecord
		if err := json.Unmarshal(ev.Payload(), &r); err != nil {
			return fmt.Errorf("decode transaction event: %w", err)
		}
		if ev.Kind == feed.Delete {
			_, err := l.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, r.ID)
			return err
		}
		return upsertTransaction(ctx, l.db, r)
	case feed.Payments:
		var r remote.PaymentRecord
		if err := json.Unmarshal(ev.Payload(), &r); err != nil {
			return fmt.Errorf("decode payment event: %w", err)
		}
		if ev.Kind == feed.Delete {
			_, err := l.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, r.ID)
			return err
		}
		return upsertPayment(ctx, l.db, r)
	default:
		return fmt.Errorf("unknown event table: %s", ev.Table)
	}
}

func (l *Local) deleteClient(ctx context.Context, id string) error {
	dbTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM payments WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("delete payments for client %s: %w", id, err)
	}
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("delete transactions for client %s: %w", id, err)
	}
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete client %s: %w", id, err)
	}

	return dbTx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertClient(ctx context.Context, db execer, r remote.ClientRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO clients (id, name, total_debt, bottles_owed, created_at, last_transaction_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			total_debt = excluded.total_debt,
			bottles_owed = excluded.bottles_owed,
			last_transaction_at = excluded.last_transaction_at`,
		r.ID, r.Name, r.TotalDebt, r.BottlesOwed, r.CreatedAt, r.LastTransactionAt)
	if err != nil {
		return fmt.Errorf("upsert client %s: %w", r.ID, err)
	}
	return nil
}

func upsertTransaction(ctx context.Context, db execer, r remote.TransactionRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, client_id, description, amount, date, type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.ClientID, r.Description, r.Amount, r.Date, r.Type)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", r.ID, err)
	}
	return nil
}

func upsertPayment(ctx context.Context, db execer, r remote.PaymentRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (id, client_id, amount, date, type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.ClientID, r.Amount, r.Date, r.Type)
	if err != nil {
		return fmt.Errorf("upsert payment %s: %w", r.ID, err)
	}
	return nil
}
