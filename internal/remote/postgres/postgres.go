// Package postgres implements the remote store on a PostgreSQL pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"karne/internal/core"
	"karne/internal/remote"
)

type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and makes sure the three collections
// exist. The DSN has the usual postgres:// form.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w: %w", core.ErrRemoteFailure, err)
	}

	s := &Store{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", core.ErrRemoteFailure, err)
	}
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS clients (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	total_debt          NUMERIC NOT NULL DEFAULT 0,
	bottles_owed        JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL,
	last_transaction_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	amount      NUMERIC NOT NULL,
	date        TIMESTAMPTZ NOT NULL,
	type        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS payments (
	id        TEXT PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	amount    NUMERIC NOT NULL,
	date      TIMESTAMPTZ NOT NULL,
	type      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_client ON transactions(client_id);
CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w: %w", core.ErrRemoteFailure, err)
	}
	return nil
}

func (s *Store) InsertClient(ctx context.Context, c core.Client) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clients (id, name, total_debt, bottles_owed, created_at, last_transaction_at)
		VALUES ($1, $2, $3::numeric, $4::jsonb, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			total_debt = EXCLUDED.total_debt,
			bottles_owed = EXCLUDED.bottles_owed,
			last_transaction_at = EXCLUDED.last_transaction_at`,
		c.ID, c.Name, c.TotalDebt.String(), remote.EncodeBottles(c.BottlesOwed),
		c.CreatedAt, c.LastTransactionAt)
	if err != nil {
		return fmt.Errorf("insert client %s: %w: %w", c.ID, core.ErrRemoteFailure, err)
	}
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, c core.Client) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE clients SET
			name = $2,
			total_debt = $3::numeric,
			bottles_owed = $4::jsonb,
			last_transaction_at = $5
		WHERE id = $1`,
		c.ID, c.Name, c.TotalDebt.String(), remote.EncodeBottles(c.BottlesOwed),
		c.LastTransactionAt)
	if err != nil {
		return fmt.Errorf("update client %s: %w: %w", c.ID, core.ErrRemoteFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update client %s: %w", c.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE client_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE client_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete client %s: %w: %w", id, core.ErrRemoteFailure, err)
	}
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, client_id, description, amount, date, type)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		tx.ID, tx.ClientID, tx.Description, tx.Amount.String(), tx.Date, string(tx.Type))
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w: %w", tx.ID, core.ErrRemoteFailure, err)
	}
	return nil
}

func (s *Store) InsertPayment(ctx context.Context, p core.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, client_id, amount, date, type)
		VALUES ($1, $2, $3::numeric, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.ClientID, p.Amount.String(), p.Date, string(p.Type))
	if err != nil {
		return fmt.Errorf("insert payment %s: %w: %w", p.ID, core.ErrRemoteFailure, err)
	}
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, total_debt::text, bottles_owed::text, created_at, last_transaction_at
		FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w: %w", core.ErrRemoteFailure, err)
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		var (
			c       core.Client
			debt    string
			bottles string
		)
		if err := rows.Scan(&c.ID, &c.Name, &debt, &bottles, &c.CreatedAt, &c.LastTransactionAt); err != nil {
			return nil, fmt.Errorf("scan client: %w: %w", core.ErrRemoteFailure, err)
		}
		amount, err := core.ParseMoney(debt)
		if err != nil {
			return nil, fmt.Errorf("client %s: total_debt: %w", c.ID, err)
		}
		c.TotalDebt = amount.ClampZero()
		// A corrupt bottles_owed payload degrades this one client to an
		// all-zero mapping instead of failing the whole load.
		c.BottlesOwed, err = remote.DecodeBottles(bottles)
		if err != nil {
			slog.WarnContext(ctx, "Recovered corrupt bottles_owed payload", "client_id", c.ID, "error", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: %w: %w", core.ErrRemoteFailure, err)
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, description, amount::text, date, type
		FROM transactions ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w: %w", core.ErrRemoteFailure, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			amount string
			kind   string
		)
		if err := rows.Scan(&tx.ID, &tx.ClientID, &tx.Description, &amount, &tx.Date, &kind); err != nil {
			return nil, fmt.Errorf("scan transaction: %w: %w", core.ErrRemoteFailure, err)
		}
		m, err := core.ParseMoney(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: amount: %w", tx.ID, err)
		}
		tx.Amount = m
		tx.Type = core.TransactionType(kind)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w: %w", core.ErrRemoteFailure, err)
	}
	return out, nil
}

func (s *Store) ListPayments(ctx context.Context) ([]core.Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, amount::text, date, type
		FROM payments ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w: %w", core.ErrRemoteFailure, err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var (
			p      core.Payment
			amount string
			kind   string
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &amount, &p.Date, &kind); err != nil {
			return nil, fmt.Errorf("scan payment: %w: %w", core.ErrRemoteFailure, err)
		}
		m, err := core.ParseMoney(amount)
		if err != nil {
			return nil, fmt.Errorf("payment %s: amount: %w", p.ID, err)
		}
		p.Amount = m
		p.Type = core.PaymentType(kind)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w: %w", core.ErrRemoteFailure, err)
	}
	return out, nil
}
