// Package remote defines the boundary to the persistence collaborator:
// the opaque remote store holding the clients, transactions and
// payments collections. Implementations live in subpackages; the rest
// of the code only sees this interface and the wire records.
package remote

import (
	"context"

	"karne/internal/core"
)

// Store is the persistence collaborator. Every method that fails maps
// its error to core.ErrRemoteFailure so callers can classify it; a
// failed write has no local effect.
type Store interface {
	// Ping reports whether the collaborator is reachable.
	Ping(ctx context.Context) error

	InsertClient(ctx context.Context, c core.Client) error
	UpdateClient(ctx context.Context, c core.Client) error
	// DeleteClient removes the client and cascades to its transactions
	// and payments.
	DeleteClient(ctx context.Context, id string) error

	InsertTransaction(ctx context.Context, tx core.Transaction) error
	InsertPayment(ctx context.Context, p core.Payment) error

	// ListClients returns all clients ordered by name.
	ListClients(ctx context.Context) ([]core.Client, error)
	// ListTransactions returns all transactions, newest first.
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	// ListPayments returns all payments, newest first.
	ListPayments(ctx context.Context) ([]core.Payment, error)
}
