// Package services orchestrates ledger mutations across the in-memory
// store, the remote store and the change feed.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"karne/internal/core"
	"karne/internal/feed"
	"karne/internal/ledger"
	"karne/internal/remote"
)

// Options tune the behaviors the two historical deployments of this
// system disagreed on.
type Options struct {
	IDPrefix string
	IDWidth  int

	// InferBottlesOnDebt adds parsed bottle counts to the client's
	// balance on every debt transaction. Off by default: bottles are
	// tracked through explicit returns against the transaction log.
	InferBottlesOnDebt bool

	// ReturnAudit appends a zero-amount "Returned: ..." transaction on
	// every bottle return so the log alone can net out balances.
	ReturnAudit bool

	// ResetBottlesOnSettle zeroes the bottle balance when a client
	// settles. Settling means the client squared everything, deposits
	// included.
	ResetBottlesOnSettle bool
}

func DefaultOptions() Options {
	return Options{
		IDPrefix:             "G",
		IDWidth:              3,
		ReturnAudit:          true,
		ResetBottlesOnSettle: true,
	}
}

// LedgerService is the only writer path for user-initiated mutations.
// Every operation validates first, writes to the remote store, and only
// on success mutates the ledger store and publishes change events. A
// remote failure leaves local state untouched.
type LedgerService struct {
	store     *ledger.Store
	remote    remote.Store
	publisher feed.Publisher
	opts      Options

	// allocMu serializes client creation: id allocation and the
	// duplicate-name check must see a stable client set.
	allocMu sync.Mutex
	// locks serializes mutations per client id so two back-to-back
	// debt-mutating calls cannot race on the cached totalDebt.
	locks sync.Map

	now   func() time.Time
	newID func() string
}

func NewLedgerService(store *ledger.Store, r remote.Store, publisher feed.Publisher, opts Options) *LedgerService {
	if opts.IDPrefix == "" {
		opts.IDPrefix = "G"
	}
	if opts.IDWidth <= 0 {
		opts.IDWidth = 3
	}
	if publisher == nil {
		publisher = feed.Nop{}
	}
	return &LedgerService{
		store:     store,
		remote:    r,
		publisher: publisher,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (s *LedgerService) clientLock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// AddClient formats the name, allocates the smallest free id and
// creates the client with zero debt and bottles.
func (s *LedgerService) AddClient(ctx context.Context, name string) (core.Client, error) {
	formatted := core.FormatClientName(name)
	if formatted == "" {
		return core.Client{}, fmt.Errorf("%w: empty client name", core.ErrInvalidAmount)
	}

	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	for _, existing := range s.store.Clients() {
		if strings.EqualFold(existing.Name, formatted) {
			return core.Client{}, fmt.Errorf("%w: name %q", core.ErrDuplicateClient, formatted)
		}
	}

	id, err := core.NextClientID(s.store.ClientIDs(), s.opts.IDPrefix, s.opts.IDWidth)
	if err != nil {
		return core.Client{}, fmt.Errorf("allocate client id: %w", err)
	}
	if _, exists := s.store.Client(id); exists {
		return core.Client{}, fmt.Errorf("%w: id %s", core.ErrDuplicateClient, id)
	}

	now := s.now()
	client := core.Client{
		ID:                id,
		Name:              formatted,
		TotalDebt:         core.Money{},
		BottlesOwed:       core.NewBottleCounts(),
		CreatedAt:         now,
		LastTransactionAt: now,
	}

	if err := s.remote.InsertClient(ctx, client); err != nil {
		return core.Client{}, err
	}

	s.store.UpsertClient(client)
	s.publish(ctx, feed.Insert, feed.Clients, remote.ClientRecordFromCore(client))

	slog.InfoContext(ctx, "Client created", "client_id", id, "name", formatted)
	return client, nil
}

// AddDebtTransaction appends a debt entry and raises the client's debt
// by amount. Zero amounts are allowed for audit-only entries.
func (s *LedgerService) AddDebtTransaction(ctx context.Context, clientID, description string, amount core.Money) (core.Transaction, error) {
	if amount.IsNegative() {
		return core.Transaction{}, fmt.Errorf("%w: debt amount %s", core.ErrInvalidAmount, amount)
	}

	mu := s.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	client, ok := s.store.Client(clientID)
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %s", core.ErrNotFound, clientID)
	}

	now := s.now()
	tx := core.Transaction{
		ID:          s.newID(),
		ClientID:    clientID,
		Description: description,
		Amount:      amount,
		Date:        now,
		Type:        core.TxDebt,
	}

	updated := client
	updated.TotalDebt = client.TotalDebt.Add(amount)
	updated.LastTransactionAt = now
	if s.opts.InferBottlesOnDebt {
		updated.BottlesOwed = client.BottlesOwed.Plus(core.InferBottleCounts(description))
	}

	if err := s.remote.InsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.remote.UpdateClient(ctx, updated); err != nil {
		return core.Transaction{}, err
	}

	s.store.UpsertTransaction(tx)
	s.store.UpsertClient(updated)
	s.publish(ctx, feed.Insert, feed.Transactions, remote.TransactionRecordFromCore(tx))
	s.publish(ctx, feed.Update, feed.Clients, remote.ClientRecordFromCore(updated))

	slog.InfoContext(ctx, "Debt transaction added",
		"client_id", clientID,
		"transaction_id", tx.ID,
		"amount", amount.String(),
		"total_debt", updated.TotalDebt.String())
	return tx, nil
}

// AddPartialPayment appends a partial payment and lowers the client's
// debt by exactly amount. The amount must be positive and must not
// exceed the current debt.
func (s *LedgerService) AddPartialPayment(ctx context.Context, clientID string, amount core.Money) (core.Payment, error) {
	if !amount.IsPositive() {
		return core.Payment{}, fmt.Errorf("%w: payment amount %s", core.ErrInvalidAmount, amount)
	}

	mu := s.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	client, ok := s.store.Client(clientID)
	if !ok {
		return core.Payment{}, fmt.Errorf("%w: %s", core.ErrNotFound, clientID)
	}
	if amount.GreaterThan(client.TotalDebt) {
		return core.Payment{}, fmt.Errorf("%w: payment %s exceeds debt %s",
			core.ErrInvalidAmount, amount, client.TotalDebt)
	}

	now := s.now()
	payment := core.Payment{
		ID:       s.newID(),
		ClientID: clientID,
		Amount:   amount,
		Date:     now,
		Type:     core.PaymentPartial,
	}

	updated := client
	updated.TotalDebt = client.TotalDebt.Sub(amount).ClampZero()
	updated.LastTransactionAt = now

	if err := s.remote.InsertPayment(ctx, payment); err != nil {
		return core.Payment{}, err
	}
	if err := s.remote.UpdateClient(ctx, updated); err != nil {
		return core.Payment{}, err
	}

	s.store.UpsertPayment(payment)
	s.store.UpsertClient(updated)
	s.publish(ctx, feed.Insert, feed.Payments, remote.PaymentRecordFromCore(payment))
	s.publish(ctx, feed.Update, feed.Clients, remote.ClientRecordFromCore(updated))

	slog.InfoContext(ctx, "Partial payment added",
		"client_id", clientID,
		"payment_id", payment.ID,
		"amount", amount.String(),
		"total_debt", updated.TotalDebt.String())
	return payment, nil
}

// SettleClient clears the client's debt with one full payment equal to
// the exact outstanding amount.
func (s *LedgerService) SettleClient(ctx context.Context, clientID string) (core.Payment, error) {
	mu := s.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	client, ok := s.store.Client(clientID)
	if !ok {
		return core.Payment{}, fmt.Errorf("%w: %s", core.ErrNotFound, clientID)
	}
	if !client.TotalDebt.IsPositive() {
		return core.Payment{}, fmt.Errorf("%w: no outstanding debt", core.ErrInvalidAmount)
	}

	now := s.now()
	payment := core.Payment{
		ID:       s.newID(),
		ClientID: clientID,
		Amount:   client.TotalDebt,
		Date:     now,
		Type:     core.PaymentFull,
	}

	updated := client
	updated.TotalDebt = core.Money{}
	updated.LastTransactionAt = now
	if s.opts.ResetBottlesOnSettle {
		updated.BottlesOwed = core.NewBottleCounts()
	}

	if err := s.remote.InsertPayment(ctx, payment); err != nil {
		return core.Payment{}, err
	}
	if err := s.remote.UpdateClient(ctx, updated); err != nil {
		return core.Payment{}, err
	}

	s.store.UpsertPayment(payment)
	s.store.UpsertClient(updated)
	s.publish(ctx, feed.Insert, feed.Payments, remote.PaymentRecordFromCore(payment))
	s.publish(ctx, feed.Update, feed.Clients, remote.ClientRecordFromCore(updated))

	slog.InfoContext(ctx, "Client settled",
		"client_id", clientID,
		"payment_id", payment.ID,
		"amount", payment.Amount.String())
	return payment, nil
}

// ReturnBottles lowers the client's bottle balance by the returned
// quantities, clamped at zero per category.
func (s *LedgerService) ReturnBottles(ctx context.Context, clientID string, returned core.BottleCounts) (core.Client, error) {
	for cat, n := range returned {
		if n < 0 {
			return core.Client{}, fmt.Errorf("%w: returned %d %s", core.ErrInvalidAmount, n, cat)
		}
	}

	mu := s.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	client, ok := s.store.Client(clientID)
	if !ok {
		return core.Client{}, fmt.Errorf("%w: %s", core.ErrNotFound, clientID)
	}

	now := s.now()
	updated := client
	updated.BottlesOwed = client.BottlesOwed.Clone()
	updated.LastTransactionAt = now

	credited := core.NewBottleCounts()
	for _, cat := range core.Categories() {
		n := returned[cat]
		if n <= 0 {
			continue
		}
		owed := updated.BottlesOwed[cat]
		if n > owed {
			n = owed
		}
		credited[cat] = n
		updated.BottlesOwed[cat] = owed - n
	}

	var audit *core.Transaction
	if s.opts.ReturnAudit && !credited.IsZero() {
		audit = &core.Transaction{
			ID:          s.newID(),
			ClientID:    clientID,
			Description: core.ReturnDescription(credited),
			Amount:      core.Money{},
			Date:        now,
			Type:        core.TxDebt,
		}
	}

	if audit != nil {
		if err := s.remote.InsertTransaction(ctx, *audit); err != nil {
			return core.Client{}, err
		}
	}
	if err := s.remote.UpdateClient(ctx, updated); err != nil {
		return core.Client{}, err
	}

	if audit != nil {
		s.store.UpsertTransaction(*audit)
		s.publish(ctx, feed.Insert, feed.Transactions, remote.TransactionRecordFromCore(*audit))
	}
	s.store.UpsertClient(updated)
	s.publish(ctx, feed.Update, feed.Clients, remote.ClientRecordFromCore(updated))

	slog.InfoContext(ctx, "Bottles returned", "client_id", clientID)
	return updated, nil
}

// DeleteClient removes the client and its whole history.
func (s *LedgerService) DeleteClient(ctx context.Context, clientID string) error {
	mu := s.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	client, ok := s.store.Client(clientID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, clientID)
	}

	if err := s.remote.DeleteClient(ctx, clientID); err != nil {
		return err
	}

	s.store.RemoveClient(clientID)
	if ev, err := feed.NewDeleteEvent(feed.Clients, remote.ClientRecordFromCore(client)); err == nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish change event",
				"error", err, "kind", feed.Delete, "table", feed.Clients)
		}
	}

	slog.InfoContext(ctx, "Client deleted", "client_id", clientID, "name", client.Name)
	return nil
}

// UpdateClientName reformats and persists a new name. Debt and bottle
// state are untouched.
func (s *LedgerService) UpdateClientName(ctx context.Context, clientID, newName string) (core.Client, error) {
	formatted := core.FormatClientName(newName)
	if formatted == "" {
		return core.Client{}, fmt.Errorf("%w: empty client name", core.ErrInvalidAmount)
	}

	s.allocMu.Lock()
	defer s.allocMu.Unlock()
	mu := s.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	client, ok := s.store.Client(clientID)
	if !ok {
		return core.Client{}, fmt.Errorf("%w: %s", core.ErrNotFound, clientID)
	}
	for _, existing := range s.store.Clients() {
		if existing.ID != clientID && strings.EqualFold(existing.Name, formatted) {
			return core.Client{}, fmt.Errorf("%w: name %q", core.ErrDuplicateClient, formatted)
		}
	}

	updated := client
	updated.Name = formatted

	if err := s.remote.UpdateClient(ctx, updated); err != nil {
		return core.Client{}, err
	}

	s.store.UpsertClient(updated)
	s.publish(ctx, feed.Update, feed.Clients, remote.ClientRecordFromCore(updated))

	slog.InfoContext(ctx, "Client renamed", "client_id", clientID, "name", formatted)
	return updated, nil
}

// publish emits one change event. Publication failures are logged and
// swallowed: the mutation already committed, and the next full reload
// converges anyone who missed the event.
func (s *LedgerService) publish(ctx context.Context, kind feed.Kind, table feed.Table, record any) {
	ev, err := feed.NewEvent(kind, table, record)
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"error", err, "kind", kind, "table", table)
	}
}
