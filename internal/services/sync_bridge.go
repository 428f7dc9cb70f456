package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"karne/internal/core"
	"karne/internal/feed"
	"karne/internal/ledger"
	"karne/internal/remote"
)

// SyncBridge is the only writer path for remote-origin mutations. It
// applies change-feed events to the ledger store through the same
// idempotent per-id primitives the ledger service uses, so events may
// arrive out of order or twice without corrupting state.
type SyncBridge struct {
	store *ledger.Store
	sub   feed.Subscriber
}

func NewSyncBridge(store *ledger.Store, sub feed.Subscriber) *SyncBridge {
	return &SyncBridge{store: store, sub: sub}
}

// Run subscribes to the feed and applies events until ctx ends.
func (b *SyncBridge) Run(ctx context.Context) error {
	return b.sub.Subscribe(ctx, func(ev feed.Event) error {
		return b.Apply(ctx, ev)
	})
}

// Apply merges one event into the ledger store. Insert and update both
// land as an upsert (insert of an existing id replaces, update of an
// absent id implicitly inserts); delete of an absent id is a no-op.
func (b *SyncBridge) Apply(ctx context.Context, ev feed.Event) error {
	switch ev.Table {
	case feed.Clients:
		return b.applyClient(ctx, ev)
	case feed.Transactions:
		return b.applyTransaction(ev)
	case feed.Payments:
		return b.applyPayment(ev)
	default:
		return fmt.Errorf("unknown event table: %s", ev.Table)
	}
}

func (b *SyncBridge) applyClient(ctx context.Context, ev feed.Event) error {
	var r remote.ClientRecord
	if err := unmarshalRecord(ev, &r); err != nil {
		return err
	}
	if ev.Kind == feed.Delete {
		b.store.RemoveClient(r.ID)
		return nil
	}
	c, err := r.ToCore()
	if err != nil {
		// A corrupt bottles_owed payload degrades to the zero mapping;
		// anything else is a malformed event.
		if !errors.Is(err, core.ErrParse) {
			return err
		}
		slog.WarnContext(ctx, "Recovered corrupt client event", "client_id", r.ID, "error", err)
	}
	b.store.UpsertClient(c)
	return nil
}

func (b *SyncBridge) applyTransaction(ev feed.Event) error {
	var r remote.TransactionRecord
	if err := unmarshalRecord(ev, &r); err != nil {
		return err
	}
	if ev.Kind == feed.Delete {
		b.store.RemoveTransaction(r.ID)
		return nil
	}
	tx, err := r.ToCore()
	if err != nil {
		return err
	}
	b.store.UpsertTransaction(tx)
	return nil
}

func (b *SyncBridge) applyPayment(ev feed.Event) error {
	var r remote.PaymentRecord
	if err := unmarshalRecord(ev, &r); err != nil {
		return err
	}
	if ev.Kind == feed.Delete {
		b.store.RemovePayment(r.ID)
		return nil
	}
	p, err := r.ToCore()
	if err != nil {
		return err
	}
	b.store.UpsertPayment(p)
	return nil
}

func unmarshalRecord(ev feed.Event, dst any) error {
	payload := ev.Payload()
	if len(payload) == 0 {
		return fmt.Errorf("%s event on %s carries no record", ev.Kind, ev.Table)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s event: %w", ev.Table, err)
	}
	return nil
}
