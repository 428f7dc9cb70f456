package services

import (
	"context"
	"testing"
	"time"

	"karne/internal/core"
	"karne/internal/feed"
	"karne/internal/ledger"
	"karne/internal/remote"
)

func clientEvent(t *testing.T, kind feed.Kind, c core.Client) feed.Event {
	t.Helper()
	ev, err := feed.NewEvent(kind, feed.Clients, remote.ClientRecordFromCore(c))
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func bridgeClient(id, name, debt string) core.Client {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return core.Client{
		ID:                id,
		Name:              name,
		TotalDebt:         core.MustMoney(debt),
		BottlesOwed:       core.NewBottleCounts(),
		CreatedAt:         now,
		LastTransactionAt: now,
	}
}

func TestApplyInsertIdempotent(t *testing.T) {
	store := ledger.NewStore()
	bridge := NewSyncBridge(store, feed.Nop{})
	ctx := context.Background()

	ev := clientEvent(t, feed.Insert, bridgeClient("G001", "John", "50"))
	for i := 0; i < 2; i++ {
		if err := bridge.Apply(ctx, ev); err != nil {
			t.Fatalf("Apply #%d: %v", i+1, err)
		}
	}

	clients := store.Clients()
	if len(clients) != 1 {
		t.Fatalf("clients = %d, want 1 after duplicate insert", len(clients))
	}
	if !clients[0].TotalDebt.Equal(core.MustMoney("50")) {
		t.Errorf("total debt = %s, want 50", clients[0].TotalDebt)
	}
}

func TestApplyUpdateImplicitInsert(t *testing.T) {
	store := ledger.NewStore()
	bridge := NewSyncBridge(store, feed.Nop{})
	ctx := context.Background()

	// Update of an absent id lands as an insert.
	if err := bridge.Apply(ctx, clientEvent(t, feed.Update, bridgeClient("G001", "John", "50"))); err != nil {
		t.Fatalf("Apply update: %v", err)
	}
	if _, ok := store.Client("G001"); !ok {
		t.Fatal("update of absent client did not insert it")
	}

	// A later update replaces the fields.
	if err := bridge.Apply(ctx, clientEvent(t, feed.Update, bridgeClient("G001", "Johnny", "75"))); err != nil {
		t.Fatalf("Apply second update: %v", err)
	}
	got, _ := store.Client("G001")
	if got.Name != "Johnny" || !got.TotalDebt.Equal(core.MustMoney("75")) {
		t.Fatalf("client = %+v, want Johnny with debt 75", got)
	}
}

func TestApplyDeleteAbsentIsNoop(t *testing.T) {
	store := ledger.NewStore()
	bridge := NewSyncBridge(store, feed.Nop{})
	ctx := context.Background()

	ev, err := feed.NewDeleteEvent(feed.Clients, remote.ClientRecordFromCore(bridgeClient("G001", "John", "0")))
	if err != nil {
		t.Fatalf("NewDeleteEvent: %v", err)
	}
	if err := bridge.Apply(ctx, ev); err != nil {
		t.Fatalf("Apply delete on empty store: %v", err)
	}
	if len(store.Clients()) != 0 {
		t.Fatal("store not empty after delete of absent id")
	}
}

func TestApplyRecoversCorruptBottles(t *testing.T) {
	store := ledger.NewStore()
	bridge := NewSyncBridge(store, feed.Nop{})
	ctx := context.Background()

	record := remote.ClientRecordFromCore(bridgeClient("G001", "John", "25"))
	record.BottlesOwed = "not json"
	ev, err := feed.NewEvent(feed.Insert, feed.Clients, record)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	if err := bridge.Apply(ctx, ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, ok := store.Client("G001")
	if !ok {
		t.Fatal("client with corrupt bottles was dropped")
	}
	if !got.BottlesOwed.IsZero() {
		t.Errorf("bottles = %v, want all zero", got.BottlesOwed)
	}
	if !got.TotalDebt.Equal(core.MustMoney("25")) {
		t.Errorf("total debt = %s, want 25", got.TotalDebt)
	}
}

func TestApplyTransactionAndPaymentEvents(t *testing.T) {
	store := ledger.NewStore()
	bridge := NewSyncBridge(store, feed.Nop{})
	ctx := context.Background()

	if err := bridge.Apply(ctx, clientEvent(t, feed.Insert, bridgeClient("G001", "John", "100"))); err != nil {
		t.Fatalf("insert client: %v", err)
	}

	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	tx := core.Transaction{ID: "t1", ClientID: "G001", Description: "2 chopines", Amount: core.MustMoney("100"), Date: now, Type: core.TxDebt}
	txEv, err := feed.NewEvent(feed.Insert, feed.Transactions, remote.TransactionRecordFromCore(tx))
	if err != nil {
		t.Fatalf("NewEvent transaction: %v", err)
	}
	if err := bridge.Apply(ctx, txEv); err != nil {
		t.Fatalf("apply transaction: %v", err)
	}

	p := core.Payment{ID: "p1", ClientID: "G001", Amount: core.MustMoney("40"), Date: now.Add(time.Hour), Type: core.PaymentPartial}
	pEv, err := feed.NewEvent(feed.Insert, feed.Payments, remote.PaymentRecordFromCore(p))
	if err != nil {
		t.Fatalf("NewEvent payment: %v", err)
	}
	if err := bridge.Apply(ctx, pEv); err != nil {
		t.Fatalf("apply payment: %v", err)
	}

	if got := store.TotalDebt("G001"); !got.Equal(core.MustMoney("60")) {
		t.Fatalf("recomputed debt = %s, want 60", got)
	}
}
