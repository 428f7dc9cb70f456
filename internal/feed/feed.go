// Package feed carries change-notification events between the writer
// and everything that mirrors its state: other server instances, the
// sync bridge and the local-store mirror worker.
//
// Events are {kind, table, new, old} and their application must be
// idempotent per id: delivery order is not guaranteed and the same
// event may arrive more than once.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
)

type Table string

const (
	Clients      Table = "clients"
	Transactions Table = "transactions"
	Payments     Table = "payments"
)

// Event is one change notification. New carries the record after the
// change (insert/update), Old the record before it (delete).
type Event struct {
	Kind  Kind            `json:"kind"`
	Table Table           `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
	At    time.Time       `json:"at"`
}

// NewEvent builds an insert/update event from a wire record.
func NewEvent(kind Kind, table Table, record any) (Event, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Event{Kind: kind, Table: table, New: body, At: time.Now().UTC()}, nil
}

// NewDeleteEvent builds a delete event carrying the removed record.
func NewDeleteEvent(table Table, record any) (Event, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Event{Kind: Delete, Table: table, Old: body, At: time.Now().UTC()}, nil
}

// Payload returns the record body relevant for the event kind.
func (e Event) Payload() json.RawMessage {
	if e.Kind == Delete {
		if len(e.Old) > 0 {
			return e.Old
		}
		return e.New
	}
	if len(e.New) > 0 {
		return e.New
	}
	return e.Old
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Subscriber interface {
	// Subscribe delivers events to handler until ctx ends. A handler
	// error makes transports with redelivery requeue the event.
	Subscribe(ctx context.Context, handler func(Event) error) error
	Close() error
}

// Nop is the feed used when no notification channel is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Subscribe(ctx context.Context, _ func(Event) error) error {
	<-ctx.Done()
	return ctx.Err()
}
func (Nop) Close() error { return nil }
