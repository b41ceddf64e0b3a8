package ledger

import (
	"context"
	"time"

	"ledgerly/internal/core"
)

type EventType string

const (
	EventCreated EventType = "transaction.created"
	EventUpdated EventType = "transaction.updated"
	EventDeleted EventType = "transaction.deleted"
)

// Event describes a mutation that reached the server.
type Event struct {
	Type        EventType
	UserID      string
	Transaction core.Transaction
	At          time.Time
}

// Publisher fans mutation events out to other processes.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
