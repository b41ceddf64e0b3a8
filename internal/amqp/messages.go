package amqp

import (
	"encoding/json"
	"time"

	"ledgerly/internal/ledger"
)

// TransactionEvent is the wire form of a ledger mutation. Amount is the
// signed decimal as a string so no precision is lost in transit.
type TransactionEvent struct {
	Type          string    `json:"type"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(e ledger.Event) *TransactionEvent {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &TransactionEvent{
		Type:          string(e.Type),
		UserID:        e.UserID,
		TransactionID: e.Transaction.ID,
		Amount:        e.Transaction.Amount.String(),
		Timestamp:     ts,
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
