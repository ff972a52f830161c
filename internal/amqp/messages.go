package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopledger/internal/core"
)

type EventKind string

const (
	EventTransactionAdded   EventKind = "transaction.added"
	EventTransactionUpdated EventKind = "transaction.updated"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventStockAdjusted      EventKind = "stock.adjusted"
)

// StockAdjustment describes the stock side of an adjustment.
type StockAdjustment struct {
	ProductID string         `json:"product_id"`
	Direction core.Direction `json:"direction"`
	Quantity  int64          `json:"quantity"`
	NewStock  int64          `json:"new_stock"`
	Result    string         `json:"result"`
}

// LedgerEvent is published after a ledger or stock write commits. Added
// events carry Transaction, updates carry TransactionID and Patch, deletes
// carry TransactionID and stock events carry Stock.
type LedgerEvent struct {
	ID            string                 `json:"id"`
	Kind          EventKind              `json:"kind"`
	Transaction   *core.Transaction      `json:"transaction,omitempty"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Patch         *core.TransactionPatch `json:"patch,omitempty"`
	Stock         *StockAdjustment       `json:"stock,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

func NewTransactionEvent(kind EventKind, tx core.Transaction) *LedgerEvent {
	return &LedgerEvent{ID: uuid.NewString(), Kind: kind, Transaction: &tx, OccurredAt: time.Now().UTC()}
}

func NewUpdateEvent(id string, p core.TransactionPatch) *LedgerEvent {
	return &LedgerEvent{ID: uuid.NewString(), Kind: EventTransactionUpdated, TransactionID: id, Patch: &p, OccurredAt: time.Now().UTC()}
}

func NewDeleteEvent(id string) *LedgerEvent {
	return &LedgerEvent{ID: uuid.NewString(), Kind: EventTransactionDeleted, TransactionID: id, OccurredAt: time.Now().UTC()}
}

func NewStockEvent(s StockAdjustment) *LedgerEvent {
	return &LedgerEvent{ID: uuid.NewString(), Kind: EventStockAdjusted, Stock: &s, OccurredAt: time.Now().UTC()}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case EventTransactionAdded:
		if msg.Transaction == nil {
			return nil, fmt.Errorf("%s event without transaction", msg.Kind)
		}
	case EventTransactionUpdated:
		if msg.TransactionID == "" || msg.Patch == nil {
			return nil, fmt.Errorf("%s event without transaction id or patch", msg.Kind)
		}
	case EventTransactionDeleted:
		if msg.TransactionID == "" {
			return nil, fmt.Errorf("%s event without transaction id", msg.Kind)
		}
	case EventStockAdjusted:
		if msg.Stock == nil {
			return nil, fmt.Errorf("%s event without stock", msg.Kind)
		}
	default:
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}
