package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenseledger/internal/core"
)

// EventOp names the kind of change a LedgerEvent describes.
type EventOp string

const (
	EventAdded   EventOp = "added"
	EventUpdated EventOp = "updated"
	EventDeleted EventOp = "deleted"
)

// LedgerEvent describes one committed write on the ledger.
// For added and updated events ID identifies the record and consumers re-read
// it; for deleted events Expense holds the matched values and Rows the count.
type LedgerEvent struct {
	Op        EventOp      `json:"op"`
	ID        int64        `json:"id,omitempty"`
	Expense   core.Expense `json:"expense"`
	Rows      int64        `json:"rows"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(op EventOp, id int64, e core.Expense, rows int64) LedgerEvent {
	return LedgerEvent{
		Op:        op,
		ID:        id,
		Expense:   e,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown operations.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return LedgerEvent{}, err
	}
	switch ev.Op {
	case EventAdded, EventUpdated, EventDeleted:
	default:
		return LedgerEvent{}, fmt.Errorf("unknown event op %q", ev.Op)
	}
	return ev, nil
}
