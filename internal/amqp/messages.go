package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"conti/internal/core"
)

// EventType names a change to a group's ledger.
type EventType string

const (
	EventExpenseRecorded    EventType = "expense.recorded"
	EventExpenseUpdated     EventType = "expense.updated"
	EventExpenseDeleted     EventType = "expense.deleted"
	EventSettlementRecorded EventType = "settlement.recorded"
	EventGroupChanged       EventType = "group.changed"
)

// LedgerEvent tells consumers that a group's balances are stale. It carries
// identifiers only; consumers reload what they need from storage.
type LedgerEvent struct {
	Type      EventType    `json:"type"`
	GroupID   core.GroupID `json:"group_id"`
	EntityID  int64        `json:"entity_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewLedgerEvent(t EventType, groupID core.GroupID, entityID int64) LedgerEvent {
	return LedgerEvent{
		Type:      t,
		GroupID:   groupID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (m LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes a message body. Events without a group are
// rejected since nothing can be done with them.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return LedgerEvent{}, err
	}
	if msg.GroupID == "" {
		return LedgerEvent{}, fmt.Errorf("ledger event %q without group id", msg.Type)
	}
	return msg, nil
}
