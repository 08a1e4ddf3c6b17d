package events

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// Event names carried as routing metadata in entry messages.
const (
	EntryCreated = "entry.created"
	EntryUpdated = "entry.updated"
	EntryDeleted = "entry.deleted"
)

// EntryEvent is the message published on entry lifecycle changes.
// Consumers needing full entry data fetch it from the store by id.
type EntryEvent struct {
	Event       string    `json:"event"`
	AccountID   int64     `json:"account_id"`
	EntryID     int64     `json:"entry_id"`
	Kind        string    `json:"kind,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEntryEvent builds an event for an entry change.
func NewEntryEvent(event string, accountID, entryID int64, kind core.Kind, amountCents int64) *EntryEvent {
	return &EntryEvent{
		Event:       event,
		AccountID:   accountID,
		EntryID:     entryID,
		Kind:        string(kind),
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntryEventFromJSON creates an event from JSON bytes
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var e EntryEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
