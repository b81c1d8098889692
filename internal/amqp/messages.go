package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"budgetsim/internal/core"
)

// ChangeEvent announces that a family or person changed. It carries no state;
// receivers reload from the database.
type ChangeEvent struct {
	EventID   string    `json:"event_id"`
	Origin    string    `json:"origin"`
	Operation string    `json:"operation"`
	FamilyID  int64     `json:"family_id,omitempty"`
	PersonID  int64     `json:"person_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeEvent stamps change with a fresh event id and the publishing instance.
func NewChangeEvent(origin string, change core.Change) *ChangeEvent {
	return &ChangeEvent{
		EventID:   uuid.NewString(),
		Origin:    origin,
		Operation: change.Operation,
		FamilyID:  change.FamilyID,
		PersonID:  change.PersonID,
		Timestamp: time.Now().UTC(),
	}
}

// Change strips the envelope.
func (e *ChangeEvent) Change() core.Change {
	return core.Change{Operation: e.Operation, FamilyID: e.FamilyID, PersonID: e.PersonID}
}

func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
