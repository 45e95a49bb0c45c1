package amqp

import (
	"encoding/json"
	"time"
)

// AllocationRecordedMessage announces that an allocation run was stored.
// It carries only the record id and the narrator that served it; the worker
// fetches the full record from the database.
type AllocationRecordedMessage struct {
	AllocationID string    `json:"allocation_id"`
	Narrator     string    `json:"narrator"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewAllocationRecordedMessage creates a message for a freshly stored run.
func NewAllocationRecordedMessage(allocationID, narrator string) *AllocationRecordedMessage {
	return &AllocationRecordedMessage{
		AllocationID: allocationID,
		Narrator:     narrator,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AllocationRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func AllocationRecordedMessageFromJSON(data []byte) (*AllocationRecordedMessage, error) {
	var msg AllocationRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
