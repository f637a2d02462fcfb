package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the mirror operation a message asks for.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// SyncMessage asks the worker to mirror one transaction. It carries only the
// id; the worker reads the transaction from the store.
type SyncMessage struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(id string, op Op) *SyncMessage {
	return &SyncMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes and checks a message body.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("sync message without id")
	}
	switch msg.Op {
	case OpUpsert, OpDelete:
	case "":
		msg.Op = OpUpsert
	default:
		return nil, fmt.Errorf("unknown sync operation %q", msg.Op)
	}
	return &msg, nil
}
