package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Message type identifiers. These values are shared with deployed agents
// and must not change.
const (
	TypeSyncStatus     = "SYNC_STATUS"
	TypePendingActions = "PENDING_ACTIONS"
	TypeSkipWaiting    = "SKIP_WAITING"
	TypeCacheWorkflow  = "CACHE_WORKFLOW"
	TypeCacheTask      = "CACHE_TASK"
)

// Status values carried by SYNC_STATUS messages.
const (
	StatusSyncing   = "syncing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Message is the JSON envelope for both directions. Fields absent from a
// given message kind stay omitted on the wire; Count is a pointer so an
// explicit zero backlog survives marshalling.
type Message struct {
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Count   *int            `json:"count,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewSyncStatus builds an agent-side sync status report.
func NewSyncStatus(status string) Message {
	return Message{Type: TypeSyncStatus, Status: status}
}

// NewPendingActions builds an agent-side backlog report.
func NewPendingActions(count int) Message {
	return Message{Type: TypePendingActions, Count: &count}
}

// NewSkipWaiting builds the take-control command for a waiting agent.
func NewSkipWaiting() Message {
	return Message{Type: TypeSkipWaiting}
}

// NewCacheWorkflow builds an offline cache command for a workflow.
func NewCacheWorkflow(payload json.RawMessage) Message {
	return Message{Type: TypeCacheWorkflow, Payload: payload}
}

// NewCacheTask builds an offline cache command for a task.
func NewCacheTask(payload json.RawMessage) Message {
	return Message{Type: TypeCacheTask, Payload: payload}
}

// Encode serializes a message to its wire form.
func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("bridge: message type must not be empty")
	}
	return sonic.Marshal(msg)
}

// Decode parses a wire message. Unknown types decode without error so
// newer agents can speak to older daemons.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("bridge: malformed message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("bridge: message missing type")
	}
	return msg, nil
}

// PendingCount returns the backlog size of a PENDING_ACTIONS message,
// clamped to zero. Reports without a count field yield zero.
func (m Message) PendingCount() int {
	if m.Count == nil || *m.Count < 0 {
		return 0
	}
	return *m.Count
}
