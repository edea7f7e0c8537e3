// Package id provides typed ULID generation for the workspace daemon.
//
// ULIDs are lexicographically sortable, which keeps log lines and spool
// entries in creation order without extra timestamps, and the prefixes make
// it obvious in logs which subsystem an identifier belongs to.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one API request.
type RequestID string

// SubscriptionID identifies a lifecycle state subscription.
type SubscriptionID string

// CycleID identifies one background sync cycle.
type CycleID string

// ConnID identifies a bridge or stream connection.
type ConnID string

// ActionID identifies a spooled offline action.
type ActionID string

const (
	requestPrefix      = "req"
	subscriptionPrefix = "sub"
	cyclePrefix        = "cyc"
	connPrefix         = "conn"
	actionPrefix       = "act"
)

// Generator produces ULIDs from a shared entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator. Its entropy is monotonic,
// so IDs generated in the same millisecond still sort in creation
// order.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(ulid.Monotonic(rand.Reader, 0))
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by the given entropy source.
// Tests inject deterministic entropy here.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(requestPrefix))
}

// NewSubscriptionID generates a new subscription ID.
func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(Default().GenerateWithPrefix(subscriptionPrefix))
}

// NewCycleID generates a new sync cycle ID.
func NewCycleID() CycleID {
	return CycleID(Default().GenerateWithPrefix(cyclePrefix))
}

// NewConnID generates a new connection ID.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(connPrefix))
}

// NewActionID generates a new spool action ID.
func NewActionID() ActionID {
	return ActionID(Default().GenerateWithPrefix(actionPrefix))
}

func (id RequestID) String() string      { return string(id) }
func (id SubscriptionID) String() string { return string(id) }
func (id CycleID) String() string        { return string(id) }
func (id ConnID) String() string         { return string(id) }
func (id ActionID) String() string       { return string(id) }

// IsValid reports whether s carries a parseable ULID, with or without a
// type prefix.
func IsValid(s string) bool {
	if i := lastUnderscore(s); i >= 0 {
		s = s[i+1:]
	}
	_, err := ulid.Parse(s)
	return err == nil
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}
