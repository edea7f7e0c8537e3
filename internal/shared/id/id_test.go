package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedIDPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		prefix string
	}{
		{"request", NewRequestID().String(), "req_"},
		{"subscription", NewSubscriptionID().String(), "sub_"},
		{"cycle", NewCycleID().String(), "cyc_"},
		{"conn", NewConnID().String(), "conn_"},
		{"action", NewActionID().String(), "act_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.value, tt.prefix))
			assert.True(t, IsValid(tt.value))
		})
	}
}

func TestGeneratorUniqueness(t *testing.T) {
	gen := Default()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v := gen.Generate().String()
		require.False(t, seen[v], "duplicate ULID %s", v)
		seen[v] = true
	}
}

func TestGeneratorSortable(t *testing.T) {
	// ULIDs generated in sequence must not sort before earlier ones.
	gen := Default()
	prev := gen.Generate().String()
	for i := 0; i < 100; i++ {
		next := gen.Generate().String()
		assert.LessOrEqual(t, prev, next)
		prev = next
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewCycleID().String()))
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid("cyc_nope"))
	assert.False(t, IsValid(""))
}
