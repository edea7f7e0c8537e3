package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "sync status",
			msg:  NewSyncStatus("syncing"),
			want: `{"type":"SYNC_STATUS","status":"syncing"}`,
		},
		{
			name: "pending actions keeps explicit zero",
			msg:  NewPendingActions(0),
			want: `{"type":"PENDING_ACTIONS","count":0}`,
		},
		{
			name: "pending actions",
			msg:  NewPendingActions(7),
			want: `{"type":"PENDING_ACTIONS","count":7}`,
		},
		{
			name: "skip waiting is bare",
			msg:  NewSkipWaiting(),
			want: `{"type":"SKIP_WAITING"}`,
		},
		{
			name: "cache workflow passes payload through untouched",
			msg:  NewCacheWorkflow(json.RawMessage(`{"id":"wf_1","name":"Daily Report"}`)),
			want: `{"type":"CACHE_WORKFLOW","payload":{"id":"wf_1","name":"Daily Report"}}`,
		},
		{
			name: "cache task",
			msg:  NewCacheTask(json.RawMessage(`{"id":"task_9","state":"done"}`)),
			want: `{"type":"CACHE_TASK","payload":{"id":"task_9","state":"done"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestEncodeRejectsMissingType(t *testing.T) {
	_, err := Encode(Message{Status: "syncing"})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"SYNC_STATUS","status":"failed"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSyncStatus, msg.Type)
	assert.Equal(t, "failed", msg.Status)

	msg, err = Decode([]byte(`{"type":"PENDING_ACTIONS","count":3}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Count)
	assert.Equal(t, 3, *msg.Count)
}

func TestDecodeUnknownTypePasses(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"FUTURE_THING","extra":true}`))
	require.NoError(t, err, "unknown types must decode for forward compatibility")
	assert.Equal(t, "FUTURE_THING", msg.Type)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"status":"syncing"}`))
	assert.Error(t, err, "messages without a type are invalid")
}

func TestPendingCountClamps(t *testing.T) {
	negative := -3
	five := 5

	assert.Equal(t, 0, Message{Type: TypePendingActions}.PendingCount())
	assert.Equal(t, 0, Message{Type: TypePendingActions, Count: &negative}.PendingCount())
	assert.Equal(t, 5, Message{Type: TypePendingActions, Count: &five}.PendingCount())
}

func TestRoundTrip(t *testing.T) {
	original := NewCacheWorkflow(json.RawMessage(`{"steps":[1,2,3]}`))

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original.Type, decoded.Type)
	assert.JSONEq(t, string(original.Payload), string(decoded.Payload))
}
