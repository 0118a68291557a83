package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellbeat/healthsync/pkg/event"
)

func TestClientMessageUnmarshal(t *testing.T) {
	tcases := []struct {
		name string
		raw  string
		want func(t *testing.T, msg ClientMessage)
	}{
		{
			name: "join",
			raw:  `{"id":1,"join":{"user_id":"user-1"}}`,
			want: func(t *testing.T, msg ClientMessage) {
				require.NotNil(t, msg.Join, "expected join to be set")
				assert.Equal(t, "user-1", msg.Join.UserId, "expected user id")
				assert.Equal(t, 1, msg.Id, "expected message id")
			},
		},
		{
			name: "leave",
			raw:  `{"leave":{}}`,
			want: func(t *testing.T, msg ClientMessage) {
				assert.NotNil(t, msg.Leave, "expected leave to be set")
			},
		},
		{
			name: "emergency",
			raw:  `{"emergency":{"data":{"location":"home"}}}`,
			want: func(t *testing.T, msg ClientMessage) {
				require.NotNil(t, msg.Emergency, "expected emergency to be set")
				assert.JSONEq(t, `{"location":"home"}`, string(msg.Emergency.Data), "expected opaque data")
			},
		},
		{
			name: "telemetry",
			raw:  `{"telemetry":{"type":"vitals-updated","data":{"steps":100}}}`,
			want: func(t *testing.T, msg ClientMessage) {
				require.NotNil(t, msg.Telemetry, "expected telemetry to be set")
				assert.Equal(t, event.Vitals, msg.Telemetry.Type, "expected parsed update type")
			},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var msg ClientMessage
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &msg), "expected message to parse")
			tc.want(t, msg)
		})
	}
}

func TestNewUpdateMessage(t *testing.T) {
	update := event.NewHealthUpdate(event.Emergency, "user-1", json.RawMessage(`{"reason":"fall"}`))
	msg := NewUpdateMessage(update)

	require.NotNil(t, msg.Update, "expected update to be wrapped")
	assert.Equal(t, update.Id, msg.Update.Id, "expected the same update value")
	assert.Equal(t, update.Timestamp, msg.Timestamp, "expected envelope timestamp to match the update")

	raw, err := json.Marshal(msg)
	require.NoError(t, err, "expected envelope to marshal")
	assert.Contains(t, string(raw), `"emergency-alert"`, "expected wire name for the update type")
}

func TestErrInvalidMessage(t *testing.T) {
	msg := ErrInvalidMessage(-1)
	assert.Zero(t, msg.Id, "expected no id when the original could not be parsed")
	assert.Equal(t, 400, msg.Response.ResponseCode, "expected bad request code")

	msg = ErrInvalidMessage(9)
	assert.Equal(t, 9, msg.Id, "expected id echoed when known")
}
