package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wellbeat/healthsync/internal/stats"
	"github.com/wellbeat/healthsync/internal/testutil"
)

func TestNewClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	h := newTestHub(t, su)

	a := NewClient(nil, h, testutil.TestLogger(t))
	b := NewClient(nil, h, testutil.TestLogger(t))

	assert.NotEmpty(t, a.Id(), "expected a connection id to be assigned")
	assert.NotEqual(t, a.Id(), b.Id(), "expected connection ids to be unique")
	assert.Empty(t, a.UserId(), "expected a new connection to be anonymous")
	assert.NotNil(t, a.send, "expected send channel to be initialized")
}

func TestClientQueueMessage(t *testing.T) {
	c := &Client{
		id:   "conn-1",
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 1),
	}

	assert.True(t, c.queueMessage(NoErrOK(1)), "expected message queued when buffer has room")
	assert.False(t, c.queueMessage(NoErrOK(2)), "expected queue to fail when buffer is full")
	assert.Len(t, c.send, 1, "expected only the first message in the buffer")
}

func TestClientForward(t *testing.T) {
	c := &Client{
		id:   "conn-1",
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 1),
	}

	ch := make(chan *ClientMessage, 1)
	msg := &ClientMessage{BaseMessage: BaseMessage{Id: 1}, client: c}

	c.forward(ch, msg)
	assert.Len(t, ch, 1, "expected message forwarded to the hub channel")

	// channel is now full; the client must be told the service is unavailable
	c.forward(ch, msg)
	queued := <-c.send
	assert.Equal(t, 503, queued.Response.ResponseCode, "expected service unavailable response")
}

func TestClientStopIsIdempotent(t *testing.T) {
	c := &Client{
		id:   "conn-1",
		log:  testutil.TestLogger(t),
		stop: make(chan struct{}),
	}

	c.stopClient()
	c.stopClient() // must not panic on double stop

	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}
}
