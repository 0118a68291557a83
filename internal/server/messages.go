package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wellbeat/healthsync/pkg/event"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for everything a client may send. Exactly one
// of the pointer fields is set.
type ClientMessage struct {
	BaseMessage
	Join      *Join             `json:"join,omitempty"`
	Leave     *Leave            `json:"leave,omitempty"`
	Emergency *EmergencyRequest `json:"emergency,omitempty"`
	Telemetry *Telemetry        `json:"telemetry,omitempty"`
	client    *Client
}

// Join associates the sending connection with a user's room. A connection is
// anonymous until its first join.
type Join struct {
	UserId string `json:"user_id"`
}

// Leave detaches the connection from its room without closing it.
type Leave struct{}

// EmergencyRequest carries an emergency support request from the client.
// Handling is delegated to an external collaborator; the hub only forwards it.
type EmergencyRequest struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// Telemetry is a low-value client-side health signal. It is logged and
// counted but never persisted or fanned out.
type Telemetry struct {
	Type event.UpdateType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

// ServerMessage is the envelope for everything the server may send.
type ServerMessage struct {
	BaseMessage
	Response *Response           `json:"response,omitempty"`
	Update   *event.HealthUpdate `json:"update,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: event.Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: event.Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: event.Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: event.Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

// NewUpdateMessage wraps a health update for delivery to a connection.
func NewUpdateMessage(update event.HealthUpdate) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: update.Timestamp,
		},
		Update: &update,
	}
}
