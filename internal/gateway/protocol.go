package gateway

import "time"

// Client to server message types.
const (
	MsgAuthenticate         = "authenticate"
	MsgSubscribeExecution   = "subscribe_execution"
	MsgUnsubscribeExecution = "unsubscribe_execution"
	MsgPing                 = "ping"
)

// Server to client message types. Lifecycle and step frames reuse the bus
// event vocabulary, so envelopes pass through with their type unchanged.
const (
	MsgConnected       = "connected"
	MsgAuthenticated   = "authenticated"
	MsgExecutionStatus = "execution_status"
	MsgPong            = "pong"
	MsgError           = "error"
)

// clientMessage is the uniform decode target for inbound frames.
type clientMessage struct {
	Type        string `json:"type"`
	UserID      string `json:"userId,omitempty"`
	ExecutionID string `json:"executionId,omitempty"`
}

// serverMessage is the uniform outbound frame.
type serverMessage struct {
	Type        string    `json:"type"`
	ClientID    string    `json:"clientId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	ExecutionID string    `json:"executionId,omitempty"`
	Data        any       `json:"data,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
