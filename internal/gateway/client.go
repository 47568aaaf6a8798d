package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// client is one WebSocket connection registered with the hub. The read loop
// runs on the handler goroutine and the write loop on its own, satisfying
// the one-reader-one-writer rule of the underlying connection.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan serverMessage

	mu          sync.Mutex
	userID      string
	executionID string
}

func (c *client) readLoop() {
	defer c.hub.unregister(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

// writeLoop drains the send channel onto the wire. An encode failure drops
// that single message and the connection lives on; a write failure ends the
// connection.
func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			c.hub.logger.Error("failed to encode message", "client_id", c.id, "type", msg.Type, "error", err)
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		messagesTotal.WithLabelValues(msg.Type).Inc()
	}
}

func (c *client) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(serverMessage{Type: MsgError, Message: "malformed message"})
		return
	}

	switch msg.Type {
	case MsgAuthenticate:
		if msg.UserID == "" {
			c.reply(serverMessage{Type: MsgError, Message: "userId is required"})
			return
		}
		c.setUser(msg.UserID)
		c.reply(serverMessage{Type: MsgAuthenticated, UserID: msg.UserID})

	case MsgSubscribeExecution:
		if msg.ExecutionID == "" {
			c.reply(serverMessage{Type: MsgError, Message: "executionId is required"})
			return
		}
		c.setSubscription(msg.ExecutionID)
		reply := serverMessage{Type: MsgExecutionStatus, ExecutionID: msg.ExecutionID}
		if status, ok := c.hub.registry.LastStatus(context.Background(), msg.ExecutionID); ok {
			reply.Data = map[string]string{"status": status}
		}
		c.reply(reply)

	case MsgUnsubscribeExecution:
		c.setSubscription("")

	case MsgPing:
		c.reply(serverMessage{Type: MsgPong})

	default:
		c.reply(serverMessage{Type: MsgError, Message: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

// reply queues a direct response to this client, dropping it if the client
// is not keeping up. The send happens under the hub's read lock so it cannot
// race the channel close in unregister, which holds the write lock.
func (c *client) reply(msg serverMessage) {
	msg.Timestamp = time.Now().UTC()
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		droppedTotal.Inc()
	}
}

func (c *client) setUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

func (c *client) setSubscription(executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executionID = executionID
}

func (c *client) subscribedTo(executionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executionID != "" && c.executionID == executionID
}
