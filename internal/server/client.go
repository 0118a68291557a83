package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live websocket connection. It is anonymous until the remote
// end sends a join message carrying its user id.
type Client struct {
	id       string
	conn     *websocket.Conn
	hub      *Hub
	log      *logrus.Logger
	userId   string
	userLock sync.RWMutex
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, logger *logrus.Logger) *Client {
	return &Client{
		id:   shortid.MustGenerate(),
		conn: conn,
		hub:  hub,
		log:  logger,
		send: make(chan *ServerMessage, 256),
		stop: make(chan struct{}),
	}
}

// Id returns the server-assigned connection id, unique for the connection's
// lifetime and never reused.
func (c *Client) Id() string {
	return c.id
}

func (c *Client) UserId() string {
	c.userLock.RLock()
	defer c.userLock.RUnlock()
	return c.userId
}

func (c *Client) setUserId(userId string) {
	c.userLock.Lock()
	defer c.userLock.Unlock()
	c.userId = userId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debugf("write exiting for connection %q", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Errorf("failed to serialize message: %v", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debugf("read exiting for connection %q", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Errorf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Errorf("error parsing message: %v", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = time.Now()

		switch {
		case msg.Join != nil:
			c.forward(c.hub.joinChan, &msg)
		case msg.Leave != nil:
			c.forward(c.hub.leaveChan, &msg)
		case msg.Emergency != nil:
			c.forward(c.hub.emergencyChan, &msg)
		case msg.Telemetry != nil:
			c.log.WithFields(logrus.Fields{
				"connection_id": c.id,
				"type":          msg.Telemetry.Type.String(),
			}).Debug("received telemetry")
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) forward(ch chan *ClientMessage, msg *ClientMessage) {
	select {
	case ch <- msg:
	default:
		c.log.Warnf("hub channel full, rejecting message from %q", c.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warnf("send buffer full for connection %q", c.id)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Errorf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.hub.DeregisterChan <- c
	c.stopClient()
}
