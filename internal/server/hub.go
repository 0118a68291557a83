package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wellbeat/healthsync/internal/stats"
	"github.com/wellbeat/healthsync/pkg/event"
)

// EmergencyHandler receives emergency support requests emitted by clients.
// Handling is an external concern; the hub's responsibility ends at handoff.
type EmergencyHandler func(userId string, data json.RawMessage)

type stopRequest struct {
	done chan struct{}
}

// Hub owns the room registry and processes every mutation of it on a single
// event loop, so registry access needs no locking. Connections register on
// handshake, join a room with their user id, and are removed on disconnect.
type Hub struct {
	log              *logrus.Logger
	stats            stats.StatsProvider
	registry         *Registry
	clients          map[*Client]struct{}
	clientsLock      sync.Mutex
	RegisterChan     chan *Client
	DeregisterChan   chan *Client
	joinChan         chan *ClientMessage
	leaveChan        chan *ClientMessage
	publishChan      chan event.HealthUpdate
	emergencyChan    chan *ClientMessage
	emergencyHandler EmergencyHandler
	stop             chan stopRequest
}

func NewHub(logger *logrus.Logger, su stats.StatsProvider) (*Hub, error) {
	h := &Hub{
		log:            logger,
		stats:          su,
		registry:       NewRegistry(),
		clients:        make(map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		DeregisterChan: make(chan *Client),
		joinChan:       make(chan *ClientMessage, 256),
		leaveChan:      make(chan *ClientMessage, 256),
		publishChan:    make(chan event.HealthUpdate, 256),
		emergencyChan:  make(chan *ClientMessage, 256),
		stop:           make(chan stopRequest),
	}

	su.RegisterMetric(stats.NumConnections)
	su.RegisterMetric(stats.NumRooms)
	su.RegisterMetric(stats.EventsDispatched)
	su.RegisterMetric(stats.EventsDropped)

	return h, nil
}

// SetEmergencyHandler installs the collaborator invoked for emergency
// requests. Must be called before Run.
func (h *Hub) SetEmergencyHandler(handler EmergencyHandler) {
	h.emergencyHandler = handler
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterChan:
			h.log.Debugf("registering connection %q", client.id)
			h.addClient(client)
			h.stats.Incr(stats.NumConnections)
		case client := <-h.DeregisterChan:
			h.log.Debugf("removing connection %q", client.id)
			h.removeFromRoom(client)
			h.removeClient(client)
			h.stats.Decr(stats.NumConnections)
		case joinMsg := <-h.joinChan:
			h.handleJoin(joinMsg)
		case leaveMsg := <-h.leaveChan:
			h.removeFromRoom(leaveMsg.client)
			leaveMsg.client.queueMessage(NoErrOK(leaveMsg.Id))
		case update := <-h.publishChan:
			h.emitToUser(update.UserId, update)
		case msg := <-h.emergencyChan:
			h.handleEmergency(msg)
		case req := <-h.stop:
			h.log.Info("shutting down hub")
			h.closeClients()
			close(req.done)
			return
		}
	}
}

func (h *Hub) handleJoin(msg *ClientMessage) {
	c := msg.client
	if msg.Join.UserId == "" {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	before := h.registry.NumRooms()
	h.registry.Join(c, msg.Join.UserId)
	c.setUserId(msg.Join.UserId)
	if h.registry.NumRooms() > before {
		h.stats.Incr(stats.NumRooms)
	}

	h.log.WithFields(logrus.Fields{
		"connection_id": c.id,
		"user_id":       msg.Join.UserId,
	}).Debug("connection joined room")

	c.queueMessage(NoErrOK(msg.Id))
}

func (h *Hub) removeFromRoom(c *Client) {
	before := h.registry.NumRooms()
	h.registry.Leave(c)
	if h.registry.NumRooms() < before {
		h.stats.Decr(stats.NumRooms)
	}
}

// emitToUser fans update out to every live connection in userId's room.
// Delivery is best effort: a user with no connections is a silent no-op and
// a connection whose send buffer is full is skipped, not retried.
func (h *Hub) emitToUser(userId string, update event.HealthUpdate) {
	conns := h.registry.Connections(userId)
	if len(conns) == 0 {
		return
	}

	msg := NewUpdateMessage(update)
	for _, c := range conns {
		if c.queueMessage(msg) {
			h.stats.Incr(stats.EventsDispatched)
		} else {
			h.stats.Incr(stats.EventsDropped)
			h.log.WithFields(logrus.Fields{
				"connection_id": c.id,
				"type":          update.Type.String(),
			}).Warn("dropped update, send buffer full")
		}
	}
}

func (h *Hub) handleEmergency(msg *ClientMessage) {
	userId, ok := h.registry.Owner(msg.client)
	if !ok {
		// an anonymous connection cannot request support
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if h.emergencyHandler != nil {
		h.emergencyHandler(userId, msg.Emergency.Data)
	}
	msg.client.queueMessage(NoErrAccepted(msg.Id))
}

func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	delete(h.clients, c)
}

func (h *Hub) closeClients() {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	for c := range h.clients {
		c.stopClient()
		delete(h.clients, c)
	}
}

// Shutdown stops the hub's event loop and closes every live connection,
// honoring ctx's deadline.
func (h *Hub) Shutdown(ctx context.Context) error {
	req := stopRequest{done: make(chan struct{})}

	select {
	case h.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
