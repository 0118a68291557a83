package server

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/wellbeat/healthsync/internal/stats"
	"github.com/wellbeat/healthsync/pkg/event"
)

// Dispatcher is the producer-facing entry point for health updates. Route
// handlers call Publish after a write is durably committed; the notification
// itself carries no durability guarantee.
type Dispatcher struct {
	hub   *Hub
	log   *logrus.Logger
	stats stats.StatsProvider
}

func NewDispatcher(hub *Hub, logger *logrus.Logger, su stats.StatsProvider) *Dispatcher {
	return &Dispatcher{
		hub:   hub,
		log:   logger,
		stats: su,
	}
}

// Publish stamps a server timestamp on the update and hands it to the hub for
// fan-out. Publish never blocks: if the hub cannot accept the update the
// notification is dropped, which is acceptable because the underlying data is
// already durable in the store. Per-user delivery order matches publish order.
func (d *Dispatcher) Publish(t event.UpdateType, payload json.RawMessage, targetUserId string) event.HealthUpdate {
	update := event.NewHealthUpdate(t, targetUserId, payload)

	select {
	case d.hub.publishChan <- update:
	default:
		d.stats.Incr(stats.EventsDropped)
		d.log.WithFields(logrus.Fields{
			"type":    t.String(),
			"user_id": targetUserId,
		}).Warn("publish channel full, dropping update")
	}

	return update
}
