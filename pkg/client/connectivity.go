package client

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Connectivity tracks the device-level online/offline signal. This is a
// coarser signal than the transport's own connection state: it reflects
// whether the platform believes any network is reachable at all. Transitions
// are reported by the embedding application through SetOnline.
type Connectivity struct {
	notifier Notifier
	log      *logrus.Logger

	mu       sync.Mutex
	online   bool
	nextId   int
	syncSubs []*syncHandler
}

type syncHandler struct {
	id int
	fn func()
}

func NewConnectivity(notifier Notifier, logger *logrus.Logger) *Connectivity {
	if logger == nil {
		logger = logrus.New()
	}

	return &Connectivity{
		notifier: notifier,
		log:      logger,
		online:   true,
	}
}

func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// OnSync registers a handler fired on each offline-to-online transition,
// giving whoever holds the API client reference a hook to replay the
// offline queue.
func (c *Connectivity) OnSync(fn func()) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextId++
	h := &syncHandler{id: c.nextId, fn: fn}
	c.syncSubs = append(c.syncSubs, h)

	return newSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, cur := range c.syncSubs {
			if cur.id == h.id {
				c.syncSubs = append(c.syncSubs[:i], c.syncSubs[i+1:]...)
				return
			}
		}
	})
}

// SetOnline reports a connectivity transition. Going offline raises a
// persistent low-priority notice that data will be kept locally; coming back
// online raises a success notice and fires the sync trigger.
func (c *Connectivity) SetOnline(online bool) {
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	subs := make([]*syncHandler, len(c.syncSubs))
	copy(subs, c.syncSubs)
	c.mu.Unlock()

	if !online {
		c.log.Info("connectivity lost")
		c.notifier.Notify(Notification{
			Title:      "You're offline",
			Body:       "Your data will be saved locally and synced when you're back online.",
			Priority:   PriorityLow,
			Persistent: true,
		})
		return
	}

	c.log.Info("connectivity restored")
	c.notifier.Notify(Notification{
		Title:    "Back online",
		Body:     "Syncing your saved data.",
		Priority: PriorityDefault,
		Duration: defaultVisibility,
	})

	for _, h := range subs {
		h.fn()
	}
}
