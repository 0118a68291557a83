package client

import "sync"

// Subscription is the handle returned by every subscribe-style call. Cancel
// unregisters the handler; it is safe to call more than once and from any
// goroutine, which gives tests a deterministic teardown path.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}
