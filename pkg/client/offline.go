package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// queueLimit caps the offline queue; when full the oldest entry is evicted
// to admit a new one.
const queueLimit = 50

// Entry is one write captured while connectivity was down.
type Entry struct {
	CapturedAt time.Time       `json:"captured_at"`
	Endpoint   string          `json:"endpoint"`
	Method     string          `json:"method"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	// seq identifies the entry across a concurrent sync pass. Reconciliation
	// after replay is by identity, never by position, so an eviction while a
	// sync is in flight cannot make a newer write disappear.
	seq uint64
}

// Request is the replay call handed to the API client.
type Request struct {
	Endpoint string
	Method   string
	Payload  json.RawMessage
}

// APIClient is the opaque HTTP collaborator used for offline replay.
type APIClient interface {
	Request(ctx context.Context, req Request) error
}

// OfflineQueue buffers writes attempted while the device is offline and
// replays them once connectivity returns. Entries are stored newest first;
// replay submission is oldest first, though replays run concurrently so
// completion order at the API is not guaranteed.
type OfflineQueue struct {
	log *logrus.Logger

	mu      sync.Mutex
	seq     uint64
	entries []Entry
}

func NewOfflineQueue(logger *logrus.Logger) *OfflineQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &OfflineQueue{log: logger}
}

// Store captures a write for later replay. When the queue is full the oldest
// entry is dropped.
func (q *OfflineQueue) Store(endpoint, method string, payload json.RawMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	q.entries = append([]Entry{{
		CapturedAt: time.Now().UTC(),
		Endpoint:   endpoint,
		Method:     method,
		Payload:    payload,
		seq:        q.seq,
	}}, q.entries...)

	if len(q.entries) > queueLimit {
		dropped := q.entries[len(q.entries)-1]
		q.entries = q.entries[:queueLimit]
		q.log.Warnf("offline queue full, evicted entry for %s %s", dropped.Method, dropped.Endpoint)
	}
}

func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the queued entries, oldest first.
func (q *OfflineQueue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.entries))
	for i := len(q.entries) - 1; i >= 0; i-- {
		out = append(out, q.entries[i])
	}
	return out
}

// Sync replays every queued entry against the API. Entries are submitted in
// captured order but dispatched concurrently. Entries that replay successfully
// are removed; entries that fail are retained for a later sync pass. Returns
// the number of successful replays.
func (q *OfflineQueue) Sync(ctx context.Context, api APIClient) int {
	q.mu.Lock()
	snapshot := make([]Entry, len(q.entries))
	copy(snapshot, q.entries)
	q.mu.Unlock()

	if len(snapshot) == 0 {
		return 0
	}

	succeeded := make([]bool, len(snapshot))
	var wg sync.WaitGroup
	// iterate from the tail so submission order is oldest first
	for i := len(snapshot) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int, e Entry) {
			defer wg.Done()
			err := api.Request(ctx, Request{
				Endpoint: e.Endpoint,
				Method:   e.Method,
				Payload:  e.Payload,
			})
			if err != nil {
				q.log.Warnf("replay %s %s failed: %v", e.Method, e.Endpoint, err)
				return
			}
			succeeded[i] = true
		}(i, snapshot[i])
	}
	wg.Wait()

	count := 0
	replayed := make(map[uint64]struct{}, len(snapshot))
	for i, e := range snapshot {
		if succeeded[i] {
			count++
			replayed[e.seq] = struct{}{}
		}
	}

	q.mu.Lock()
	// drop exactly the entries that replayed successfully; failed entries and
	// writes captured while the sync was in flight stay, wherever they sit
	kept := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if _, ok := replayed[e.seq]; ok {
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	q.mu.Unlock()

	q.log.Infof("offline sync complete, %d of %d replayed", count, len(snapshot))
	return count
}
