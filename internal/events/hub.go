package events

import (
    "context"
    "sync"
)

type subscriber struct {
    ch        chan []byte
    closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Hub is an in-process Broker for single-instance deployments.
type Hub struct {
    mu     sync.Mutex
    subs   map[string]map[*subscriber]struct{}
    closed bool
}

func NewHub() *Hub {
    return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Publish never blocks; slow subscribers are closed and removed. Sends
// happen under the lock so a concurrent unsubscribe cannot close a channel
// mid-send.
func (h *Hub) Publish(_ context.Context, roomID string, payload []byte) error {
    h.mu.Lock()
    defer h.mu.Unlock()
    for sub := range h.subs[roomID] {
        select {
        case sub.ch <- payload:
        default:
            h.removeLocked(roomID, sub)
            sub.close()
        }
    }
    return nil
}

func (h *Hub) Subscribe(ctx context.Context, roomID string) (<-chan []byte, func(), error) {
    sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}

    h.mu.Lock()
    if h.closed {
        h.mu.Unlock()
        sub.close()
        return sub.ch, func() {}, nil
    }
    set := h.subs[roomID]
    if set == nil {
        set = make(map[*subscriber]struct{})
        h.subs[roomID] = set
    }
    set[sub] = struct{}{}
    h.mu.Unlock()

    done := make(chan struct{})
    var once sync.Once
    unsub := func() {
        once.Do(func() {
            h.mu.Lock()
            h.removeLocked(roomID, sub)
            sub.close()
            h.mu.Unlock()
            close(done)
        })
    }
    go func() {
        select {
        case <-ctx.Done():
            unsub()
        case <-done:
        }
    }()
    return sub.ch, unsub, nil
}

// Close ends every subscription.
func (h *Hub) Close() error {
    h.mu.Lock()
    all := h.subs
    h.subs = make(map[string]map[*subscriber]struct{})
    h.closed = true
    defer h.mu.Unlock()
    for _, set := range all {
        for sub := range set {
            sub.close()
        }
    }
    return nil
}

// Subscribers returns the number of live subscriptions to roomID.
func (h *Hub) Subscribers(roomID string) int {
    h.mu.Lock()
    defer h.mu.Unlock()
    return len(h.subs[roomID])
}

func (h *Hub) removeLocked(roomID string, sub *subscriber) {
    set, ok := h.subs[roomID]
    if !ok {
        return
    }
    delete(set, sub)
    if len(set) == 0 {
        delete(h.subs, roomID)
    }
}
