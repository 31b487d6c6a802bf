package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roadside-lab/rsu/internal/domain"
)

const liveWriteTimeout = 5 * time.Second

// Hub is the API's presenter: it keeps the latest snapshot for the REST
// endpoints and fans snapshots out to WebSocket subscribers. Each subscriber
// holds at most one pending snapshot; a slow client skips intermediate ones.
type Hub struct {
	mu     sync.RWMutex
	latest *domain.Snapshot
	subs   map[chan domain.Snapshot]struct{}

	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan domain.Snapshot]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Present stores snap and forwards it to every subscriber.
func (h *Hub) Present(snap domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = &snap
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Latest returns the most recent snapshot, false before the first one.
func (h *Hub) Latest() (domain.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return domain.Snapshot{}, false
	}
	return *h.latest, true
}

// Subscribe registers a subscriber. The returned func unregisters it and
// closes the channel.
func (h *Hub) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.latest != nil {
		ch <- *h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// HandleLive upgrades to a WebSocket and streams snapshots as JSON text
// frames until the client goes away.
func (h *Hub) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] live upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	snaps, unsubscribe := h.Subscribe()
	defer unsubscribe()

	// Reads only detect the close; client messages are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}
