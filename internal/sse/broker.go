// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/state"
)

// Event types sent to clients.
const (
	TypeTreeChanged      = "tree.changed"
	TypeTreeResync       = "tree.resync"
	TypeSelectionChanged = "selection.changed"
	TypeImportApplied    = "import.applied"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type treeEventReq struct {
	kinds     []models.Kind
	op        string
	selection models.Selection
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + resync throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	resyncMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	treeEventCh   chan treeEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. At most one tree.resync event is sent
// per resyncThrottle.
func NewBroker(resyncThrottle time.Duration) *Broker {
	if resyncThrottle <= 0 {
		resyncThrottle = 2 * time.Second
	}

	b := &Broker{
		resyncMin:     resyncThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		treeEventCh:   make(chan treeEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastResync time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.treeEventCh:
			if len(req.kinds) == 0 {
				broadcast(Event{Type: TypeSelectionChanged, Data: req.selection})
				continue
			}
			for _, k := range req.kinds {
				broadcast(Event{Type: TypeTreeChanged, Data: map[string]string{
					"kind":    string(k),
					"command": req.op,
				}})
			}

			now := time.Now()
			if now.Sub(lastResync) >= b.resyncMin {
				lastResync = now
				broadcast(Event{Type: TypeTreeResync, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishTreeChange publishes one tree.changed event per kind and a
// throttled tree.resync. With no kinds only the selection changed, and a
// selection.changed event carrying sel is sent instead.
func (b *Broker) PublishTreeChange(kinds []models.Kind, op string, sel models.Selection) {
	if b.closed.Load() {
		return
	}
	select {
	case b.treeEventCh <- treeEventReq{kinds: kinds, op: op, selection: sel}:
	case <-b.stopped:
	}
}

// Follow forwards store changes to clients until ctx is cancelled or the
// changes channel is closed.
func (b *Broker) Follow(ctx context.Context, changes <-chan state.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			b.PublishTreeChange(c.Kinds, c.Op, c.State.Selection)
		}
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
