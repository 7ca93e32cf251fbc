// Package sse implements a Server-Sent Events broker that streams session
// changes (reconciled entries, applied commits) to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one broadcast message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans events out to subscribed clients.
//
// Concurrency model: a single internal loop owns all mutable state (the
// client set and the entries-event coalescing timer). Public methods talk
// to the loop through channels, so no mutexes are needed.
type Broker struct {
	throttle time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	entriesCh     chan int
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. throttle bounds how often entries.updated
// events reach clients; rapid reconciliation bursts are coalesced into the
// latest state.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = time.Second
	}
	b := &Broker{
		throttle:      throttle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		entriesCh:     make(chan int, 256),
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

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip rather than block the loop.
			}
		}
	}

	var (
		cooldown <-chan time.Time
		pending  bool
		latest   int
	)
	flushEntries := func() {
		broadcast(Event{Type: "entries.updated", Data: map[string]int{"count": latest}})
		cooldown = time.After(b.throttle)
		pending = false
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

		case count := <-b.entriesCh:
			latest = count
			if cooldown == nil {
				flushEntries()
			} else {
				pending = true
			}

		case <-cooldown:
			if pending {
				flushEntries()
			} else {
				cooldown = nil
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
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

// Publish broadcasts an event to all clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishEntriesUpdated reports a new reconciled entry count. Bursts are
// coalesced; clients always eventually see the latest count.
func (b *Broker) PublishEntriesUpdated(count int) {
	if b.closed.Load() {
		return
	}
	select {
	case b.entriesCh <- count:
	case <-b.stopped:
	}
}

// PublishCommit broadcasts a successfully applied commit.
func (b *Broker) PublishCommit(repo, sha string) {
	b.Publish(Event{Type: "commit.applied", Data: map[string]string{"repo": repo, "sha": sha}})
}

// ServeHTTP is the SSE endpoint handler.
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
