// Package fanout implements the ledger's subscription runtime:
// resumable replay-then-live delivery per container, a bounded
// per-subscriber buffer that drops rather than blocks the publisher,
// and periodic heartbeats so an idle subscriber can distinguish a
// quiet container from a dead connection.
package fanout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/certen/ledger-kernel/internal/store"
)

// EntrySource is the subset of store.Client fanout needs to satisfy
// replay and live-notification lookups.
type EntrySource interface {
	FetchEntriesSince(ctx context.Context, containerID string, afterSequence uint64, limit int) ([]*store.Entry, error)
	FetchEntry(ctx context.Context, containerID string, sequence uint64) (*store.Entry, error)
}

// Event is one item delivered to a subscriber: either a ledger entry or
// a heartbeat (Entry == nil) marking that the connection is alive.
// Heartbeats are sent on a fixed ticker whether or not the container
// has had traffic since the last one.
type Event struct {
	Entry     *store.Entry
	Heartbeat bool
}

// Subscription is a live feed for one container, starting from the
// first entry after AfterSequence.
type Subscription struct {
	Events <-chan Event
	Close  func()
}

type subscriber struct {
	id          uint64
	containerID string
	ch          chan Event
	stop        chan struct{}
}

// Hub fans out newly appended entries to subscribers, filtered by
// container, and drives the replay-then-live handoff for new
// subscriptions.
type Hub struct {
	source        EntrySource
	replayCap     int
	heartbeat     time.Duration
	subscriberBuf int
	logger        *log.Logger

	// OnDrop, if set, is called whenever a subscriber's buffer is full
	// and an event has to be dropped rather than delivered.
	OnDrop func(containerID string)

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
}

// NewHub builds a Hub. replayCap bounds how many backlog entries a new
// subscription replays before switching to live delivery (spec
// default: 1000); subscriberBuf is each subscriber's channel capacity
// for live events, on top of room for its replayed backlog (default:
// 128); heartbeat is the keepalive interval (default: 15s).
func NewHub(source EntrySource, replayCap, subscriberBuf int, heartbeat time.Duration) *Hub {
	if replayCap <= 0 {
		replayCap = 1000
	}
	if subscriberBuf <= 0 {
		subscriberBuf = 128
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Hub{
		source:        source,
		replayCap:     replayCap,
		subscriberBuf: subscriberBuf,
		heartbeat:     heartbeat,
		logger:        log.New(log.Writer(), "[Fanout] ", log.LstdFlags),
		subs:          make(map[uint64]*subscriber),
	}
}

// Subscribe replays every entry after afterSequence for containerID
// (capped at replayCap), then keeps the returned channel open for live
// delivery of subsequent entries and periodic heartbeats. The caller
// must call Close when done to release the subscriber slot.
func (h *Hub) Subscribe(ctx context.Context, containerID string, afterSequence uint64) (*Subscription, error) {
	backlog, err := h.source.FetchEntriesSince(ctx, containerID, afterSequence, h.replayCap)
	if err != nil {
		return nil, fmt.Errorf("fanout: replay: %w", err)
	}
	if len(backlog) == h.replayCap {
		h.logger.Printf("subscriber for %s hit replay cap %d; some backlog may remain unsent", containerID, h.replayCap)
	}

	sub := &subscriber{
		containerID: containerID,
		ch:          make(chan Event, h.subscriberBuf+len(backlog)),
		stop:        make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()

	for _, e := range backlog {
		sub.ch <- Event{Entry: e}
	}

	go h.heartbeatLoop(sub)

	closeOnce := sync.Once{}
	return &Subscription{
		Events: sub.ch,
		Close: func() {
			closeOnce.Do(func() { h.remove(sub) })
		},
	}, nil
}

func (h *Hub) heartbeatLoop(sub *subscriber) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-sub.stop:
			return
		case <-ticker.C:
			h.deliver(sub, Event{Heartbeat: true})
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	close(sub.stop)
	close(sub.ch)
}

// Dispatch delivers entry to every live subscriber of its container.
// Subscribers whose buffer is full have the event dropped rather than
// block the publisher (the NOTIFY pipeline must never stall on a slow
// reader); OnDrop, if set, is invoked for each drop.
func (h *Hub) Dispatch(entry *store.Entry) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.containerID == entry.ContainerID {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		h.deliver(sub, Event{Entry: entry})
	}
}

func (h *Hub) deliver(sub *subscriber, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		if h.OnDrop != nil {
			h.OnDrop(sub.containerID)
		}
		h.logger.Printf("dropped event for subscriber on container %s: buffer full", sub.containerID)
	}
}

// SubscriberCount returns the number of currently live subscriptions,
// for metrics.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
