package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultQueueSize bounds each per-chat event queue.
const DefaultQueueSize = 64

// Dispatcher fans inbound events out to one worker per active chat:
// events for the same chat are processed in arrival order, different
// chats run concurrently, and one chat's rate-limit sleep never blocks
// another chat's work.
type Dispatcher struct {
	engine    *Engine
	queueSize int

	g   *errgroup.Group
	ctx context.Context

	mu     sync.Mutex
	queues map[int64]chan Event
	closed bool
}

// NewDispatcher creates a dispatcher over the engine. queueSize <= 0
// uses DefaultQueueSize.
func NewDispatcher(engine *Engine, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		engine:    engine,
		queueSize: queueSize,
		queues:    make(map[int64]chan Event),
	}
}

// Start prepares the dispatcher; workers spawn lazily per chat.
func (d *Dispatcher) Start(ctx context.Context) {
	d.g, d.ctx = errgroup.WithContext(ctx)
}

// Enqueue queues an event for its chat's worker. Events are dropped
// (with a warning) when the chat's queue is full or the dispatcher has
// stopped; backpressure must not stall the transport's poll loop.
// The nonblocking send happens under the mutex so Stop cannot close a
// queue between the snapshot and the send.
func (d *Dispatcher) Enqueue(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	q, ok := d.queues[ev.ChatID]
	if !ok {
		q = make(chan Event, d.queueSize)
		d.queues[ev.ChatID] = q
		d.g.Go(func() error {
			d.work(q)
			return nil
		})
	}

	select {
	case q <- ev:
		return true
	default:
		slog.Warn("dispatch queue full, dropping event",
			"chat_id", ev.ChatID, "message_id", ev.MessageID)
		return false
	}
}

// work drains one chat's queue until it is closed on shutdown.
func (d *Dispatcher) work(q chan Event) {
	for ev := range q {
		out := d.engine.Process(d.ctx, ev)
		slog.Debug("event dispatched",
			"chat_id", ev.ChatID,
			"state", out.State,
			"reaction", out.Reaction,
			"keyword", out.Keyword,
		)
	}
}

// Stop closes all queues and waits for workers to finish the events
// already accepted. Safe to call once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	if d.g != nil {
		d.g.Wait()
	}
}
