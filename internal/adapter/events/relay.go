package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/core/service"
	"github.com/rl1809/cartsync/internal/port"
)

const DefaultQueueSize = 256

// Relay turns CartStore views into CartSynced events. Observe never blocks:
// when the queue is full the event is dropped and a warning logged. One
// worker goroutine publishes queued events in order.
type Relay struct {
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	mu           sync.Mutex
	queue        chan CartSynced
	lastRevision uint64
	started      bool
	closed       bool
	done         chan struct{}
}

func NewRelay(publisher port.EventPublisher, queueSize int, logger *zap.Logger) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		queue:     make(chan CartSynced, queueSize),
		done:      make(chan struct{}),
	}
}

// Attach subscribes the relay to store and starts the worker. The returned
// function unsubscribes.
func (r *Relay) Attach(store *service.CartStore) func() {
	r.Start()
	return store.Subscribe(r.Observe)
}

// Start launches the worker. Calling it more than once does nothing.
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run()
}

// Observe enqueues an event when the view carries a new collection revision.
func (r *Relay) Observe(v service.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || v.Revision <= r.lastRevision {
		return
	}
	r.lastRevision = v.Revision

	select {
	case r.queue <- newCartSynced(v, r.now()):
	default:
		r.logger.Warn("cart event queue full, dropping event", zap.Uint64("revision", v.Revision))
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for ev := range r.queue {
		r.publish(ev)
	}
}

func (r *Relay) publish(ev CartSynced) {
	body, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("marshal cart event", zap.Error(err))
		return
	}
	if err := r.publisher.Publish(context.Background(), CartSyncedRoutingKey, body); err != nil {
		r.logger.Warn("publish cart event",
			zap.String("event_id", ev.EventID),
			zap.Uint64("revision", ev.Revision),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("published cart event", zap.String("event_id", ev.EventID), zap.Uint64("revision", ev.Revision))
}

// Close stops accepting events and waits until the worker has drained the
// queue or ctx ends.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
		if !r.started {
			close(r.done)
		}
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
