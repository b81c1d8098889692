package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"budgetsim/internal/core"
	"budgetsim/internal/log"
)

// Publisher relays changes to other instances.
type Publisher interface {
	PublishChange(ctx context.Context, change core.Change) error
}

// Observer receives hub gauges and counters, typically Prometheus.
type Observer interface {
	SetSubscribers(n int)
	ObserveBroadcast(delivered, dropped int)
}

type HubConfig struct {
	// Buffer is the per-subscriber queue depth. Minimum 1.
	Buffer int
	// PublishTimeout bounds one relay publish.
	PublishTimeout time.Duration
}

func DefaultHubConfig() HubConfig {
	return HubConfig{Buffer: 8, PublishTimeout: 5 * time.Second}
}

type subscriber struct {
	id string
	ch chan Snapshot
}

// Hub fans snapshots out to subscribers. Notify never blocks the caller:
// invalidation hooks run inline, everything else runs in the background and
// bursts of changes coalesce into one load of the latest state.
type Hub struct {
	lister Lister
	cfg    HubConfig
	id     string

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool

	invalidators []func(core.Change)
	publisher    Publisher
	observer     Observer
	logger       *log.Logger

	changes atomic.Uint64
	pending atomic.Bool
	running atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context
	stop    context.CancelFunc
}

type HubOption func(*Hub)

// WithInvalidator registers a hook run synchronously inside Notify, before
// Notify returns. Read caches hang off this.
func WithInvalidator(fn func(core.Change)) HubOption {
	return func(h *Hub) { h.invalidators = append(h.invalidators, fn) }
}

func WithPublisher(p Publisher) HubOption {
	return func(h *Hub) { h.publisher = p }
}

// WithHubID fixes the instance id, so a relay client built before the hub can
// carry the same origin.
func WithHubID(id string) HubOption {
	return func(h *Hub) {
		if id != "" {
			h.id = id
		}
	}
}

func WithObserver(o Observer) HubOption {
	return func(h *Hub) { h.observer = o }
}

func WithHubLogger(l *log.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l.WithComponent(log.ComponentBroadcast)
		}
	}
}

func NewHub(lister Lister, cfg HubConfig, opts ...HubOption) *Hub {
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultHubConfig().PublishTimeout
	}
	ctx, stop := context.WithCancel(context.Background())
	h := &Hub{
		lister:   lister,
		cfg:      cfg,
		id:       uuid.NewString(),
		subs:     make(map[string]*subscriber),
		observer: nopObserver{},
		logger:   log.Discard(),
		ctx:      ctx,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ID identifies this hub instance on the relay so it can skip its own events.
func (h *Hub) ID() string { return h.id }

// Subscribe registers an observer. The current family list is queued before
// Subscribe returns. The subscription ends when ctx is done or Close is called.
//
// The subscriber is registered before the first load, so a change committed
// while that load runs is fanned out to it as well.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	s := &subscriber{id: uuid.NewString(), ch: make(chan Snapshot, h.cfg.Buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()

	seen := h.changes.Load()
	families, err := h.lister.ListFamilies(ctx)
	if err != nil {
		h.Unsubscribe(s.id)
		return nil, err
	}

	h.mu.RLock()
	_, live := h.subs[s.id]
	if live {
		offer(s.ch, Snapshot{Data: families})
	}
	h.mu.RUnlock()
	if !live {
		return nil, ErrClosed
	}
	// A fan-out that raced the load may have been queued ahead of the older
	// initial snapshot; one more makes the latest state arrive last.
	if h.changes.Load() != seen {
		h.schedule()
	}

	h.observer.SetSubscribers(n)
	h.logger.Debug("subscriber added", log.FieldSubscriber, s.id, log.FieldCount, n)

	stopAfter := context.AfterFunc(ctx, func() { h.Unsubscribe(s.id) })
	return &Subscription{
		ID: s.id,
		C:  s.ch,
		cancel: func() {
			stopAfter()
			h.Unsubscribe(s.id)
		},
	}, nil
}

// Unsubscribe removes the observer and closes its channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(s.ch)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.observer.SetSubscribers(n)
		h.logger.Debug("subscriber removed", log.FieldSubscriber, id, log.FieldCount, n)
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify is called after every committed ledger write.
func (h *Hub) Notify(ctx context.Context, change core.Change) {
	h.changes.Add(1)
	h.invalidate(change)
	h.publish(change)
	h.schedule()
}

// Receive handles a change relayed from another instance. It is not re-published.
func (h *Hub) Receive(change core.Change) {
	h.changes.Add(1)
	h.invalidate(change)
	h.schedule()
}

// NotifyAll loads the current list and offers it to every subscriber. A slow
// or gone subscriber never affects the others.
func (h *Hub) NotifyAll(ctx context.Context) error {
	families, err := h.lister.ListFamilies(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "snapshot load failed", log.FieldOperation, log.OpNotify, log.FieldError, err)
		return err
	}
	snap := Snapshot{Data: families}

	delivered, dropped := 0, 0
	h.mu.RLock()
	for _, s := range h.subs {
		ok, droppedOld := offer(s.ch, snap)
		if ok {
			delivered++
		}
		if droppedOld || !ok {
			dropped++
		}
	}
	h.mu.RUnlock()

	h.observer.ObserveBroadcast(delivered, dropped)
	return nil
}

// Wait blocks until background fan-outs scheduled so far have finished.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// Close ends every subscription and stops background work.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
	h.mu.Unlock()

	h.stop()
	h.wg.Wait()
	h.observer.SetSubscribers(0)
}

func (h *Hub) invalidate(change core.Change) {
	for _, fn := range h.invalidators {
		fn(change)
	}
}

func (h *Hub) publish(change core.Change) {
	if h.publisher == nil || h.ctx.Err() != nil {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.PublishTimeout)
		defer cancel()
		if err := h.publisher.PublishChange(ctx, change); err != nil {
			h.logger.Error("relay publish failed", log.FieldOperation, change.Operation, log.FieldError, err)
		}
	}()
}

// schedule makes sure a fan-out of the latest state happens after this call.
func (h *Hub) schedule() {
	if h.ctx.Err() != nil {
		return
	}
	h.pending.Store(true)
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	h.wg.Add(1)
	go h.drain()
}

func (h *Hub) drain() {
	defer h.wg.Done()
	for {
		for h.pending.Swap(false) {
			if h.ctx.Err() != nil {
				h.running.Store(false)
				return
			}
			_ = h.NotifyAll(h.ctx)
		}
		h.running.Store(false)
		// A schedule() between the last Swap and Store saw running==true and
		// left its work to us.
		if !h.pending.Load() || !h.running.CompareAndSwap(false, true) {
			return
		}
	}
}

type nopObserver struct{}

func (nopObserver) SetSubscribers(int)         {}
func (nopObserver) ObserveBroadcast(int, int) {}
