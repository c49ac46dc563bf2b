// Package reconcile merges three update sources — push events, interval
// polling, and visibility/connectivity transitions — into one observed
// order state per client. Full fetches are authoritative and replace
// local state; push events are untrusted partial patches merged on top.
package reconcile

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mejakita/api/internal/lifecycle"
)

// Default cadence. Order polling stops once a terminal status is
// observed; the heartbeat interval applies to table-session watchers.
const (
	DefaultPollInterval      = 30 * time.Second
	DefaultHeartbeatInterval = 2 * time.Minute
	DefaultStaleAfter        = 90 * time.Second
)

// ChannelState is the push channel's lifecycle, orthogonal to the
// fresh/stale flag.
type ChannelState int

const (
	Disconnected ChannelState = iota
	Subscribing
	Live
)

func (s ChannelState) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	}
	return "disconnected"
}

// OrderView is the converged, read-only order state exposed to
// presentation layers.
type OrderView struct {
	OrderID       uuid.UUID `json:"order_id"`
	TableID       string    `json:"table_id,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Total         string    `json:"total,omitempty"`
}

// Snapshot is the view plus its freshness metadata.
type Snapshot struct {
	View       OrderView
	Channel    ChannelState
	Fresh      bool      // last full fetch within the staleness window
	ObservedAt uint64    // monotonic receipt marker of the last applied update
	FetchedAt  time.Time // wall-clock time of the last full fetch
}

// Fetcher performs the authoritative full re-fetch.
type Fetcher interface {
	FetchOrder(ctx context.Context, id uuid.UUID) (OrderView, error)
}

// Subscription is an open push channel for one order.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}

// Subscriber opens push subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, id uuid.UUID) (Subscription, error)
}

// patch is the validated shape of an untrusted push payload. Fields
// absent from the event are left untouched on merge.
type patch struct {
	OrderID       *string `json:"order_id"`
	TableID       *string `json:"table_id"`
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// Config tunes a Watcher. Zero values fall back to the defaults.
type Config struct {
	PollInterval time.Duration
	StaleAfter   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	return c
}

// Watcher converges one order's state for one observing client.
type Watcher struct {
	orderID    uuid.UUID
	cfg        Config
	fetcher    Fetcher
	subscriber Subscriber

	// Signals into the run loop.
	visibility chan bool
	refetch    chan struct{}
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once

	mu        sync.Mutex
	started   bool
	view      OrderView
	channel   ChannelState
	seq       uint64 // receipt marker, bumped on every applied update
	fetchedAt time.Time
	sub       Subscription
	visible   bool
	polling   bool
}

// NewWatcher creates a watcher for the given order. Call Start to
// begin observing and Close to release the timer and subscription.
func NewWatcher(orderID uuid.UUID, fetcher Fetcher, subscriber Subscriber, cfg Config) *Watcher {
	return &Watcher{
		orderID:    orderID,
		cfg:        cfg.withDefaults(),
		fetcher:    fetcher,
		subscriber: subscriber,
		visibility: make(chan bool, 4),
		refetch:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		channel:    Disconnected,
		visible:    true,
		polling:    true,
	}
}

// Start performs the initial full fetch and subscription, then runs
// the reconciliation loop until Close.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run(ctx)
}

// Snapshot returns the current converged view.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		View:       w.view,
		Channel:    w.channel,
		Fresh:      !w.fetchedAt.IsZero() && time.Since(w.fetchedAt) <= w.cfg.StaleAfter,
		ObservedAt: w.seq,
		FetchedAt:  w.fetchedAt,
	}
}

// SetVisible signals a page visibility transition. Becoming visible
// forces one immediate full re-fetch and re-subscribes a lapsed push
// channel; becoming hidden tears the subscription down but leaves the
// poll schedule untouched.
func (w *Watcher) SetVisible(visible bool) {
	select {
	case w.visibility <- visible:
	case <-w.done:
	}
}

// SetOnline signals a connectivity transition; the handling mirrors
// visibility.
func (w *Watcher) SetOnline(online bool) {
	w.SetVisible(online)
}

// Close releases the poll timer and the push subscription before
// returning. Safe to call twice.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.stopped
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	defer w.teardownSubscription()

	w.subscribe(ctx)
	w.fullFetch(ctx)

	for {
		events := w.eventChan()
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.pollEnabled() {
				w.fullFetch(ctx)
			}
		case <-w.refetch:
			w.fullFetch(ctx)
		case visible := <-w.visibility:
			w.onVisibility(ctx, visible)
		case raw, ok := <-events:
			if !ok {
				// Push channel dropped; degrade to poll-only.
				w.teardownSubscription()
				continue
			}
			w.applyPatch(raw)
		}
	}
}

// eventChan returns the live subscription's event channel, or nil
// (blocking forever in select) when there is none.
func (w *Watcher) eventChan() <-chan []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub == nil {
		return nil
	}
	return w.sub.Events()
}

func (w *Watcher) pollEnabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// subscribe opens the push channel. Failure is not fatal: the watcher
// degrades to poll-only and stays Disconnected until the next
// visibility or connectivity transition.
func (w *Watcher) subscribe(ctx context.Context) {
	if w.subscriber == nil {
		return
	}
	w.mu.Lock()
	if w.sub != nil {
		w.mu.Unlock()
		return
	}
	w.channel = Subscribing
	w.mu.Unlock()

	sub, err := w.subscriber.Subscribe(ctx, w.orderID)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.channel = Disconnected
		log.Printf("ERROR: subscribe order %s: %v (poll-only)", w.orderID, err)
		return
	}
	w.sub = sub
	w.channel = Live
}

func (w *Watcher) teardownSubscription() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.channel = Disconnected
	w.mu.Unlock()
	if sub != nil {
		if err := sub.Close(); err != nil {
			log.Printf("ERROR: close subscription for order %s: %v", w.orderID, err)
		}
	}
}

func (w *Watcher) onVisibility(ctx context.Context, visible bool) {
	w.mu.Lock()
	w.visible = visible
	lapsed := w.sub == nil
	w.mu.Unlock()

	if !visible {
		// Hidden or offline: drop the push channel to avoid background
		// resource use. The poll timer's next fire stays scheduled.
		w.teardownSubscription()
		return
	}
	if lapsed {
		w.subscribe(ctx)
	}
	w.fullFetch(ctx)
}

// fullFetch performs the authoritative re-fetch and replaces local
// state entirely. The receipt marker is assigned here, at resolution
// time, so the fetch supersedes every patch applied before it.
func (w *Watcher) fullFetch(ctx context.Context) {
	view, err := w.fetcher.FetchOrder(ctx, w.orderID)
	if err != nil {
		log.Printf("ERROR: fetch order %s: %v", w.orderID, err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.view = view
	w.fetchedAt = time.Now()
	if lifecycle.IsTerminal(view.Status) {
		// Terminal orders stop polling; the subscription (if open)
		// stays until explicit close.
		w.polling = false
	}
}

// applyPatch validates an untrusted push payload and merges its known
// fields into local state. Terminal states are sticky: a patch that
// would leave one is dropped.
func (w *Watcher) applyPatch(raw []byte) {
	var p patch
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("ERROR: malformed push event for order %s: %v", w.orderID, err)
		return
	}
	if p.OrderID != nil && *p.OrderID != w.orderID.String() {
		return
	}
	if p.Status != nil && !lifecycle.IsValid(*p.Status) {
		log.Printf("ERROR: push event with unknown status %q for order %s", *p.Status, w.orderID)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if p.Status != nil && lifecycle.IsTerminal(w.view.Status) && *p.Status != w.view.Status {
		return
	}
	w.seq++
	if p.Status != nil {
		w.view.Status = *p.Status
		if lifecycle.IsTerminal(*p.Status) {
			w.polling = false
		}
	}
	if p.PaymentStatus != nil {
		w.view.PaymentStatus = *p.PaymentStatus
	}
	if p.TableID != nil {
		w.view.TableID = *p.TableID
	}
}
