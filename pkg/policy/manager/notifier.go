package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/store"
)

// Notifier receives activity events.
type Notifier interface {
	Notify(ctx context.Context, ev ActivityEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev ActivityEvent) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev ActivityEvent) error {
	return f(ctx, ev)
}

// MultiNotifier delivers every event to each of its notifiers.
type MultiNotifier []Notifier

// Notify delivers ev to every notifier and joins their errors.
func (m MultiNotifier) Notify(ctx context.Context, ev ActivityEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier logs every transition.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "policy.activity")}
}

// Notify logs ev.
func (n *LogNotifier) Notify(ctx context.Context, ev ActivityEvent) error {
	n.logger.InfoContext(ctx, "mix state changed",
		"registration_id", ev.RegistrationID,
		"state", ev.State.String(),
		"owner", ev.Token.String(),
	)
	return nil
}

// JournalNotifier records every transition in a journal.
type JournalNotifier struct {
	journal store.Journal
}

// NewJournalNotifier creates a journal notifier.
func NewJournalNotifier(journal store.Journal) *JournalNotifier {
	return &JournalNotifier{journal: journal}
}

// Notify appends ev to the activity journal.
func (n *JournalNotifier) Notify(ctx context.Context, ev ActivityEvent) error {
	return n.journal.RecordActivity(ctx, &store.Activity{
		RegistrationID: ev.RegistrationID,
		Owner:          ev.Token.String(),
		State:          ev.State,
		Time:           ev.Time,
	})
}

// Mailbox queues the events of mixes that requested activity
// notifications, one bounded queue per owner token. Owners drain their
// queue with Drain. When a queue is full the oldest event is discarded.
type Mailbox struct {
	mu      sync.Mutex
	size    int
	queues  map[mix.Token][]ActivityEvent
	dropped uint64
}

// NewMailbox creates a mailbox holding up to size events per owner.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = 64
	}
	return &Mailbox{
		size:   size,
		queues: make(map[mix.Token][]ActivityEvent),
	}
}

// Open creates the queue of token. Events for owners without a queue are
// discarded.
func (b *Mailbox) Open(token mix.Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[token]; !ok {
		b.queues[token] = nil
	}
}

// Close discards the queue of token.
func (b *Mailbox) Close(token mix.Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, token)
}

// Notify queues ev for its owner if notifications were requested.
func (b *Mailbox) Notify(ctx context.Context, ev ActivityEvent) error {
	if !ev.Notify {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[ev.Token]
	if !ok {
		return nil
	}
	if len(q) >= b.size {
		q = q[1:]
		b.dropped++
	}
	b.queues[ev.Token] = append(q, ev)
	return nil
}

// Drain returns and clears the queued events of token, oldest first.
func (b *Mailbox) Drain(token mix.Token) []ActivityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[token]
	if !ok {
		return nil
	}
	b.queues[token] = nil
	return q
}

// Pending returns the number of queued events of token.
func (b *Mailbox) Pending(token mix.Token) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[token])
}

// Dropped returns the number of events discarded because a queue was full.
func (b *Mailbox) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Notification outcomes reported by the dispatcher.
const (
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
	NotificationDropped   = "dropped"
)

// Dispatcher delivers activity events to a notifier from a background
// goroutine fed by a bounded channel. Enqueue never blocks: when the
// channel is full the event is dropped.
type Dispatcher struct {
	notifier  Notifier
	events    chan ActivityEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	timeout   time.Duration
	onOutcome func(outcome string)
	logger    *slog.Logger
}

// NewDispatcher starts a dispatcher. onOutcome may be nil.
func NewDispatcher(notifier Notifier, buffer int, logger *slog.Logger, onOutcome func(outcome string)) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	if onOutcome == nil {
		onOutcome = func(string) {}
	}

	d := &Dispatcher{
		notifier:  notifier,
		events:    make(chan ActivityEvent, buffer),
		done:      make(chan struct{}),
		timeout:   5 * time.Second,
		onOutcome: onOutcome,
		logger:    logger.With("component", "policy.dispatcher"),
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

// Enqueue schedules ev for delivery. It reports false when the event was
// dropped.
func (d *Dispatcher) Enqueue(ev ActivityEvent) bool {
	select {
	case <-d.done:
		d.onOutcome(NotificationDropped)
		return false
	default:
	}

	select {
	case d.events <- ev:
		return true
	default:
		d.logger.Warn("activity channel full, dropping event",
			"registration_id", ev.RegistrationID,
			"state", ev.State.String(),
			"channel_capacity", cap(d.events),
		)
		d.onOutcome(NotificationDropped)
		return false
	}
}

// Close stops the dispatcher after delivering the queued events.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.events:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, ev); err != nil {
		d.logger.Error("failed to deliver activity event",
			"registration_id", ev.RegistrationID,
			"state", ev.State.String(),
			"error", err,
		)
		d.onOutcome(NotificationFailed)
		return
	}
	d.onOutcome(NotificationDelivered)
}
