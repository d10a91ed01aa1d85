package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/store"
)

func TestMailbox(t *testing.T) {
	owner := mix.NewToken()
	b := NewMailbox(2)
	ctx := context.Background()

	ev := func(id string, notify bool) ActivityEvent {
		return ActivityEvent{RegistrationID: id, Token: owner, Notify: notify}
	}

	// Events for owners without an open queue are discarded.
	_ = b.Notify(ctx, ev("early", true))
	if b.Pending(owner) != 0 {
		t.Fatalf("Pending() = %d before Open", b.Pending(owner))
	}

	b.Open(owner)
	_ = b.Notify(ctx, ev("silent", false))
	_ = b.Notify(ctx, ev("a", true))
	_ = b.Notify(ctx, ev("b", true))
	_ = b.Notify(ctx, ev("c", true))

	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}

	got := b.Drain(owner)
	if len(got) != 2 || got[0].RegistrationID != "b" || got[1].RegistrationID != "c" {
		t.Errorf("Drain() = %+v, want [b c]", got)
	}
	if b.Pending(owner) != 0 {
		t.Errorf("Pending() after Drain = %d", b.Pending(owner))
	}

	b.Close(owner)
	_ = b.Notify(ctx, ev("late", true))
	if got := b.Drain(owner); got != nil {
		t.Errorf("Drain() after Close = %+v", got)
	}
}

type collectNotifier struct {
	mu     sync.Mutex
	events []ActivityEvent
	err    error
}

func (c *collectNotifier) Notify(_ context.Context, ev ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *collectNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) record(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

func (o *outcomeCounter) get(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[outcome]
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	n := &collectNotifier{}
	var outcomes outcomeCounter
	d := NewDispatcher(n, 16, nil, outcomes.record)

	for i := 0; i < 10; i++ {
		if !d.Enqueue(ActivityEvent{RegistrationID: "a"}) {
			t.Fatalf("Enqueue(%d) dropped", i)
		}
	}
	d.Close()

	if n.count() != 10 {
		t.Errorf("delivered %d events, want 10", n.count())
	}
	if outcomes.get(NotificationDelivered) != 10 {
		t.Errorf("delivered outcomes = %d, want 10", outcomes.get(NotificationDelivered))
	}

	if d.Enqueue(ActivityEvent{}) {
		t.Error("Enqueue() after Close accepted an event")
	}
	if outcomes.get(NotificationDropped) != 1 {
		t.Errorf("dropped outcomes = %d, want 1", outcomes.get(NotificationDropped))
	}

	d.Close()
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := NotifierFunc(func(ctx context.Context, ev ActivityEvent) error {
		<-release
		return nil
	})

	var outcomes outcomeCounter
	d := NewDispatcher(blocking, 1, nil, outcomes.record)

	// The worker holds one event while blocked; one more fits the buffer.
	accepted := 0
	deadline := time.Now().Add(2 * time.Second)
	for outcomes.get(NotificationDropped) == 0 && time.Now().Before(deadline) {
		if d.Enqueue(ActivityEvent{}) {
			accepted++
		}
	}
	close(release)
	d.Close()

	if outcomes.get(NotificationDropped) == 0 {
		t.Fatal("no event dropped with a full channel")
	}
	if accepted > 2 {
		t.Errorf("accepted %d events, want at most 2", accepted)
	}
	if outcomes.get(NotificationDelivered) != accepted {
		t.Errorf("delivered %d, accepted %d", outcomes.get(NotificationDelivered), accepted)
	}
}

func TestDispatcher_ReportsFailures(t *testing.T) {
	n := &collectNotifier{err: errors.New("sink down")}
	var outcomes outcomeCounter
	d := NewDispatcher(n, 4, nil, outcomes.record)

	d.Enqueue(ActivityEvent{})
	d.Close()

	if outcomes.get(NotificationFailed) != 1 {
		t.Errorf("failed outcomes = %d, want 1", outcomes.get(NotificationFailed))
	}
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	ok := &collectNotifier{}
	bad := &collectNotifier{err: errors.New("boom")}

	err := MultiNotifier{ok, bad, ok}.Notify(context.Background(), ActivityEvent{})
	if err == nil || err.Error() != "boom" {
		t.Errorf("Notify() error = %v, want boom", err)
	}
	if ok.count() != 2 {
		t.Errorf("ok notifier called %d times, want 2", ok.count())
	}
}

func TestJournalNotifier(t *testing.T) {
	journal := store.NewMemoryJournal()
	n := NewJournalNotifier(journal)
	owner := mix.NewToken()
	now := time.Now()

	err := n.Notify(context.Background(), ActivityEvent{
		RegistrationID: "a",
		Token:          owner,
		State:          mix.StateMixing,
		Time:           now,
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	got, err := journal.RecentActivity(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RegistrationID != "a" || got[0].State != mix.StateMixing || got[0].Owner != owner.String() {
		t.Errorf("RecentActivity() = %+v", got)
	}
}
