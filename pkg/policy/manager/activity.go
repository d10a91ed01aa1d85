package manager

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// StreamHandle identifies an active stream routed by the manager.
type StreamHandle string

// NewStreamHandle returns a fresh random handle.
func NewStreamHandle() StreamHandle {
	return StreamHandle(uuid.NewString())
}

// ActivityEvent reports a mix state transition.
type ActivityEvent struct {
	Event          mix.DynamicPolicyEvent `json:"event"`
	RegistrationID string                 `json:"registration_id"`
	Token          mix.Token              `json:"-"`
	State          mix.State              `json:"state"`
	Time           time.Time              `json:"time"`

	// Notify is set when the owner asked for activity notifications.
	Notify bool `json:"-"`
}

type mixActivity struct {
	token   mix.Token
	notify  bool
	state   mix.State
	streams map[StreamHandle]struct{}
}

// ActivityTracker follows the idle/mixing/disabled state of registered
// mixes as streams start and stop. A mix is idle when registered, mixing
// while at least one stream is routed to it, and disabled once it leaves
// the registry.
//
// ActivityTracker is not safe for concurrent use; the Manager serializes
// access to it.
type ActivityTracker struct {
	mixes   map[string]*mixActivity
	streams map[StreamHandle]string
	now     func() time.Time
}

// NewActivityTracker creates an empty tracker.
func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{
		mixes:   make(map[string]*mixActivity),
		streams: make(map[StreamHandle]string),
		now:     time.Now,
	}
}

// Registered starts tracking m in the idle state.
func (t *ActivityTracker) Registered(m *mix.Mix) []ActivityEvent {
	a := &mixActivity{
		token:   m.Token,
		notify:  m.CallbackFlags.NotifiesActivity(),
		state:   mix.StateIdle,
		streams: make(map[StreamHandle]struct{}),
	}
	t.mixes[m.RegistrationID] = a
	return []ActivityEvent{t.event(m.RegistrationID, a)}
}

// Updated refreshes the owner and callback flags of m. Its state and
// streams are kept.
func (t *ActivityTracker) Updated(m *mix.Mix) []ActivityEvent {
	a, ok := t.mixes[m.RegistrationID]
	if !ok {
		return t.Registered(m)
	}
	a.token = m.Token
	a.notify = m.CallbackFlags.NotifiesActivity()
	return nil
}

// Unregistered stops tracking the mix with the given id and detaches its
// streams.
func (t *ActivityTracker) Unregistered(id string) []ActivityEvent {
	a, ok := t.mixes[id]
	if !ok {
		return nil
	}
	for h := range a.streams {
		delete(t.streams, h)
	}
	delete(t.mixes, id)
	a.state = mix.StateDisabled
	return []ActivityEvent{t.event(id, a)}
}

// Apply feeds a registry change to the tracker.
func (t *ActivityTracker) Apply(c Change) []ActivityEvent {
	var events []ActivityEvent
	for _, m := range c.Removed {
		events = append(events, t.Unregistered(m.RegistrationID)...)
	}
	for _, m := range c.Updated {
		events = append(events, t.Updated(m)...)
	}
	for _, m := range c.Added {
		events = append(events, t.Registered(m)...)
	}
	return events
}

// StreamStarted routes the stream h to the mix with the given id. The
// first stream moves the mix to mixing.
func (t *ActivityTracker) StreamStarted(h StreamHandle, id string) []ActivityEvent {
	a, ok := t.mixes[id]
	if !ok {
		return nil
	}
	a.streams[h] = struct{}{}
	t.streams[h] = id
	if a.state == mix.StateMixing {
		return nil
	}
	a.state = mix.StateMixing
	return []ActivityEvent{t.event(id, a)}
}

// StreamStopped detaches stream h. The last stream of a mix moves it back
// to idle. It returns the id of the mix the stream was routed to and
// whether the stream was known.
func (t *ActivityTracker) StreamStopped(h StreamHandle) (string, []ActivityEvent, bool) {
	id, ok := t.streams[h]
	if !ok {
		return "", nil, false
	}
	delete(t.streams, h)

	a := t.mixes[id]
	delete(a.streams, h)
	if len(a.streams) > 0 {
		return id, nil, true
	}
	a.state = mix.StateIdle
	return id, []ActivityEvent{t.event(id, a)}, true
}

// State returns the state of the mix with the given id. Unknown mixes are
// disabled.
func (t *ActivityTracker) State(id string) mix.State {
	if a, ok := t.mixes[id]; ok {
		return a.state
	}
	return mix.StateDisabled
}

// ActiveStreams returns the number of streams routed to the mix.
func (t *ActivityTracker) ActiveStreams(id string) int {
	if a, ok := t.mixes[id]; ok {
		return len(a.streams)
	}
	return 0
}

// Streams returns the handles of the streams routed to the mix with the
// given id, sorted.
func (t *ActivityTracker) Streams(id string) []StreamHandle {
	a, ok := t.mixes[id]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(a.streams))
}

// StreamCount returns the number of tracked streams.
func (t *ActivityTracker) StreamCount() int {
	return len(t.streams)
}

func (t *ActivityTracker) event(id string, a *mixActivity) ActivityEvent {
	return ActivityEvent{
		Event:          mix.DynamicPolicyEventMixStateUpdate,
		RegistrationID: id,
		Token:          a.token,
		State:          a.state,
		Time:           t.now(),
		Notify:         a.notify,
	}
}
