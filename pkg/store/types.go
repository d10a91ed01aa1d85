package store

import (
	"context"
	"time"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// Registration operations.
const (
	OpRegister   = "register"
	OpUpdate     = "update"
	OpUnregister = "unregister"
	OpInvalidate = "invalidate"
)

// Decision stages.
const (
	StageStart  = "start"
	StageStop   = "stop"
	StageUpdate = "update"
)

// Registration is a journaled registry mutation.
type Registration struct {
	ID             string
	RegistrationID string
	Owner          string
	Operation      string
	// Parcel is the wire encoding of the mix. Empty for removals.
	Parcel []byte
	Time   time.Time
}

// Activity is a journaled mix state transition.
type Activity struct {
	ID             string
	RegistrationID string
	Owner          string
	State          mix.State
	Time           time.Time
}

// Decision is a journaled routing decision for a stream start, stop or
// reroute after its mix changed.
type Decision struct {
	ID           string
	StreamHandle string
	Stage        string
	// Event is the recording configuration event of capture streams and
	// mix.RecordConfigEventNone for playback streams.
	Event     mix.RecordConfigEvent
	Class     mix.StreamClass
	Usage     mix.Usage
	Source    mix.Source
	UID       mix.UID
	UserID    mix.UserID
	SessionID mix.SessionID
	// MatchedID is the registration id of the selected mix, empty for
	// default routing.
	MatchedID string
	Ambiguous bool
	Time      time.Time
}

// Journal persists registry activity.
type Journal interface {
	RecordRegistration(ctx context.Context, r *Registration) error
	RecordActivity(ctx context.Context, a *Activity) error
	RecordDecision(ctx context.Context, d *Decision) error

	// Recent* return up to limit records, newest first. A limit of zero or
	// less returns every record.
	RecentRegistrations(ctx context.Context, limit int) ([]*Registration, error)
	RecentActivity(ctx context.Context, limit int) ([]*Activity, error)
	RecentDecisions(ctx context.Context, limit int) ([]*Decision, error)

	// Prune deletes records older than olderThan (ignored when zero) and then
	// trims each stream to its newest maxRecords (ignored when zero or less).
	// It returns the number of deleted records.
	Prune(ctx context.Context, olderThan time.Time, maxRecords int) (int64, error)

	Close() error
}
