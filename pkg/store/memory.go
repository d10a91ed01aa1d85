package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryJournal implements Journal in memory.
type MemoryJournal struct {
	mu            sync.RWMutex
	registrations []*Registration
	activity      []*Activity
	decisions     []*Decision
	closed        bool
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// RecordRegistration stores a copy of r.
func (m *MemoryJournal) RecordRegistration(ctx context.Context, r *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	fillID(&r.ID, &r.Time)
	c := *r
	c.Parcel = append([]byte(nil), r.Parcel...)
	m.registrations = append(m.registrations, &c)
	return nil
}

// RecordActivity stores a copy of a.
func (m *MemoryJournal) RecordActivity(ctx context.Context, a *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	fillID(&a.ID, &a.Time)
	c := *a
	m.activity = append(m.activity, &c)
	return nil
}

// RecordDecision stores a copy of d.
func (m *MemoryJournal) RecordDecision(ctx context.Context, d *Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	fillID(&d.ID, &d.Time)
	c := *d
	m.decisions = append(m.decisions, &c)
	return nil
}

// RecentRegistrations returns registrations, newest first.
func (m *MemoryJournal) RecentRegistrations(ctx context.Context, limit int) ([]*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return newestFirst(m.registrations, limit, func(r *Registration) time.Time { return r.Time }), nil
}

// RecentActivity returns activity records, newest first.
func (m *MemoryJournal) RecentActivity(ctx context.Context, limit int) ([]*Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return newestFirst(m.activity, limit, func(a *Activity) time.Time { return a.Time }), nil
}

// RecentDecisions returns decision records, newest first.
func (m *MemoryJournal) RecentDecisions(ctx context.Context, limit int) ([]*Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return newestFirst(m.decisions, limit, func(d *Decision) time.Time { return d.Time }), nil
}

// Prune deletes old records. See Journal.
func (m *MemoryJournal) Prune(ctx context.Context, olderThan time.Time, maxRecords int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	var total int64
	m.registrations = prune(m.registrations, olderThan, maxRecords, &total, func(r *Registration) time.Time { return r.Time })
	m.activity = prune(m.activity, olderThan, maxRecords, &total, func(a *Activity) time.Time { return a.Time })
	m.decisions = prune(m.decisions, olderThan, maxRecords, &total, func(d *Decision) time.Time { return d.Time })
	return total, nil
}

// Close marks the journal closed.
func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Size returns the number of records across all streams.
func (m *MemoryJournal) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.registrations) + len(m.activity) + len(m.decisions)
}

// newestFirst returns up to limit records ordered by descending time. Records
// with equal times keep reverse insertion order.
func newestFirst[T any](records []T, limit int, at func(T) time.Time) []T {
	out := make([]T, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	sort.SliceStable(out, func(a, b int) bool { return at(out[a]).After(at(out[b])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// prune drops records older than olderThan, then keeps the newest maxRecords.
func prune[T any](records []T, olderThan time.Time, maxRecords int, deleted *int64, at func(T) time.Time) []T {
	kept := records[:0:0]
	for _, r := range records {
		if !olderThan.IsZero() && at(r).Before(olderThan) {
			*deleted++
			continue
		}
		kept = append(kept, r)
	}
	if maxRecords > 0 && len(kept) > maxRecords {
		order := make([]int, len(kept))
		for i := range order {
			order[i] = len(kept) - 1 - i
		}
		sort.SliceStable(order, func(a, b int) bool { return at(kept[order[a]]).After(at(kept[order[b]])) })
		keep := make(map[int]bool, maxRecords)
		for _, i := range order[:maxRecords] {
			keep[i] = true
		}
		trimmed := kept[:0:0]
		for i, r := range kept {
			if keep[i] {
				trimmed = append(trimmed, r)
			}
		}
		*deleted += int64(len(kept) - len(trimmed))
		kept = trimmed
	}
	return kept
}
