package health

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/mixpolicy/pkg/store"
)

// Reloader reports the outcome of the last mix file load.
type Reloader interface {
	LastReload() (time.Time, error)
}

// MixFileCheck fails while the last mix file load failed. The previously
// loaded mixes are still served in that state, but they are stale.
func MixFileCheck(r Reloader) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := r.LastReload(); err != nil {
			return fmt.Errorf("mix file: %w", err)
		}
		return nil
	}
}

// JournalCheck fails when the journal cannot be queried.
func JournalCheck(j store.Journal) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := j.RecentRegistrations(ctx, 1); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		return nil
	}
}
