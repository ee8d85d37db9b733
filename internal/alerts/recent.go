package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Tracker counts recently raised alerts per ward using windowed cache
// counters. Its Count method satisfies RecentAlertGetter.
type Tracker struct {
	cache domain.Cache
}

// NewTracker creates a tracker over the given cache.
func NewTracker(cache domain.Cache) *Tracker {
	return &Tracker{cache: cache}
}

func recentKey(wardCode string) string {
	return "alerts:recent:" + wardCode
}

// Record registers a raised alert for the ward within the window.
func (t *Tracker) Record(ctx context.Context, wardCode string, window time.Duration) error {
	if wardCode == "" {
		return fmt.Errorf("ward code is required")
	}
	_, err := t.cache.IncrementCounter(ctx, recentKey(wardCode), window)
	return err
}

// Count returns the number of alerts recorded for the ward in the current
// window.
func (t *Tracker) Count(ctx context.Context, wardCode string, _ time.Duration) (int64, error) {
	if wardCode == "" {
		return 0, fmt.Errorf("ward code is required")
	}
	return t.cache.GetCounter(ctx, recentKey(wardCode))
}
