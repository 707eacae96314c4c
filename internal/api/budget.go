package api

import (
	"sync"
	"time"

	"raidrecord/internal/constants"
	"raidrecord/internal/domain"
)

// BudgetTracker mirrors the last rate-limit snapshot the remote system
// returned. The server is the single source of truth for spend: snapshots
// replace the previous state wholesale and are never merged or accumulated
// locally. Before the first query returns rate-limit data the tracker is
// deliberately optimistic.
type BudgetTracker struct {
	mu   sync.RWMutex
	snap *domain.RateLimitSnapshot
}

func NewBudgetTracker() *BudgetTracker {
	return &BudgetTracker{}
}

// UpdateSnapshot replaces the tracked state unconditionally (last write wins).
func (b *BudgetTracker) UpdateSnapshot(snap domain.RateLimitSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = &snap
}

// Snapshot returns the last observed state, if any.
func (b *BudgetTracker) Snapshot() (domain.RateLimitSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.snap == nil {
		return domain.RateLimitSnapshot{}, false
	}
	return *b.snap, true
}

// Remaining returns the points left this hour. ok is false when no snapshot
// has been observed yet, in which case callers must assume sufficiency.
func (b *BudgetTracker) Remaining() (float64, bool) {
	snap, ok := b.Snapshot()
	if !ok {
		return 0, false
	}
	return snap.Remaining(), true
}

// HasEnough reports whether required points can still be afforded. True when
// no snapshot exists yet.
func (b *BudgetTracker) HasEnough(required float64) bool {
	remaining, ok := b.Remaining()
	if !ok {
		return true
	}
	return remaining >= required
}

// ResetETA is how long until the hourly allowance resets, for user-facing
// messaging only, never for control decisions. Falls back to a full hour
// when unknown.
func (b *BudgetTracker) ResetETA() time.Duration {
	snap, ok := b.Snapshot()
	if !ok {
		return constants.ResetETAFallback
	}
	return time.Duration(snap.PointsResetIn) * time.Second
}
