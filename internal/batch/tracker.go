package batch

import (
	"sync"
	"time"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// Tracker keeps live batch results queryable while fan-out is in flight and
// after completion. Counters mutate only during the batch's execution
// window; once complete the snapshot is frozen.
type Tracker struct {
	mu      sync.RWMutex
	batches map[string]*domain.BatchResult
}

func NewTracker() *Tracker {
	return &Tracker{batches: make(map[string]*domain.BatchResult)}
}

func (t *Tracker) begin(batchID, tenantID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches[batchID] = &domain.BatchResult{
		BatchID:      batchID,
		TenantID:     tenantID,
		TotalTargets: total,
		StartedAt:    time.Now().UTC(),
	}
}

func (t *Tracker) created(batchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.batches[batchID]; ok {
		r.CreatedCount++
	}
}

func (t *Tracker) failed(batchID, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.batches[batchID]; ok {
		r.FailedCount++
		r.Errors = append(r.Errors, errMsg)
	}
}

func (t *Tracker) complete(batchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.batches[batchID]; ok {
		now := time.Now().UTC()
		r.CompletedAt = &now
	}
}

// Progress returns a point-in-time copy of a batch result. The second return
// is false for unknown batch IDs.
func (t *Tracker) Progress(batchID string) (domain.BatchResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.batches[batchID]
	if !ok {
		return domain.BatchResult{}, false
	}
	snapshot := *r
	snapshot.Errors = append([]string(nil), r.Errors...)
	return snapshot, true
}
