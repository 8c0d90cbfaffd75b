package quota

import (
	"sync"
	"time"
)

// providerQuota tracks one provider's request budget within the current
// calendar-month window.
type providerQuota struct {
	limit       int
	used        int
	windowStart time.Time
}

// Tracker keeps per-provider request counters with lazy calendar-month
// resets. A zero or negative limit means the provider is unmetered.
//
// Reserve is checked before every provider call; exceeding a limit is
// prevented up front, never corrected after the fact. All methods are safe
// for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	providers map[string]*providerQuota
	now       func() time.Time
}

// NewTracker builds a Tracker. The limits map holds the monthly request
// budget per provider id.
func NewTracker(limits map[string]int) *Tracker {
	t := &Tracker{
		providers: make(map[string]*providerQuota, len(limits)),
		now:       time.Now,
	}
	for id, limit := range limits {
		t.providers[id] = &providerQuota{limit: limit}
	}
	return t
}

// SetClock overrides the time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Reserve reports whether the provider may make one more request in the
// current window and, if so, counts it. Unknown and unmetered providers are
// always allowed.
func (t *Tracker) Reserve(providerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.providers[providerID]
	if q == nil || q.limit <= 0 {
		return true
	}

	t.resetIfWindowElapsed(q)
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// Record adjusts the window counter with the provider's own usage report.
// A call that consumed more than the single reserved unit (paginated
// fetches) is counted here; used is the total units the call consumed.
func (t *Tracker) Record(providerID string, used int) {
	if used <= 1 {
		return // the Reserve already counted the single unit
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.providers[providerID]
	if q == nil || q.limit <= 0 {
		return
	}
	t.resetIfWindowElapsed(q)
	q.used += used - 1
}

// Remaining returns the provider's remaining budget in the current window.
// Unmetered providers report -1.
func (t *Tracker) Remaining(providerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.providers[providerID]
	if q == nil || q.limit <= 0 {
		return -1
	}

	t.resetIfWindowElapsed(q)
	remaining := q.limit - q.used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// resetIfWindowElapsed zeroes the counter when the calendar month rolled
// over since the window started. Callers must hold the mutex.
func (t *Tracker) resetIfWindowElapsed(q *providerQuota) {
	now := t.now()
	start := monthStart(now)
	if q.windowStart.Before(start) {
		q.windowStart = start
		q.used = 0
	}
}

// monthStart returns midnight UTC on the first day of ts's month.
func monthStart(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}
