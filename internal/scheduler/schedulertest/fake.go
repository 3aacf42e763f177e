// Package schedulertest provides a simulated-time scheduler.Timer for tests.
package schedulertest

import (
	"sync"
	"time"

	"github.com/i474232898/weather-radar/internal/scheduler"
)

// FakeTimer fires jobs only when Advance moves its clock past their due
// time. Callbacks run synchronously on the goroutine calling Advance.
type FakeTimer struct {
	mu   sync.Mutex
	now  time.Duration
	jobs []*fakeJob
}

type fakeJob struct {
	timer     *FakeTimer
	period    time.Duration
	next      time.Duration
	fn        func()
	cancelled bool
}

// New returns a FakeTimer at simulated time zero.
func New() *FakeTimer {
	return &FakeTimer{}
}

// Every implements scheduler.Timer.
func (t *FakeTimer) Every(period time.Duration, fn func()) (scheduler.Job, error) {
	if period <= 0 {
		return nil, scheduler.ErrInvalidPeriod
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	j := &fakeJob{timer: t, period: period, next: t.now + period, fn: fn}
	t.jobs = append(t.jobs, j)
	return j, nil
}

func (j *fakeJob) Cancel() {
	j.timer.mu.Lock()
	defer j.timer.mu.Unlock()
	j.cancelled = true
}

// Advance moves simulated time forward by d, running every job tick that
// falls due in order. Jobs armed or cancelled by a callback take effect
// immediately.
func (t *FakeTimer) Advance(d time.Duration) {
	t.mu.Lock()
	target := t.now + d
	t.mu.Unlock()

	for {
		t.mu.Lock()
		var due *fakeJob
		for _, j := range t.jobs {
			if j.cancelled || j.next > target {
				continue
			}
			if due == nil || j.next < due.next {
				due = j
			}
		}
		if due == nil {
			t.now = target
			t.mu.Unlock()
			return
		}
		t.now = due.next
		due.next += due.period
		fn := due.fn
		t.mu.Unlock()

		fn()
	}
}

// Active reports how many jobs are armed and not cancelled.
func (t *FakeTimer) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, j := range t.jobs {
		if !j.cancelled {
			n++
		}
	}
	return n
}

// Armed reports the total number of jobs ever armed.
func (t *FakeTimer) Armed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}
