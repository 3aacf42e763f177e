package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// ErrInvalidPeriod is returned when a job is armed with a non-positive period.
var ErrInvalidPeriod = errors.New("period must be positive")

// Job is a handle to a recurring callback. Cancel is idempotent.
type Job interface {
	Cancel()
}

// Timer arms recurring callbacks. The first run happens one full period
// after Every returns, never immediately.
type Timer interface {
	Every(period time.Duration, fn func()) (Job, error)
}

// GocronTimer runs jobs on a shared gocron scheduler.
type GocronTimer struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// NewGocronTimer creates and starts the underlying scheduler.
func NewGocronTimer() *GocronTimer {
	s := gocron.NewScheduler(time.UTC)
	// A job whose previous run is still going is skipped rather than stacked.
	s.SingletonModeAll()
	s.StartAsync()
	return &GocronTimer{scheduler: s}
}

// Every schedules fn every period, starting one period from now.
func (t *GocronTimer) Every(period time.Duration, fn func()) (Job, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.scheduler.Every(period).WaitForSchedule().Do(fn)
	if err != nil {
		return nil, err
	}
	return &gocronJob{timer: t, job: job}, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (t *GocronTimer) Stop() {
	if t.scheduler != nil {
		t.scheduler.Stop()
	}
}

type gocronJob struct {
	once  sync.Once
	timer *GocronTimer
	job   *gocron.Job
}

func (j *gocronJob) Cancel() {
	j.once.Do(func() {
		j.timer.mu.Lock()
		defer j.timer.mu.Unlock()
		j.timer.scheduler.RemoveByReference(j.job)
	})
}
