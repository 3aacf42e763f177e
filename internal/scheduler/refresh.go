package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-radar/internal/radar"
)

// DefaultRefreshPeriod is the cadence of automatic refreshes.
const DefaultRefreshPeriod = 120 * time.Second

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("refresh scheduler already started")
	// ErrEmptyFrame is recorded when the gateway hands back a zero frame.
	ErrEmptyFrame = errors.New("gateway returned an empty frame")
	// ErrRefreshPanic wraps a panic recovered during a refresh cycle.
	ErrRefreshPanic = errors.New("refresh cycle panicked")
)

// Gateway is the subset of radar.Gateway the scheduler needs.
type Gateway interface {
	FetchLatest(ctx context.Context) radar.Frame
	CheckHealth(ctx context.Context) bool
}

// BatchSource supplies the animation batch fetched alongside each refresh.
type BatchSource interface {
	FetchFrames(ctx context.Context, count int) radar.Batch
}

// Recorder keeps a history of refreshed frames.
type Recorder interface {
	SaveFrame(ctx context.Context, frame radar.Frame) error
}

// RefreshState is what the presentation layer observes.
type RefreshState struct {
	CurrentFrame       *radar.Frame `json:"currentFrame"`
	IsFetching         bool         `json:"isFetching"`
	IsConnected        bool         `json:"isConnected"`
	LastError          string       `json:"lastError,omitempty"`
	AutoRefreshEnabled bool         `json:"autoRefreshEnabled"`
	LastUpdated        time.Time    `json:"lastUpdated,omitempty"`
}

// RefreshConfig configures a RefreshScheduler.
type RefreshConfig struct {
	Period      time.Duration
	AutoRefresh bool
	// RejectOlder keeps the current frame when a refresh returns an older one.
	RejectOlder bool
	Recorder    Recorder
	// Batches, when set, is asked for BatchSize frames on every cycle.
	Batches   BatchSource
	BatchSize int
}

// RefreshScheduler keeps RefreshState up to date by polling the gateway on a
// fixed period and on demand. At most one fetch runs at a time; IsFetching
// is the guard shared by the timer and ManualRefresh.
type RefreshScheduler struct {
	gateway     Gateway
	timer       Timer
	period      time.Duration
	rejectOlder bool
	recorder    Recorder
	batches     BatchSource
	batchSize   int

	mu        sync.Mutex
	state     RefreshState
	ctx       context.Context
	job       Job
	gen       uint64 // bumped whenever the armed job is replaced or cancelled
	started   bool
	stopped   bool
	listeners []func(RefreshState)
	batchFns  []func(radar.Batch)
}

// NewRefreshScheduler creates a scheduler. Nothing runs until Start.
func NewRefreshScheduler(gateway Gateway, timer Timer, cfg RefreshConfig) *RefreshScheduler {
	period := cfg.Period
	if period <= 0 {
		period = DefaultRefreshPeriod
	}
	return &RefreshScheduler{
		gateway:     gateway,
		timer:       timer,
		period:      period,
		rejectOlder: cfg.RejectOlder,
		recorder:    cfg.Recorder,
		batches:     cfg.Batches,
		batchSize:   cfg.BatchSize,
		ctx:         context.Background(),
		state: RefreshState{
			AutoRefreshEnabled: cfg.AutoRefresh,
		},
	}
}

// OnUpdate registers fn to be called with a snapshot after every committed
// refresh. Listeners run on the refreshing goroutine, outside the lock but
// before the in-flight guard is released, so they never overlap.
func (s *RefreshScheduler) OnUpdate(fn func(RefreshState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnBatch registers fn to receive the batch fetched by each successful
// cycle. It runs under the same guarantees as OnUpdate listeners.
func (s *RefreshScheduler) OnBatch(fn func(radar.Batch)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchFns = append(s.batchFns, fn)
}

// State returns a snapshot of the current refresh state.
func (s *RefreshScheduler) State() RefreshState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start fetches immediately and then, if auto-refresh is on, arms the
// recurring job. ctx is used for every fetch the scheduler starts itself.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx = ctx
	s.mu.Unlock()

	log.Printf("INFO: scheduler: starting radar refresh every %s", s.period)
	s.refresh(ctx, "start")

	s.mu.Lock()
	var old Job
	var err error
	if s.state.AutoRefreshEnabled && !s.stopped {
		old, err = s.armLocked()
	}
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	return err
}

// ManualRefresh runs one refresh cycle now. It reports false without doing
// anything when a fetch is already in flight or the scheduler is stopped.
func (s *RefreshScheduler) ManualRefresh(ctx context.Context) bool {
	return s.refresh(ctx, "manual")
}

// ToggleAutoRefresh flips auto-refresh and returns the new setting. Enabling
// arms a job whose first tick is a full period away; disabling cancels the
// pending job but leaves an in-flight fetch alone.
func (s *RefreshScheduler) ToggleAutoRefresh() bool {
	s.mu.Lock()
	s.state.AutoRefreshEnabled = !s.state.AutoRefreshEnabled
	enabled := s.state.AutoRefreshEnabled

	var old Job
	if enabled && s.started && !s.stopped {
		var err error
		old, err = s.armLocked()
		if err != nil {
			log.Printf("ERROR: scheduler: failed to arm refresh job: %v", err)
			s.state.LastError = err.Error()
		}
	} else if !enabled {
		old = s.disarmLocked()
	}
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	log.Printf("INFO: scheduler: auto-refresh enabled=%t", enabled)
	return enabled
}

// Stop cancels the recurring job. A fetch already in flight finishes but its
// result is dropped.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	old := s.disarmLocked()
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
}

// armLocked replaces the armed job with a fresh one and returns the previous
// handle for the caller to cancel once the lock is released.
func (s *RefreshScheduler) armLocked() (Job, error) {
	old := s.disarmLocked()

	gen := s.gen
	job, err := s.timer.Every(s.period, func() { s.tick(gen) })
	if err != nil {
		return old, err
	}
	s.job = job
	return old, nil
}

func (s *RefreshScheduler) disarmLocked() Job {
	s.gen++
	old := s.job
	s.job = nil
	return old
}

func (s *RefreshScheduler) tick(gen uint64) {
	s.mu.Lock()
	live := gen == s.gen && !s.stopped && s.state.AutoRefreshEnabled
	ctx := s.ctx
	s.mu.Unlock()

	if !live {
		return
	}
	s.refresh(ctx, "timer")
}

func (s *RefreshScheduler) refresh(ctx context.Context, trigger string) bool {
	s.mu.Lock()
	if s.stopped || s.state.IsFetching {
		s.mu.Unlock()
		if trigger != "start" {
			log.Printf("DEBUG: scheduler: %s refresh skipped; fetch already in flight or scheduler stopped", trigger)
		}
		return false
	}
	s.state.IsFetching = true
	s.mu.Unlock()

	res := s.cycle(ctx)
	defer s.release()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Printf("DEBUG: scheduler: discarding %s refresh result after stop", trigger)
		return true
	}
	s.commitLocked(res)
	state := s.snapshotLocked()
	state.IsFetching = false
	listeners := append([]func(RefreshState){}, s.listeners...)
	batchFns := append([]func(radar.Batch){}, s.batchFns...)
	s.mu.Unlock()

	if res.err == nil && len(res.batch) > 0 {
		for _, fn := range batchFns {
			fn(res.batch.Clone())
		}
	}
	for _, fn := range listeners {
		fn(state)
	}
	return true
}

func (s *RefreshScheduler) release() {
	s.mu.Lock()
	s.state.IsFetching = false
	s.mu.Unlock()
}

// cycleResult is what one refresh cycle produced. healthChecked is false
// when the cycle failed before the health probe ran.
type cycleResult struct {
	frame         radar.Frame
	batch         radar.Batch
	connected     bool
	healthChecked bool
	err           error
}

// cycle does the actual fetch. Provider trouble never surfaces here: the
// gateway absorbs it. res.err reports failures of the cycle itself.
func (s *RefreshScheduler) cycle(ctx context.Context) (res cycleResult) {
	defer func() {
		if r := recover(); r != nil {
			res.batch = nil
			res.err = fmt.Errorf("%w: %v", ErrRefreshPanic, r)
		}
	}()

	res.frame = s.gateway.FetchLatest(ctx)
	res.connected = s.gateway.CheckHealth(ctx)
	res.healthChecked = true

	if res.frame.Timestamp.IsZero() {
		res.err = ErrEmptyFrame
		return res
	}
	if s.recorder != nil {
		if err := s.recorder.SaveFrame(ctx, res.frame); err != nil {
			res.err = fmt.Errorf("record frame: %w", err)
			return res
		}
	}
	if s.batches != nil {
		res.batch = s.batches.FetchFrames(ctx, s.batchSize)
	}
	return res
}

func (s *RefreshScheduler) commitLocked(res cycleResult) {
	if res.healthChecked {
		s.state.IsConnected = res.connected
	}
	s.state.LastUpdated = time.Now().UTC()

	if res.err != nil {
		log.Printf("ERROR: scheduler: refresh failed: %v", res.err)
		s.state.LastError = res.err.Error()
	} else {
		s.state.LastError = ""
	}

	frame := res.frame
	if frame.Timestamp.IsZero() {
		return
	}
	if s.rejectOlder && s.state.CurrentFrame != nil && frame.Timestamp.Before(s.state.CurrentFrame.Timestamp) {
		log.Printf("WARN: scheduler: ignoring frame %s older than current %s",
			frame.Timestamp.Format(time.RFC3339), s.state.CurrentFrame.Timestamp.Format(time.RFC3339))
		return
	}
	f := frame
	s.state.CurrentFrame = &f
}

func (s *RefreshScheduler) snapshotLocked() RefreshState {
	st := s.state
	if st.CurrentFrame != nil {
		f := *st.CurrentFrame
		st.CurrentFrame = &f
	}
	return st
}
