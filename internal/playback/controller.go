// Package playback owns the animation cursor over a batch of radar frames.
package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-radar/internal/radar"
	"github.com/i474232898/weather-radar/internal/scheduler"
)

// DefaultBaseInterval is the frame duration at speed 1.
const DefaultBaseInterval = 500 * time.Millisecond

// LabelLayout formats frame timestamps for the timeline.
const LabelLayout = "15:04"

var (
	// ErrOutOfRange is returned when an index is outside the loaded frames.
	ErrOutOfRange = errors.New("frame index out of range")
	// ErrUnsupportedSpeed is returned by SetSpeed for multipliers not in the configured set.
	ErrUnsupportedSpeed = errors.New("unsupported playback speed")
)

// DefaultSpeeds are the supported speed multipliers.
func DefaultSpeeds() []float64 {
	return []float64{0.5, 1, 1.5, 2}
}

// Options configures a Controller.
type Options struct {
	BaseInterval time.Duration
	Speeds       []float64
	DefaultSpeed float64
}

// State is a snapshot of one animation session.
type State struct {
	SessionID string      `json:"sessionId"`
	Frames    radar.Batch `json:"frames"`
	Cursor    int         `json:"cursor"`
	IsPlaying bool        `json:"isPlaying"`
	Speed     float64     `json:"speedMultiplier"`
}

// Controller moves a cursor over a frame batch, either by explicit commands
// or, while playing, on its own at BaseInterval/Speed. Manual stepping clamps
// at the ends; autonomous advance loops back to the first frame.
type Controller struct {
	timer        scheduler.Timer
	baseInterval time.Duration
	speeds       []float64

	mu    sync.Mutex
	state State
	job   scheduler.Job
	gen   uint64
}

// New creates a Controller with no frames loaded.
func New(timer scheduler.Timer, opts Options) *Controller {
	if opts.BaseInterval <= 0 {
		opts.BaseInterval = DefaultBaseInterval
	}
	if len(opts.Speeds) == 0 {
		opts.Speeds = DefaultSpeeds()
	}
	speed := opts.DefaultSpeed
	if !contains(opts.Speeds, speed) {
		speed = 1
		if !contains(opts.Speeds, speed) {
			speed = opts.Speeds[0]
		}
	}
	return &Controller{
		timer:        timer,
		baseInterval: opts.BaseInterval,
		speeds:       append([]float64(nil), opts.Speeds...),
		state: State{
			SessionID: uuid.NewString(),
			Speed:     speed,
		},
	}
}

// State returns a snapshot. The frames slice is a copy.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Frames = st.Frames.Clone()
	return st
}

// Speeds returns the supported multipliers.
func (c *Controller) Speeds() []float64 {
	return append([]float64(nil), c.speeds...)
}

// Load replaces the frames and starts a new session. A cursor that sat on
// the last frame (or had nothing to sit on) follows the new last frame;
// otherwise it is clamped into range. An empty batch stops playback.
func (c *Controller) Load(batch radar.Batch) {
	c.mu.Lock()
	prevLen := len(c.state.Frames)
	atEnd := prevLen == 0 || c.state.Cursor >= prevLen-1

	c.state.Frames = batch.Clone()
	c.state.SessionID = uuid.NewString()

	var old scheduler.Job
	n := len(c.state.Frames)
	switch {
	case n == 0:
		c.state.Cursor = 0
		c.state.IsPlaying = false
		old = c.disarmLocked()
	case atEnd:
		c.state.Cursor = n - 1
	case c.state.Cursor > n-1:
		c.state.Cursor = n - 1
	case c.state.Cursor < 0:
		c.state.Cursor = 0
	}
	c.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
}

// Seek moves the cursor to index without touching the play state.
func (c *Controller) Seek(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.state.Frames) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, index, len(c.state.Frames))
	}
	c.state.Cursor = index
	return nil
}

// StepForward moves one frame forward, stopping at the last frame.
func (c *Controller) StepForward() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Cursor < len(c.state.Frames)-1 {
		c.state.Cursor++
	}
}

// StepBackward moves one frame back, stopping at the first frame.
func (c *Controller) StepBackward() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Cursor > 0 {
		c.state.Cursor--
	}
}

// TogglePlayPause flips between playing and paused and returns the new
// value. With no frames loaded playback stays off.
func (c *Controller) TogglePlayPause() bool {
	c.mu.Lock()
	var old scheduler.Job
	if len(c.state.Frames) == 0 {
		c.state.IsPlaying = false
		old = c.disarmLocked()
	} else if c.state.IsPlaying {
		c.state.IsPlaying = false
		old = c.disarmLocked()
	} else {
		var err error
		old, err = c.armLocked()
		if err != nil {
			log.Printf("ERROR: playback: failed to arm advance job: %v", err)
		} else {
			c.state.IsPlaying = true
		}
	}
	playing := c.state.IsPlaying
	c.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	return playing
}

// SetSpeed changes the speed multiplier. Only the configured multipliers are
// accepted; anything else fails with ErrUnsupportedSpeed and leaves the
// speed unchanged. A playing animation picks up the new interval at once.
func (c *Controller) SetSpeed(multiplier float64) error {
	if !contains(c.speeds, multiplier) {
		return fmt.Errorf("%w: %gx", ErrUnsupportedSpeed, multiplier)
	}

	c.mu.Lock()
	c.state.Speed = multiplier
	var old scheduler.Job
	var err error
	if c.state.IsPlaying {
		old, err = c.armLocked()
		if err != nil {
			c.state.IsPlaying = false
		}
	}
	c.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	return err
}

// Label formats the timestamp of frame i for display.
func (c *Controller) Label(i int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.state.Frames) {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return c.state.Frames[i].Timestamp.UTC().Format(LabelLayout), nil
}

// Interval is the time between autonomous advances at the current speed.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intervalLocked()
}

// Close stops playback and releases the advance job.
func (c *Controller) Close() {
	c.mu.Lock()
	c.state.IsPlaying = false
	old := c.disarmLocked()
	c.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
}

func (c *Controller) intervalLocked() time.Duration {
	return time.Duration(float64(c.baseInterval) / c.state.Speed)
}

func (c *Controller) armLocked() (scheduler.Job, error) {
	old := c.disarmLocked()

	gen := c.gen
	job, err := c.timer.Every(c.intervalLocked(), func() { c.advance(gen) })
	if err != nil {
		return old, err
	}
	c.job = job
	return old, nil
}

func (c *Controller) disarmLocked() scheduler.Job {
	c.gen++
	old := c.job
	c.job = nil
	return old
}

// advance is the timer callback. A tick that was already on its way when
// playback paused or the job was replaced does nothing.
func (c *Controller) advance(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.state.Frames)
	if gen != c.gen || !c.state.IsPlaying || n == 0 {
		return
	}
	c.state.Cursor = (c.state.Cursor + 1) % n
}

func contains(speeds []float64, v float64) bool {
	for _, s := range speeds {
		if s == v {
			return true
		}
	}
	return false
}
