package radar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidFrame is returned by Frame.Validate for frames that cannot be rendered.
var ErrInvalidFrame = errors.New("invalid radar frame")

// Mode labels whether the data on screen comes from the provider or the synthesizer.
type Mode string

const (
	ModeLive Mode = "LIVE"
	ModeDemo Mode = "DEMO"
)

// ModeFor maps a health signal onto a display mode.
func ModeFor(connected bool) Mode {
	if connected {
		return ModeLive
	}
	return ModeDemo
}

// Bounds is an axis-aligned geographic rectangle in degrees.
// Anti-meridian wraparound is not supported: West must be less than East.
type Bounds struct {
	North float64 `json:"north" validate:"gte=-90,lte=90,gtfield=South"`
	South float64 `json:"south" validate:"gte=-90,lte=90"`
	East  float64 `json:"east" validate:"gte=-180,lte=180,gtfield=West"`
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
}

// Metadata is descriptive only and never drives control decisions.
type Metadata struct {
	DataType              string `json:"dataType"`       // e.g. "RALA"
	UpdateIntervalMinutes int    `json:"updateInterval"` // provider cadence
	Source                string `json:"source"`         // e.g. "MRMS"
	Units                 string `json:"units"`          // e.g. "dBZ"
}

// Frame is one radar snapshot. ImageURL is opaque to this service.
type Frame struct {
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"imageUrl" validate:"required"`
	Bounds    Bounds    `json:"bounds"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Validate reports whether the frame is well formed enough to hand to a renderer.
func (f Frame) Validate() error {
	if f.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidFrame)
	}
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return nil
}

// Batch is an ordered sequence of frames, oldest first, with strictly
// increasing timestamps.
type Batch []Frame

// Clone returns a copy that does not share backing storage with b.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	copy(out, b)
	return out
}

// Latest returns the newest frame of the batch.
func (b Batch) Latest() (Frame, bool) {
	if len(b) == 0 {
		return Frame{}, false
	}
	return b[len(b)-1], true
}

// SortBatch orders frames oldest to newest and drops frames whose timestamp
// repeats an earlier one, so the result is strictly increasing.
func SortBatch(frames []Frame) Batch {
	out := make(Batch, len(frames))
	copy(out, frames)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	n := 0
	for i := range out {
		if n > 0 && out[i].Timestamp.Equal(out[n-1].Timestamp) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// SortTimestamps returns ts ascending with duplicates removed.
func SortTimestamps(ts []time.Time) []time.Time {
	out := make([]time.Time, len(ts))
	copy(out, ts)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	n := 0
	for i := range out {
		if n > 0 && out[i].Equal(out[n-1]) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}
