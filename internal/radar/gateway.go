package radar

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultFrameCount is the batch size used when callers do not ask for one.
const DefaultFrameCount = 10

// DefaultRequestTimeout bounds every transport call.
const DefaultRequestTimeout = 30 * time.Second

// GatewayConfig tunes a Gateway.
type GatewayConfig struct {
	RequestTimeout    time.Duration
	DefaultFrameCount int
	// Now is the clock used for synthesized data. Defaults to time.Now.
	Now func() time.Time
}

// Gateway is the only boundary between the service and the provider.
// Its read operations are total: a transport failure of any kind is logged
// and answered with synthesized data instead of an error. CheckHealth is
// the only signal that tells live data from demo data.
type Gateway struct {
	transport    Transport
	timeout      time.Duration
	defaultCount int
	now          func() time.Time
}

// NewGateway creates a Gateway over transport.
func NewGateway(transport Transport, cfg GatewayConfig) *Gateway {
	g := &Gateway{
		transport:    transport,
		timeout:      cfg.RequestTimeout,
		defaultCount: cfg.DefaultFrameCount,
		now:          cfg.Now,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultRequestTimeout
	}
	if g.defaultCount <= 0 {
		g.defaultCount = DefaultFrameCount
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// FetchLatest returns the provider's newest frame, or a synthesized one.
func (g *Gateway) FetchLatest(ctx context.Context) Frame {
	frame, err := g.latest(ctx)
	if err != nil {
		log.Printf("WARN: radar latest frame unavailable, using synthetic frame: %v", err)
		return Synthesize(g.now(), 1)[0]
	}
	return frame
}

func (g *Gateway) latest(ctx context.Context) (frame Frame, err error) {
	defer recoverTransport(&err)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	frame, err = g.transport.Latest(ctx)
	if err != nil {
		return Frame{}, err
	}
	return frame, frame.Validate()
}

// FetchAt returns the provider frame for ts, or a synthesized one.
func (g *Gateway) FetchAt(ctx context.Context, ts time.Time) Frame {
	frame, err := g.frameAt(ctx, ts)
	if err != nil {
		log.Printf("WARN: radar frame %s unavailable, using synthetic frame: %v", ts.Format(time.RFC3339), err)
		return Synthesize(g.now(), 1)[0]
	}
	return frame
}

func (g *Gateway) frameAt(ctx context.Context, ts time.Time) (frame Frame, err error) {
	defer recoverTransport(&err)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	frame, err = g.transport.FrameAt(ctx, ts)
	if err != nil {
		return Frame{}, err
	}
	return frame, frame.Validate()
}

// FetchFrames returns up to count frames ordered oldest to newest. A count
// <= 0 uses the configured default. Provider ordering is not trusted.
func (g *Gateway) FetchFrames(ctx context.Context, count int) Batch {
	if count <= 0 {
		count = g.defaultCount
	}
	batch, err := g.frames(ctx, count)
	if err != nil {
		log.Printf("WARN: radar frames unavailable, using %d synthetic frames: %v", count, err)
		return Synthesize(g.now(), count)
	}
	return batch
}

func (g *Gateway) frames(ctx context.Context, count int) (batch Batch, err error) {
	defer recoverTransport(&err)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	frames, err := g.transport.Frames(ctx, count)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: provider returned no frames", ErrInvalidFrame)
	}
	for i, f := range frames {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return SortBatch(frames), nil
}

// FetchTimestamps lists available snapshot times oldest to newest, or a
// synthetic 2-minute cadence ending now.
func (g *Gateway) FetchTimestamps(ctx context.Context) []time.Time {
	ts, err := g.timestamps(ctx)
	if err != nil {
		log.Printf("WARN: radar timestamps unavailable, using synthetic timestamps: %v", err)
		return SyntheticTimestamps(g.now(), SyntheticTimestampCount)
	}
	return ts
}

func (g *Gateway) timestamps(ctx context.Context) (out []time.Time, err error) {
	defer recoverTransport(&err)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ts, err := g.transport.Timestamps(ctx)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("provider returned no timestamps")
	}
	for _, t := range ts {
		if t.IsZero() {
			return nil, fmt.Errorf("provider returned a zero timestamp")
		}
	}
	return SortTimestamps(ts), nil
}

// CheckHealth reports whether the provider answered its liveness probe.
func (g *Gateway) CheckHealth(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: radar health probe panicked: %v", r)
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.transport.Health(ctx); err != nil {
		log.Printf("DEBUG: radar provider health check failed: %v", err)
		return false
	}
	return true
}

// recoverTransport turns a panicking transport into an ordinary failure.
func recoverTransport(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("transport panic: %v", r)
	}
}
