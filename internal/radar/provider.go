package radar

import (
	"context"
	"time"
)

// Transport abstracts the remote radar provider. Every call returns either a
// value or an error; the Gateway decides what an error means for callers.
type Transport interface {
	Latest(ctx context.Context) (Frame, error)
	FrameAt(ctx context.Context, ts time.Time) (Frame, error)
	Timestamps(ctx context.Context) ([]time.Time, error)
	Frames(ctx context.Context, count int) ([]Frame, error)
	Health(ctx context.Context) error
}
