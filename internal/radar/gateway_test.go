package radar

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("connection refused")

// stubTransport answers every call from its fields.
type stubTransport struct {
	latest     Frame
	frames     []Frame
	timestamps []time.Time
	err        error
	panicMsg   string
	block      bool // wait for ctx instead of answering
}

func (s *stubTransport) answer(ctx context.Context) error {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *stubTransport) Latest(ctx context.Context) (Frame, error) {
	if err := s.answer(ctx); err != nil {
		return Frame{}, err
	}
	return s.latest, nil
}

func (s *stubTransport) FrameAt(ctx context.Context, _ time.Time) (Frame, error) {
	return s.Latest(ctx)
}

func (s *stubTransport) Timestamps(ctx context.Context) ([]time.Time, error) {
	if err := s.answer(ctx); err != nil {
		return nil, err
	}
	return s.timestamps, nil
}

func (s *stubTransport) Frames(ctx context.Context, _ int) ([]Frame, error) {
	if err := s.answer(ctx); err != nil {
		return nil, err
	}
	return s.frames, nil
}

func (s *stubTransport) Health(ctx context.Context) error {
	return s.answer(ctx)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGateway(tr Transport) *Gateway {
	return NewGateway(tr, GatewayConfig{
		RequestTimeout: 50 * time.Millisecond,
		Now:            func() time.Time { return fixedNow },
	})
}

func TestFetchLatestReturnsProviderFrameVerbatim(t *testing.T) {
	want := Frame{
		Timestamp: fixedNow.Add(-time.Minute),
		ImageURL:  "https://mrms.example/latest.png",
		Bounds:    Bounds{North: 40, South: 30, East: -90, West: -100},
		Metadata:  &Metadata{DataType: "RALA", UpdateIntervalMinutes: 2, Source: "MRMS", Units: "dBZ"},
	}
	g := newTestGateway(&stubTransport{latest: want})

	got := g.FetchLatest(context.Background())
	if got.ImageURL != want.ImageURL || !got.Timestamp.Equal(want.Timestamp) || got.Bounds != want.Bounds {
		t.Fatalf("expected provider frame %+v, got %+v", want, got)
	}
}

func TestFetchLatestNeverFails(t *testing.T) {
	cases := map[string]*stubTransport{
		"transport error": {err: errDown},
		"timeout":         {block: true},
		"panic":           {panicMsg: "boom"},
		"malformed frame": {latest: Frame{Timestamp: fixedNow, ImageURL: "x", Bounds: Bounds{North: 1, South: 2, East: 3, West: 4}}},
		"empty frame":     {},
	}
	for name, tr := range cases {
		g := newTestGateway(tr)
		got := g.FetchLatest(context.Background())
		if err := got.Validate(); err != nil {
			t.Fatalf("%s: expected a usable frame, got invalid %v", name, err)
		}
		if !got.Timestamp.Equal(fixedNow) {
			t.Fatalf("%s: expected synthetic frame at %v, got %v", name, fixedNow, got.Timestamp)
		}
		if got.Bounds != ContinentalBounds {
			t.Fatalf("%s: expected continental bounds, got %+v", name, got.Bounds)
		}
	}
}

func TestFetchFramesSortsProviderOutput(t *testing.T) {
	reversed := Synthesize(fixedNow, 5)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	g := newTestGateway(&stubTransport{frames: reversed})

	got := g.FetchFrames(context.Background(), 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("frames not ascending at %d: %v then %v", i, got[i-1].Timestamp, got[i].Timestamp)
		}
	}
}

func TestFetchFramesFallsBackOnFailure(t *testing.T) {
	cases := map[string]*stubTransport{
		"transport error": {err: errDown},
		"no frames":       {frames: []Frame{}},
		"one bad frame":   {frames: append(Synthesize(fixedNow, 2), Frame{Timestamp: fixedNow})},
	}
	for name, tr := range cases {
		g := newTestGateway(tr)
		got := g.FetchFrames(context.Background(), 4)
		if len(got) != 4 {
			t.Fatalf("%s: expected 4 synthetic frames, got %d", name, len(got))
		}
		if last, _ := got.Latest(); !last.Timestamp.Equal(fixedNow) {
			t.Fatalf("%s: expected synthetic batch ending now, got %v", name, last.Timestamp)
		}
	}
}

func TestFetchFramesDefaultCount(t *testing.T) {
	g := newTestGateway(&stubTransport{err: errDown})
	if got := g.FetchFrames(context.Background(), 0); len(got) != DefaultFrameCount {
		t.Fatalf("expected %d frames, got %d", DefaultFrameCount, len(got))
	}
}

func TestFetchTimestamps(t *testing.T) {
	provided := []time.Time{fixedNow, fixedNow.Add(-4 * time.Minute), fixedNow.Add(-2 * time.Minute)}
	g := newTestGateway(&stubTransport{timestamps: provided})
	got := g.FetchTimestamps(context.Background())
	if len(got) != 3 || !got[0].Equal(provided[1]) || !got[2].Equal(fixedNow) {
		t.Fatalf("expected sorted provider timestamps, got %v", got)
	}

	g = newTestGateway(&stubTransport{err: errDown})
	got = g.FetchTimestamps(context.Background())
	if len(got) != SyntheticTimestampCount {
		t.Fatalf("expected %d synthetic timestamps, got %d", SyntheticTimestampCount, len(got))
	}
}

func TestFetchAtFallsBack(t *testing.T) {
	g := newTestGateway(&stubTransport{err: errDown})
	got := g.FetchAt(context.Background(), fixedNow.Add(-time.Hour))
	if got.Bounds != ContinentalBounds {
		t.Fatalf("expected synthetic frame, got %+v", got)
	}
}

func TestCheckHealth(t *testing.T) {
	if !newTestGateway(&stubTransport{}).CheckHealth(context.Background()) {
		t.Fatalf("expected healthy provider")
	}
	for name, tr := range map[string]*stubTransport{
		"error":   {err: errDown},
		"timeout": {block: true},
		"panic":   {panicMsg: "boom"},
	} {
		if newTestGateway(tr).CheckHealth(context.Background()) {
			t.Fatalf("%s: expected unhealthy provider", name)
		}
	}
}
