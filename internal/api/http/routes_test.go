package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-radar/internal/playback"
	"github.com/i474232898/weather-radar/internal/radar"
	"github.com/i474232898/weather-radar/internal/scheduler"
	"github.com/i474232898/weather-radar/internal/scheduler/schedulertest"
	"github.com/i474232898/weather-radar/internal/store"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// offlineTransport fails every call so the gateway serves demo data.
type offlineTransport struct{}

var errOffline = errors.New("provider offline")

func (offlineTransport) Latest(context.Context) (radar.Frame, error) {
	return radar.Frame{}, errOffline
}
func (offlineTransport) FrameAt(context.Context, time.Time) (radar.Frame, error) {
	return radar.Frame{}, errOffline
}
func (offlineTransport) Timestamps(context.Context) ([]time.Time, error) { return nil, errOffline }
func (offlineTransport) Frames(context.Context, int) ([]radar.Frame, error) {
	return nil, errOffline
}
func (offlineTransport) Health(context.Context) error { return errOffline }

func newTestApp(history store.FrameStore) (*fiber.App, *scheduler.RefreshScheduler) {
	now := func() time.Time { return fixedNow }
	gateway := radar.NewGateway(offlineTransport{}, radar.GatewayConfig{
		RequestTimeout: time.Second,
		Now:            now,
	})
	timer := schedulertest.New()
	refresher := scheduler.NewRefreshScheduler(gateway, timer, scheduler.RefreshConfig{
		Period:      time.Minute,
		AutoRefresh: true,
	})

	app := fiber.New()
	RegisterRoutes(app, Deps{
		Gateway:   gateway,
		Refresher: refresher,
		Player:    playback.New(timer, playback.Options{}),
		History:   history,
		Now:       now,
	})
	return app, refresher
}

func do(t *testing.T, app *fiber.App, method, target string, wantStatus int, out any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: unexpected error: %v", method, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d", method, target, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, target, err)
		}
	}
}

func TestRadarStateAndManualRefresh(t *testing.T) {
	app, _ := newTestApp(nil)

	var before stateResponse
	do(t, app, http.MethodGet, "/api/v1/radar/state", http.StatusOK, &before)
	if before.CurrentFrame != nil || !before.Stale || before.Mode != radar.ModeDemo {
		t.Fatalf("unexpected initial state %+v", before)
	}

	var refreshed struct {
		Started bool          `json:"started"`
		State   stateResponse `json:"state"`
	}
	do(t, app, http.MethodPost, "/api/v1/radar/refresh", http.StatusOK, &refreshed)
	if !refreshed.Started {
		t.Fatalf("expected refresh to start")
	}
	st := refreshed.State
	if st.CurrentFrame == nil || st.IsFetching || st.Mode != radar.ModeDemo {
		t.Fatalf("unexpected state after refresh %+v", st)
	}
	if st.Stale || st.Age != "just now" {
		t.Fatalf("expected fresh synthetic frame, got stale=%t age=%q", st.Stale, st.Age)
	}
}

func TestToggleAutoRefresh(t *testing.T) {
	app, refresher := newTestApp(nil)

	var resp struct {
		Enabled bool `json:"autoRefreshEnabled"`
	}
	do(t, app, http.MethodPost, "/api/v1/radar/auto-refresh", http.StatusOK, &resp)
	if resp.Enabled || refresher.State().AutoRefreshEnabled {
		t.Fatalf("expected auto-refresh to be disabled")
	}
	do(t, app, http.MethodPost, "/api/v1/radar/auto-refresh", http.StatusOK, &resp)
	if !resp.Enabled {
		t.Fatalf("expected auto-refresh to be enabled again")
	}
}

func TestFramesEndpoints(t *testing.T) {
	app, _ := newTestApp(nil)

	var frames []radar.Frame
	do(t, app, http.MethodGet, "/api/v1/radar/frames?count=3", http.StatusOK, &frames)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	do(t, app, http.MethodGet, "/api/v1/radar/frames", http.StatusOK, &frames)
	if len(frames) != radar.DefaultFrameCount {
		t.Fatalf("expected %d frames, got %d", radar.DefaultFrameCount, len(frames))
	}

	do(t, app, http.MethodGet, "/api/v1/radar/frames?count=abc", http.StatusBadRequest, nil)
	do(t, app, http.MethodGet, "/api/v1/radar/frames?count=500", http.StatusBadRequest, nil)

	var frame radar.Frame
	do(t, app, http.MethodGet, "/api/v1/radar/frames/1748779200", http.StatusOK, &frame)
	if frame.Bounds != radar.ContinentalBounds {
		t.Fatalf("expected synthetic frame, got %+v", frame)
	}
	do(t, app, http.MethodGet, "/api/v1/radar/frames/yesterday", http.StatusBadRequest, nil)

	var ts []time.Time
	do(t, app, http.MethodGet, "/api/v1/radar/timestamps", http.StatusOK, &ts)
	if len(ts) != radar.SyntheticTimestampCount {
		t.Fatalf("expected %d timestamps, got %d", radar.SyntheticTimestampCount, len(ts))
	}
}

type playbackView struct {
	Cursor    int       `json:"cursor"`
	IsPlaying bool      `json:"isPlaying"`
	Speed     float64   `json:"speedMultiplier"`
	Label     string    `json:"label"`
	Speeds    []float64 `json:"supportedSpeeds"`
}

func TestPlaybackCommands(t *testing.T) {
	app, _ := newTestApp(nil)

	var v playbackView
	do(t, app, http.MethodPost, "/api/v1/playback/load?count=4", http.StatusOK, &v)
	if v.Cursor != 3 || v.Label != "12:00" || len(v.Speeds) != 4 {
		t.Fatalf("unexpected view after load %+v", v)
	}

	do(t, app, http.MethodPost, "/api/v1/playback/step?direction=backward", http.StatusOK, &v)
	if v.Cursor != 2 || v.Label != "11:58" {
		t.Fatalf("expected cursor 2 at 11:58, got %+v", v)
	}
	do(t, app, http.MethodPost, "/api/v1/playback/step", http.StatusOK, &v)
	if v.Cursor != 3 {
		t.Fatalf("expected default step forward to 3, got %d", v.Cursor)
	}
	do(t, app, http.MethodPost, "/api/v1/playback/step?direction=sideways", http.StatusBadRequest, nil)

	do(t, app, http.MethodPost, "/api/v1/playback/seek?index=0", http.StatusOK, &v)
	if v.Cursor != 0 {
		t.Fatalf("expected cursor 0, got %d", v.Cursor)
	}
	do(t, app, http.MethodPost, "/api/v1/playback/seek?index=9", http.StatusUnprocessableEntity, nil)
	do(t, app, http.MethodPost, "/api/v1/playback/seek", http.StatusBadRequest, nil)

	do(t, app, http.MethodPost, "/api/v1/playback/speed?value=2", http.StatusOK, &v)
	if v.Speed != 2 {
		t.Fatalf("expected speed 2, got %v", v.Speed)
	}
	do(t, app, http.MethodPost, "/api/v1/playback/speed?value=3", http.StatusBadRequest, nil)
	do(t, app, http.MethodPost, "/api/v1/playback/speed?value=-1", http.StatusBadRequest, nil)

	do(t, app, http.MethodPost, "/api/v1/playback/toggle", http.StatusOK, &v)
	if !v.IsPlaying {
		t.Fatalf("expected playback to start")
	}
	do(t, app, http.MethodGet, "/api/v1/playback/", http.StatusOK, &v)
	if !v.IsPlaying {
		t.Fatalf("expected playback state to persist")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	noHistory, _ := newTestApp(nil)
	do(t, noHistory, http.MethodGet, "/api/v1/radar/history?from=1748775600&to=1748779200", http.StatusNotFound, nil)

	mem := store.NewMemoryStore(10, 0)
	for _, f := range radar.Synthesize(fixedNow, 3) {
		_ = mem.SaveFrame(context.Background(), f)
	}
	app, _ := newTestApp(mem)

	do(t, app, http.MethodGet, "/api/v1/radar/history?from=1748779200", http.StatusBadRequest, nil)
	// to before from fails validation.
	do(t, app, http.MethodGet, "/api/v1/radar/history?from=1748779200&to=1748775600", http.StatusBadRequest, nil)

	var resp struct {
		Frames []radar.Frame `json:"frames"`
	}
	do(t, app, http.MethodGet, "/api/v1/radar/history?from=1748775600&to=1748779200", http.StatusOK, &resp)
	if len(resp.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(resp.Frames))
	}
	do(t, app, http.MethodGet, "/api/v1/radar/history?from=1748700000&to=1748700060", http.StatusNotFound, nil)
}
