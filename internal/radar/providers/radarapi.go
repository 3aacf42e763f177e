package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-radar/internal/radar"
)

var (
	// ErrProviderFailure is returned when the provider answers with success=false
	// or without a data field.
	ErrProviderFailure = errors.New("radar provider reported failure")
	// ErrMalformedPayload is returned when the response body cannot be decoded.
	ErrMalformedPayload = errors.New("malformed radar provider payload")
)

// envelope is the provider's response wrapper.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// RadarAPIConfig configures a RadarAPITransport.
type RadarAPIConfig struct {
	BaseURL string
	Timeout time.Duration
	Backoff BackoffConfig
}

// RadarAPITransport implements radar.Transport against the radar backend's
// REST API (/radar/latest, /radar/frames, ... and /health).
type RadarAPITransport struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewRadarAPITransport builds a transport. A nil client gets one whose
// timeout is cfg.Timeout.
func NewRadarAPITransport(client *http.Client, cfg RadarAPIConfig) *RadarAPITransport {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = radar.DefaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	backoff := cfg.Backoff
	if backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 500 * time.Millisecond
	}
	if backoff.MaxRetries < 0 {
		backoff.MaxRetries = 0
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "radarapi",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &RadarAPITransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: cb,
	}
}

// Latest fetches GET /radar/latest.
func (t *RadarAPITransport) Latest(ctx context.Context) (radar.Frame, error) {
	var frame radar.Frame
	if err := t.getData(ctx, "/radar/latest", nil, &frame); err != nil {
		return radar.Frame{}, fmt.Errorf("fetch latest frame: %w", err)
	}
	return frame, nil
}

// FrameAt fetches GET /radar/timestamp/{ts}.
func (t *RadarAPITransport) FrameAt(ctx context.Context, ts time.Time) (radar.Frame, error) {
	var frame radar.Frame
	path := "/radar/timestamp/" + url.PathEscape(ts.UTC().Format(time.RFC3339))
	if err := t.getData(ctx, path, nil, &frame); err != nil {
		return radar.Frame{}, fmt.Errorf("fetch frame by timestamp: %w", err)
	}
	return frame, nil
}

// Timestamps fetches GET /radar/timestamps.
func (t *RadarAPITransport) Timestamps(ctx context.Context) ([]time.Time, error) {
	var raw []string
	if err := t.getData(ctx, "/radar/timestamps", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch timestamps: %w", err)
	}

	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedPayload, s, err)
		}
		out = append(out, ts.UTC())
	}
	return out, nil
}

// Frames fetches GET /radar/frames?count=N.
func (t *RadarAPITransport) Frames(ctx context.Context, count int) ([]radar.Frame, error) {
	values := url.Values{}
	values.Set("count", strconv.Itoa(count))

	var frames []radar.Frame
	if err := t.getData(ctx, "/radar/frames", values, &frames); err != nil {
		return nil, fmt.Errorf("fetch frames: %w", err)
	}
	return frames, nil
}

// Health probes GET /health once, without retries. Only a 200 counts.
func (t *RadarAPITransport) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := t.httpCfg.Client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}
	return nil
}

func (t *RadarAPITransport) getData(ctx context.Context, path string, query url.Values, out any) error {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := t.baseURL + path
		if len(query) > 0 {
			u = fmt.Sprintf("%s?%s", u, query.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, t.httpCfg, t.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		msg := env.Error
		if msg == "" {
			msg = "no data"
		}
		return fmt.Errorf("%w: %s", ErrProviderFailure, msg)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
