package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-radar/internal/playback"
	"github.com/i474232898/weather-radar/internal/radar"
	"github.com/i474232898/weather-radar/internal/scheduler"
	"github.com/i474232898/weather-radar/internal/store"
)

var validate = validator.New()

// Deps are the components the HTTP layer reads from and sends commands to.
type Deps struct {
	Gateway        *radar.Gateway
	Refresher      *scheduler.RefreshScheduler
	Player         *playback.Controller
	History        store.FrameStore
	StaleThreshold time.Duration
	Now            func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.StaleThreshold <= 0 {
		d.StaleThreshold = radar.DefaultStaleThreshold
	}

	v1 := app.Group("/api/v1")
	registerRadarRoutes(v1.Group("/radar"), d)
	registerPlaybackRoutes(v1.Group("/playback"), d)
}

// stateResponse decorates RefreshState with values derived for display.
type stateResponse struct {
	scheduler.RefreshState
	Mode  radar.Mode `json:"mode"`
	Stale bool       `json:"stale"`
	Age   string     `json:"age,omitempty"`
}

func (d Deps) describe(st scheduler.RefreshState) stateResponse {
	resp := stateResponse{
		RefreshState: st,
		Mode:         radar.ModeFor(st.IsConnected),
		Stale:        true,
	}
	if st.CurrentFrame != nil {
		now := d.Now()
		resp.Stale = radar.IsStale(st.CurrentFrame.Timestamp, d.StaleThreshold, now)
		resp.Age = radar.TimeAgo(st.CurrentFrame.Timestamp, now)
	}
	return resp
}

func registerRadarRoutes(r fiber.Router, d Deps) {
	r.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(d.describe(d.Refresher.State()))
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		started := d.Refresher.ManualRefresh(c.UserContext())
		return c.JSON(fiber.Map{
			"started": started,
			"state":   d.describe(d.Refresher.State()),
		})
	})

	r.Post("/auto-refresh", func(c *fiber.Ctx) error {
		enabled := d.Refresher.ToggleAutoRefresh()
		return c.JSON(fiber.Map{"autoRefreshEnabled": enabled})
	})

	r.Get("/latest", func(c *fiber.Ctx) error {
		return c.JSON(d.Gateway.FetchLatest(c.UserContext()))
	})

	r.Get("/frames", func(c *fiber.Ctx) error {
		var q countQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(d.Gateway.FetchFrames(c.UserContext(), q.Count))
	})

	r.Get("/frames/:timestamp", func(c *fiber.Ctx) error {
		ts, err := radar.ParseTimestamp(c.Params("timestamp"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(d.Gateway.FetchAt(c.UserContext(), ts))
	})

	r.Get("/timestamps", func(c *fiber.Ctx) error {
		return c.JSON(d.Gateway.FetchTimestamps(c.UserContext()))
	})

	r.Get("/history", func(c *fiber.Ctx) error {
		if d.History == nil {
			return fiber.NewError(fiber.StatusNotFound, "frame history is not enabled")
		}
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		frames, err := d.History.GetRange(c.UserContext(), req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no radar frames for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch frame history")
		}

		return c.JSON(fiber.Map{
			"from":   req.From,
			"to":     req.To,
			"frames": frames,
		})
	})
}

// playbackResponse adds the derived label of the current frame.
type playbackResponse struct {
	playback.State
	Label  string    `json:"label,omitempty"`
	Speeds []float64 `json:"supportedSpeeds"`
}

func (d Deps) playbackView() playbackResponse {
	st := d.Player.State()
	resp := playbackResponse{State: st, Speeds: d.Player.Speeds()}
	if label, err := d.Player.Label(st.Cursor); err == nil {
		resp.Label = label
	}
	return resp
}

func registerPlaybackRoutes(r fiber.Router, d Deps) {
	r.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(d.playbackView())
	})

	r.Post("/load", func(c *fiber.Ctx) error {
		var q countQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		d.Player.Load(d.Gateway.FetchFrames(c.UserContext(), q.Count))
		return c.JSON(d.playbackView())
	})

	r.Post("/seek", func(c *fiber.Ctx) error {
		var q seekQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := d.Player.Seek(q.Index); err != nil {
			if errors.Is(err, playback.ErrOutOfRange) {
				return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
			}
			return err
		}
		return c.JSON(d.playbackView())
	})

	r.Post("/step", func(c *fiber.Ctx) error {
		q := stepQuery{Direction: c.Query("direction", "forward")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if q.Direction == "backward" {
			d.Player.StepBackward()
		} else {
			d.Player.StepForward()
		}
		return c.JSON(d.playbackView())
	})

	r.Post("/toggle", func(c *fiber.Ctx) error {
		d.Player.TogglePlayPause()
		return c.JSON(d.playbackView())
	})

	r.Post("/speed", func(c *fiber.Ctx) error {
		var q speedQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := d.Player.SetSpeed(q.Value); err != nil {
			if errors.Is(err, playback.ErrUnsupportedSpeed) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return err
		}
		return c.JSON(d.playbackView())
	})
}
