package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

var validate = validator.New()

// AppConfig is the validated runtime configuration of the service.
type AppConfig struct {
	// ProviderURL is the base URL of the radar backend API.
	ProviderURL string `validate:"required,url"`
	// RequestTimeout bounds every provider call.
	RequestTimeout time.Duration `validate:"gt=0"`
	// ProviderMaxRetries is how many times a failed provider call is retried.
	ProviderMaxRetries int `validate:"gte=0,lte=10"`

	// RefreshPeriod controls how often the latest frame is fetched.
	RefreshPeriod time.Duration `validate:"gte=1s"`
	AutoRefresh   bool
	// RejectOlderFrames keeps the displayed frame when a refresh returns an older one.
	RejectOlderFrames bool

	// Playback.
	DefaultFrameCount int           `validate:"gte=1,lte=120"`
	AnimationInterval time.Duration `validate:"gt=0"`
	SpeedMultipliers  []float64     `validate:"min=1,dive,gt=0"`

	StaleThreshold time.Duration `validate:"gt=0"`

	// Frame history retention.
	StoreMaxHistory int           // max number of frames (0 = unlimited)
	StoreMaxAge     time.Duration // max age of frames (0 = unlimited)
	DatabaseURL     string

	Port string `validate:"required,numeric"`
}

// fileConfig mirrors the optional TOML file. Durations are strings such as "2m".
type fileConfig struct {
	Provider struct {
		URL        string `toml:"url"`
		Timeout    string `toml:"timeout"`
		MaxRetries *int   `toml:"max_retries"`
	} `toml:"provider"`
	Refresh struct {
		Period      string `toml:"period"`
		Auto        *bool  `toml:"auto"`
		RejectOlder *bool  `toml:"reject_older"`
	} `toml:"refresh"`
	Playback struct {
		FrameCount int       `toml:"frame_count"`
		Interval   string    `toml:"interval"`
		Speeds     []float64 `toml:"speeds"`
	} `toml:"playback"`
	Store struct {
		MaxHistory  *int   `toml:"max_history"`
		MaxAge      string `toml:"max_age"`
		DatabaseURL string `toml:"database_url"`
	} `toml:"store"`
	StaleThreshold string `toml:"stale_threshold"`
	Port           string `toml:"port"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		ProviderURL:        "http://localhost:3000/api",
		RequestTimeout:     30 * time.Second,
		ProviderMaxRetries: 2,
		RefreshPeriod:      120 * time.Second,
		AutoRefresh:        true,
		DefaultFrameCount:  10,
		AnimationInterval:  500 * time.Millisecond,
		SpeedMultipliers:   []float64{0.5, 1, 1.5, 2},
		StaleThreshold:     5 * time.Minute,
		StoreMaxHistory:    720, // 24h at the provider's 2-minute cadence
		StoreMaxAge:        24 * time.Hour,
		Port:               "8080",
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (if path is non-empty), then .env and the process environment.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := Default()

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Provider.URL != "" {
		cfg.ProviderURL = fc.Provider.URL
	}
	if fc.Provider.MaxRetries != nil {
		cfg.ProviderMaxRetries = *fc.Provider.MaxRetries
	}
	if fc.Refresh.Auto != nil {
		cfg.AutoRefresh = *fc.Refresh.Auto
	}
	if fc.Refresh.RejectOlder != nil {
		cfg.RejectOlderFrames = *fc.Refresh.RejectOlder
	}
	if fc.Playback.FrameCount != 0 {
		cfg.DefaultFrameCount = fc.Playback.FrameCount
	}
	if len(fc.Playback.Speeds) > 0 {
		cfg.SpeedMultipliers = fc.Playback.Speeds
	}
	if fc.Store.MaxHistory != nil {
		cfg.StoreMaxHistory = *fc.Store.MaxHistory
	}
	if fc.Store.DatabaseURL != "" {
		cfg.DatabaseURL = fc.Store.DatabaseURL
	}
	if fc.Port != "" {
		cfg.Port = fc.Port
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"provider.timeout", fc.Provider.Timeout, &cfg.RequestTimeout},
		{"refresh.period", fc.Refresh.Period, &cfg.RefreshPeriod},
		{"playback.interval", fc.Playback.Interval, &cfg.AnimationInterval},
		{"store.max_age", fc.Store.MaxAge, &cfg.StoreMaxAge},
		{"stale_threshold", fc.StaleThreshold, &cfg.StaleThreshold},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	cfg.ProviderURL = getenvDefault("RADAR_API_URL", cfg.ProviderURL)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.Port = getenvDefault("PORT", cfg.Port)

	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", cfg.ProviderMaxRetries)
	cfg.DefaultFrameCount = getenvInt("DEFAULT_FRAME_COUNT", cfg.DefaultFrameCount)
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", cfg.StoreMaxHistory)

	cfg.AutoRefresh = getenvBool("AUTO_REFRESH", cfg.AutoRefresh)
	cfg.RejectOlderFrames = getenvBool("REJECT_OLDER_FRAMES", cfg.RejectOlderFrames)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"REFRESH_PERIOD", &cfg.RefreshPeriod},
		{"ANIMATION_INTERVAL", &cfg.AnimationInterval},
		{"STALE_THRESHOLD", &cfg.StaleThreshold},
		{"STORE_MAX_AGE", &cfg.StoreMaxAge},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = dur
	}

	if v := os.Getenv("SPEED_MULTIPLIERS"); v != "" {
		speeds, err := parseSpeeds(v)
		if err != nil {
			return err
		}
		cfg.SpeedMultipliers = speeds
	}
	return nil
}

func parseSpeeds(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SPEED_MULTIPLIERS entry %q: %w", part, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
