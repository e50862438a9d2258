package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skobkin/nputop-web/internal/units"
)

// Config represents runtime configuration sourced from environment variables.
type Config struct {
	ListenAddr       string
	RefreshInterval  time.Duration
	RescanInterval   time.Duration
	AllowedOrigins   []string
	DefaultTab       string
	EnablePrometheus bool
	EnablePprof      bool
	LogLevel         slog.Level
	SysfsRoot        string
	ReplayFile       string
	Locale           LocaleConfig
	WS               WebsocketConfig
	Charts           ChartsConfig
	Ingest           IngestConfig
}

// LocaleConfig selects the display language and units.
type LocaleConfig struct {
	Locale          string
	CatalogPath     string
	TemperatureUnit units.TemperatureUnit
}

// WebsocketConfig captures tunables for WebSocket handling.
type WebsocketConfig struct {
	MaxClients   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// ChartsConfig controls the per-tab usage and memory history.
type ChartsConfig struct {
	Enable    bool
	MaxPoints int
}

// IngestConfig contains settings for the snapshot ingest endpoint.
type IngestConfig struct {
	TokenSecret  string
	MaxBodyBytes int64
	StaleAfter   time.Duration
}

// Load parses configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       ":8080",
		RefreshInterval:  2 * time.Second,
		RescanInterval:   0,
		AllowedOrigins:   []string{"*"},
		DefaultTab:       "auto",
		EnablePrometheus: false,
		EnablePprof:      false,
		LogLevel:         slog.LevelInfo,
		SysfsRoot:        "/sys",
		Locale: LocaleConfig{
			Locale:          "auto",
			TemperatureUnit: units.Celsius,
		},
		WS: WebsocketConfig{
			MaxClients:   1024,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  30 * time.Second,
		},
		Charts: ChartsConfig{
			Enable:    true,
			MaxPoints: 300,
		},
		Ingest: IngestConfig{
			MaxBodyBytes: 1 << 20,
			StaleAfter:   30 * time.Second,
		},
	}

	if value := strings.TrimSpace(os.Getenv("APP_LISTEN_ADDR")); value != "" {
		cfg.ListenAddr = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_REFRESH_INTERVAL")); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_REFRESH_INTERVAL: %w", err)
		}
		if duration <= 0 {
			return Config{}, fmt.Errorf("APP_REFRESH_INTERVAL must be > 0")
		}
		cfg.RefreshInterval = duration
	}

	if value := strings.TrimSpace(os.Getenv("APP_RESCAN_INTERVAL")); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_RESCAN_INTERVAL: %w", err)
		}
		if duration < 0 {
			return Config{}, fmt.Errorf("APP_RESCAN_INTERVAL must be >= 0")
		}
		cfg.RescanInterval = duration
	}

	if value := strings.TrimSpace(os.Getenv("APP_ALLOWED_ORIGINS")); value != "" {
		origins := splitAndTrim(value, ",")
		if len(origins) == 0 {
			return Config{}, fmt.Errorf("APP_ALLOWED_ORIGINS must not be empty")
		}
		cfg.AllowedOrigins = origins
	}

	if value := strings.TrimSpace(os.Getenv("APP_DEFAULT_TAB")); value != "" {
		cfg.DefaultTab = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_ENABLE_PROMETHEUS")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_ENABLE_PROMETHEUS: %w", err)
		}
		cfg.EnablePrometheus = enabled
	}

	if value := strings.TrimSpace(os.Getenv("APP_ENABLE_PPROF")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_ENABLE_PPROF: %w", err)
		}
		cfg.EnablePprof = enabled
	}

	if value := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); value != "" {
		level, err := parseLogLevel(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if value := strings.TrimSpace(os.Getenv("APP_SYSFS_ROOT")); value != "" {
		cfg.SysfsRoot = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_REPLAY_FILE")); value != "" {
		cfg.ReplayFile = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_LOCALE")); value != "" {
		cfg.Locale.Locale = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_LOCALE_CATALOG")); value != "" {
		cfg.Locale.CatalogPath = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_TEMPERATURE_UNIT")); value != "" {
		unit, err := units.ParseTemperatureUnit(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_TEMPERATURE_UNIT: %w", err)
		}
		cfg.Locale.TemperatureUnit = unit
	}

	if value := strings.TrimSpace(os.Getenv("APP_WS_MAX_CLIENTS")); value != "" {
		maxClients, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_WS_MAX_CLIENTS: %w", err)
		}
		if maxClients <= 0 {
			return Config{}, fmt.Errorf("APP_WS_MAX_CLIENTS must be > 0")
		}
		cfg.WS.MaxClients = maxClients
	}

	if value := strings.TrimSpace(os.Getenv("APP_WS_WRITE_TIMEOUT")); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_WS_WRITE_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("APP_WS_WRITE_TIMEOUT must be > 0")
		}
		cfg.WS.WriteTimeout = timeout
	}

	if value := strings.TrimSpace(os.Getenv("APP_WS_READ_TIMEOUT")); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_WS_READ_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("APP_WS_READ_TIMEOUT must be > 0")
		}
		cfg.WS.ReadTimeout = timeout
	}

	if value := strings.TrimSpace(os.Getenv("APP_CHARTS_ENABLE")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_CHARTS_ENABLE: %w", err)
		}
		cfg.Charts.Enable = enabled
	}

	if value := strings.TrimSpace(os.Getenv("APP_CHARTS_MAX_POINTS")); value != "" {
		points, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_CHARTS_MAX_POINTS: %w", err)
		}
		if points <= 0 {
			return Config{}, fmt.Errorf("APP_CHARTS_MAX_POINTS must be > 0")
		}
		cfg.Charts.MaxPoints = points
	}

	if value := strings.TrimSpace(os.Getenv("APP_INGEST_TOKEN_SECRET")); value != "" {
		cfg.Ingest.TokenSecret = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_INGEST_MAX_BODY_BYTES")); value != "" {
		limit, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_INGEST_MAX_BODY_BYTES: %w", err)
		}
		if limit <= 0 {
			return Config{}, fmt.Errorf("APP_INGEST_MAX_BODY_BYTES must be > 0")
		}
		cfg.Ingest.MaxBodyBytes = limit
	}

	if value := strings.TrimSpace(os.Getenv("APP_INGEST_STALE_AFTER")); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_INGEST_STALE_AFTER: %w", err)
		}
		if duration < 0 {
			return Config{}, fmt.Errorf("APP_INGEST_STALE_AFTER must be >= 0")
		}
		cfg.Ingest.StaleAfter = duration
	}

	return cfg, nil
}

// ChartPoints returns the series capacity, or zero when charts are disabled.
func (c Config) ChartPoints() int {
	if !c.Charts.Enable {
		return 0
	}
	return c.Charts.MaxPoints
}

func splitAndTrim(value, sep string) []string {
	raw := strings.Split(value, sep)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
