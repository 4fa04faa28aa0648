// Package config loads service settings: built-in defaults, then an optional
// YAML file, then SATCOMS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SATCOMS_"

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	LogLevel    string            `yaml:"log_level"`
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	TLE         TLEConfig         `yaml:"tle"`
	Propagation PropagationConfig `yaml:"propagation"`
	Stream      StreamConfig      `yaml:"stream"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

type HTTPConfig struct {
	Addr           string  `yaml:"addr"`
	TrustProxy     bool    `yaml:"trust_proxy"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type TLEConfig struct {
	SourceURL    string        `yaml:"source_url"` // fmt template with one %s for the group
	Backend      string        `yaml:"backend"`
	CacheDir     string        `yaml:"cache_dir"`
	MaxFiles     int           `yaml:"max_files"`
	RedisURL     string        `yaml:"redis_url"`
	TTL          time.Duration `yaml:"ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type PropagationConfig struct {
	Workers int `yaml:"workers"`
}

type StreamConfig struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	MaxTotal           int           `yaml:"max_total"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:           ":8080",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		TLE: TLEConfig{
			SourceURL:    tle.DefaultSourceTemplate,
			Backend:      BackendFile,
			CacheDir:     "/tmp/satcoms/tle",
			MaxFiles:     5,
			TTL:          tle.DefaultTTL,
			FetchTimeout: tle.DefaultFetchTimeout,
		},
		Propagation: PropagationConfig{
			Workers: runtime.NumCPU(),
		},
		Stream: StreamConfig{
			MaxConcurrentPerIP: 10,
			MaxTotal:           1000,
			KeepaliveInterval:  30 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "satcoms",
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration. A non-empty path must name a readable YAML
// file; keys it omits keep their defaults. Environment values that fail to
// parse are logged and ignored. The result is validated.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		logger.Info("config file loaded", "path", path)
	}

	e := envReader{logger: logger}
	e.str("LOG_LEVEL", &cfg.LogLevel)

	e.str("HTTP_ADDR", &cfg.HTTP.Addr)
	e.boolean("TRUST_PROXY", &cfg.HTTP.TrustProxy)
	e.float("RATE_LIMIT_RPS", &cfg.HTTP.RateLimitRPS, 0)
	e.integer("RATE_LIMIT_BURST", &cfg.HTTP.RateLimitBurst, 1)

	e.boolean("AUTH_ENABLED", &cfg.Auth.Enabled)
	e.str("AUTH_TOKEN", &cfg.Auth.Token)

	e.str("TLE_SOURCE_URL", &cfg.TLE.SourceURL)
	e.str("TLE_BACKEND", &cfg.TLE.Backend)
	e.str("TLE_CACHE_DIR", &cfg.TLE.CacheDir)
	e.integer("TLE_MAX_FILES", &cfg.TLE.MaxFiles, 1)
	e.str("TLE_REDIS_URL", &cfg.TLE.RedisURL)
	e.duration("TLE_TTL", &cfg.TLE.TTL)
	e.duration("TLE_FETCH_TIMEOUT", &cfg.TLE.FetchTimeout)

	e.integer("PROP_WORKERS", &cfg.Propagation.Workers, 1)

	e.integer("STREAM_MAX_CONCURRENT", &cfg.Stream.MaxConcurrentPerIP, 1)
	e.integer("STREAM_MAX_TOTAL", &cfg.Stream.MaxTotal, 1)
	e.duration("STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepaliveInterval)

	e.boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	e.str("TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	e.str("TRACING_EXPORTER", &cfg.Tracing.Exporter)
	e.str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	e.float("TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio, 0)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New("auth token is required when auth is enabled"))
	}
	switch c.TLE.Backend {
	case BackendFile:
		if c.TLE.CacheDir == "" {
			errs = append(errs, errors.New("tle cache_dir is required for the file backend"))
		}
	case BackendMemory:
	case BackendRedis:
		if c.TLE.RedisURL == "" {
			errs = append(errs, errors.New("tle redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tle backend %q (want file, memory or redis)", c.TLE.Backend))
	}
	if strings.Count(c.TLE.SourceURL, "%s") != 1 {
		errs = append(errs, fmt.Errorf("tle source_url must contain exactly one %%s: %q", c.TLE.SourceURL))
	}
	if c.TLE.TTL <= 0 || c.TLE.FetchTimeout <= 0 {
		errs = append(errs, errors.New("tle ttl and fetch_timeout must be positive"))
	}
	if c.Tracing.Exporter != "stdout" && c.Tracing.Exporter != "otlp" {
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q (want stdout or otlp)", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing sample_ratio must be within [0, 1]"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// envReader overlays SATCOMS_* variables. Invalid values are logged at WARN
// and the previous value is kept.
type envReader struct {
	logger *slog.Logger
}

func (e envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e envReader) invalid(key, v string, keep any) {
	e.logger.Warn("invalid "+EnvPrefix+key+" value, keeping previous", "value", v, "keeping", keep)
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e envReader) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, *dst)
		return
	}
	*dst = b
}

func (e envReader) integer(key string, dst *int, lo int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo {
		e.invalid(key, v, *dst)
		return
	}
	*dst = n
}

func (e envReader) float(key string, dst *float64, lo float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < lo {
		e.invalid(key, v, *dst)
		return
	}
	*dst = f
}

// duration accepts a Go duration ("90s", "2h") or a bare number of seconds.
func (e envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.invalid(key, v, dst.String())
		return
	}
	*dst = d
}
