// Package config loads forum-service settings from the environment with
// defaults and validation.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OTELConfig holds tracing exporter settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WSConfig controls websocket connection behavior.
type WSConfig struct {
	Heartbeat      time.Duration // ping interval; read deadline is twice this
	WriteWait      time.Duration
	MaxFrameBytes  int64
	AllowedOrigins []string
}

// Config holds all configuration values for the service.
type Config struct {
	Port            string
	GinMode         string
	Environment     string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogPretty bool

	DBDriver string // sqlite|postgres
	DBPath   string
	DBDSN    string

	MaxMessageLen  int
	MaxTopicTitle  int
	MaxUsernameLen int

	LoginPath  string
	SignupPath string
	LoginRPS   float64
	LoginBurst int

	StoreWorkers int
	StoreQueue   int

	WS WSConfig

	AMQPURL      string
	AMQPExchange string

	DebugRoutes bool

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		GinMode:         strings.ToLower(getenv("GIN_MODE", "release")),
		Environment:     getenv("ENVIRONMENT", "dev"),
		ShutdownTimeout: getdur("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:   getenv("DB_PATH", "data.db"),
		DBDSN:    getenv("DB_DSN", ""),

		MaxMessageLen:  getint("MAX_MESSAGE_LEN", 2000),
		MaxTopicTitle:  getint("MAX_TOPIC_TITLE", 80),
		MaxUsernameLen: getint("MAX_USERNAME_LEN", 32),

		LoginPath:  normalizePath(getenv("LOGIN_PATH", "/login")),
		SignupPath: normalizePath(getenv("SIGNUP_PATH", "/signup")),
		LoginRPS:   getfloat("LOGIN_RPS", 1),
		LoginBurst: getint("LOGIN_BURST", 5),

		StoreWorkers: getint("STORE_WORKERS", 4),
		StoreQueue:   getint("STORE_QUEUE", 64),

		WS: WSConfig{
			Heartbeat:      getdur("WS_HEARTBEAT", 30*time.Second),
			WriteWait:      getdur("WS_WRITE_WAIT", 10*time.Second),
			MaxFrameBytes:  int64(getint("MAX_FRAME_BYTES", 64<<10)),
			AllowedOrigins: splitCSV(getenv("ALLOWED_ORIGINS", "")),
		},

		AMQPURL:      getenv("AMQP_URL", ""),
		AMQPExchange: getenv("AMQP_EXCHANGE", "forum.events"),

		DebugRoutes: getbool("DEBUG_ROUTES", false),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "forum-service"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (cfg Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DBDSN) == "" {
			return errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if cfg.MaxMessageLen < 1 || cfg.MaxTopicTitle < 1 || cfg.MaxUsernameLen < 1 {
		return errors.New("MAX_MESSAGE_LEN, MAX_TOPIC_TITLE and MAX_USERNAME_LEN must be >= 1")
	}
	if cfg.LoginPath == cfg.SignupPath {
		return errors.New("LOGIN_PATH and SIGNUP_PATH must differ")
	}
	if cfg.LoginRPS <= 0 {
		return errors.New("LOGIN_RPS must be > 0")
	}
	if cfg.LoginBurst < 1 {
		return errors.New("LOGIN_BURST must be >= 1")
	}
	if cfg.StoreWorkers < 1 {
		return errors.New("STORE_WORKERS must be >= 1")
	}
	if cfg.StoreQueue < 0 {
		return errors.New("STORE_QUEUE must be >= 0")
	}
	if cfg.WS.Heartbeat <= 0 || cfg.WS.WriteWait <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("durations must be positive")
	}
	if cfg.WS.MaxFrameBytes <= 0 {
		return errors.New("MAX_FRAME_BYTES must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizePath ensures a single leading '/' and no trailing '/'.
func normalizePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
