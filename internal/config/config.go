// Package config resolves the storefront configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	APIBaseURL       string
	APITimeout       time.Duration
	HTTPAddr         string
	HealthGRPCAddr   string
	SessionDBPath    string
	SessionCacheSize int
	RabbitURL        string
	EventsExchange   string
	CORSOrigins      []string
	LogLevel         string
	LogFormat        string
	ServiceEnv       string
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file. The global logger is
// set up from LOG_LEVEL and LOG_FORMAT before anything else is logged.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	var fileErrs []error
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fileErrs = append(fileErrs, fmt.Errorf("%s: %w", f, err))
		}
	}
	SetupLogger(getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "console"))
	for _, err := range fileErrs {
		log.Warn().Err(err).Msg("could not read env file")
	}

	cfg := Config{
		APIBaseURL:       getenv("BOOKSTORE_API_URL", "http://localhost:3000"),
		APITimeout:       getduration("API_TIMEOUT", 5*time.Second),
		HTTPAddr:         getenv("STOREFRONT_HTTP_ADDR", ":8080"),
		HealthGRPCAddr:   getenv("HEALTH_GRPC_ADDR", ":50060"),
		SessionDBPath:    getenv("SESSION_DB_PATH", "./data/storefront.db"),
		SessionCacheSize: getint("SESSION_CACHE_SIZE", 512),
		RabbitURL:        os.Getenv("RABBITMQ_URL"),
		EventsExchange:   getenv("EVENTS_EXCHANGE", "storefront.events"),
		CORSOrigins:      splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "console"),
		ServiceEnv:       getenv("SERVICE_ENV", "dev"),
	}
	log.Debug().
		Str("api", cfg.APIBaseURL).
		Dur("api_timeout", cfg.APITimeout).
		Str("http", cfg.HTTPAddr).
		Str("health", cfg.HealthGRPCAddr).
		Str("db", cfg.SessionDBPath).
		Bool("events", cfg.RabbitURL != "").
		Str("env", cfg.ServiceEnv).
		Msg("config loaded")
	return cfg
}

// logOutput is where SetupLogger writes.
var logOutput io.Writer = os.Stderr

// SetupLogger configures the global zerolog logger.
func SetupLogger(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "json" {
		log.Logger = zerolog.New(logOutput).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logOutput, TimeFormat: time.RFC3339})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		return def
	}
	return n
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
