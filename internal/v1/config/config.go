package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration
type Config struct {
	// Chat transport
	BindAddr     string
	RoomsFile    string
	BusCapacity  int
	SessionBuf   int
	WriteTimeout time.Duration

	// Ops HTTP surface
	HTTPAddr       string
	AllowedOrigins string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// Rate Limits
	RateLimitAPI  string
	RateLimitWsIP string

	// Tracing
	OTLPEndpoint string
	OTLPInsecure bool
}

// ValidateEnv validates all environment variables and returns a Config
// object. Returns an error listing every violation if any variable is
// invalid; boot must treat that as fatal.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// BIND_ADDR (defaults to 0.0.0.0:8080)
	cfg.BindAddr = getEnvOrDefault("BIND_ADDR", "0.0.0.0:8080")
	if !isValidHostPort(cfg.BindAddr) {
		errors = append(errors, fmt.Sprintf("BIND_ADDR must be in format 'host:port' (got '%s')", cfg.BindAddr))
	}

	// HTTP_ADDR (defaults to 0.0.0.0:9090)
	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", "0.0.0.0:9090")
	if !isValidHostPort(cfg.HTTPAddr) {
		errors = append(errors, fmt.Sprintf("HTTP_ADDR must be in format 'host:port' (got '%s')", cfg.HTTPAddr))
	}

	// ROOMS_FILE (defaults to ./resources/chat_rooms_metadatas.yaml);
	// existence and content are the seed loader's concern.
	cfg.RoomsFile = getEnvOrDefault("ROOMS_FILE", "./resources/chat_rooms_metadatas.yaml")

	// BUS_CAPACITY (defaults to 128, the per-room broadcast ring size)
	cfg.BusCapacity = 128
	if raw := os.Getenv("BUS_CAPACITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			errors = append(errors, fmt.Sprintf("BUS_CAPACITY must be an integer >= 2 (got '%s')", raw))
		} else {
			cfg.BusCapacity = n
		}
	}

	// SESSION_BUFFER (defaults to 64, the merged outbound queue size)
	cfg.SessionBuf = 64
	if raw := os.Getenv("SESSION_BUFFER"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errors = append(errors, fmt.Sprintf("SESSION_BUFFER must be a positive integer (got '%s')", raw))
		} else {
			cfg.SessionBuf = n
		}
	}

	// WRITE_TIMEOUT (defaults to 10s; a stalled write transitions the
	// session to Closing)
	cfg.WriteTimeout = 10 * time.Second
	if raw := os.Getenv("WRITE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			errors = append(errors, fmt.Sprintf("WRITE_TIMEOUT must be a non-negative duration (got '%s')", raw))
		} else {
			cfg.WriteTimeout = d
		}
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Rate Limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitAPI = getEnvOrDefault("RATE_LIMIT_API", "100-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	// Optional tracing collector; empty disables the tracer provider.
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return false
	}
	return host != ""
}

// logValidatedConfig logs the validated configuration
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"bind_addr", cfg.BindAddr,
		"http_addr", cfg.HTTPAddr,
		"rooms_file", cfg.RoomsFile,
		"bus_capacity", cfg.BusCapacity,
		"session_buffer", cfg.SessionBuf,
		"write_timeout", cfg.WriteTimeout.String(),
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"rate_limit_api", cfg.RateLimitAPI,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
