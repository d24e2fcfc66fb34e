package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// Backends
	APIURL string
	AIURL  string

	// HTTPTimeout bounds each request. Zero leaves it to the transport.
	HTTPTimeout time.Duration

	// StateFile persists the token and chat session id.
	StateFile string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables. A .env file in the
// working directory is read first; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIURL: getEnv("WIKIDESK_API_URL", "http://localhost:8000"),
		AIURL:  getEnv("WIKIDESK_AI_URL", "http://localhost:8001"),

		HTTPTimeout: parseDuration(getEnv("WIKIDESK_HTTP_TIMEOUT", "0")),

		StateFile: getEnv("WIKIDESK_STATE_FILE", defaultStateFile()),

		LogFile:  getEnv("WIKIDESK_LOG_FILE", filepath.Join(os.TempDir(), "wikidesk.log")),
		LogLevel: parseLogLevel(getEnv("WIKIDESK_LOG_LEVEL", "WARN")),
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "wikidesk", "state.yaml")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
