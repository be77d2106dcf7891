package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port        string
	EventID     string
	CourtID     string
	LogLevel    string
	LogFormat   string
	AdminToken  string
	CORSOrigins []string
	Feed        FeedConfig
	Engine      EngineConfig
	Stream      StreamConfig
	Metrics     MetricsConfig
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Port:        envOrDefault(envPort, defaultPort),
		EventID:     envOrDefault(envEventID, defaultEventID),
		CourtID:     envOrDefault(envCourtID, defaultCourtID),
		LogLevel:    envOrDefault(envLogLevel, defaultLogLevel),
		LogFormat:   envOrDefault(envLogFormat, defaultLogFormat),
		AdminToken:  envOrDefault(envAdminToken, ""),
		CORSOrigins: listEnvOrDefault(envCORSOrigins, defaultCORSOrigins),
		Feed:        loadFeed(),
		Engine:      loadEngine(),
		Stream:      loadStream(),
		Metrics:     loadMetrics(),
	}
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding values already present in the environment.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
