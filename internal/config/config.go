// Package config provides configuration for the chromenv daemon.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds process-level configuration read from the environment.
// User-editable preferences live in Settings instead.
type Config struct {
	// Control API
	ListenAddr   string
	ControlToken string // Optional bearer token for the control API
	CORSOrigins  []string

	// Storage
	DataDir      string
	DBPath       string
	SettingsPath string

	// Browser
	ChromePath        string // Overrides Settings.ChromePath when set
	DebugPortStart    int
	DebugPortAttempts int
	TrashRetention    time.Duration

	// Health monitoring
	PollInterval         time.Duration
	ProtocolConnectDelay time.Duration
	ProtocolTimeout      time.Duration
	ReconnectAttempts    int
	ReconnectDelay       time.Duration
	ProcessTimeout       time.Duration // Bound on OS process listing and termination

	// Logging
	LogFiltersPath string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() *Config {
	dataDir := getEnv("CHROMENV_DATA_DIR", defaultDataDir())

	return &Config{
		ListenAddr:   getEnv("CHROMENV_LISTEN", "127.0.0.1:7420"),
		ControlToken: getEnv("CONTROL_TOKEN", ""),
		CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"http://localhost:*", "app://*"}),

		DataDir:      dataDir,
		DBPath:       getEnv("CHROMENV_DB_PATH", filepath.Join(dataDir, "environments.db")),
		SettingsPath: getEnv("CHROMENV_SETTINGS_PATH", filepath.Join(dataDir, "settings.yaml")),

		ChromePath:        getEnv("CHROME_PATH", ""),
		DebugPortStart:    getEnvInt("DEBUG_PORT_START", 9222),
		DebugPortAttempts: getEnvInt("DEBUG_PORT_ATTEMPTS", 100),
		TrashRetention:    getEnvDuration("TRASH_RETENTION", 30*24*time.Hour),

		PollInterval:         getEnvDuration("POLL_INTERVAL", 30*time.Second),
		ProtocolConnectDelay: getEnvDuration("PROTOCOL_CONNECT_DELAY", 1500*time.Millisecond),
		ProtocolTimeout:      getEnvDuration("PROTOCOL_TIMEOUT", 3*time.Second),
		ReconnectAttempts:    getEnvInt("RECONNECT_ATTEMPTS", 3),
		ReconnectDelay:       getEnvDuration("RECONNECT_DELAY", 2*time.Second),
		ProcessTimeout:       getEnvDuration("PROCESS_TIMEOUT", 10*time.Second),

		LogFiltersPath: getEnv("LOG_FILTERS_PATH", ""),
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "chromenv")
	}
	return "chromenv-data"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
