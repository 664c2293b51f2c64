package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings is returned by SettingsStore.Save when validation fails.
var ErrInvalidSettings = errors.New("invalid settings")

// GlobalProxy is the proxy applied to environments that have none of their own.
type GlobalProxy struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// Settings are the user-editable preferences persisted between runs.
type Settings struct {
	DataPath    string      `yaml:"data_path" json:"data_path"`
	GlobalProxy GlobalProxy `yaml:"global_proxy" json:"global_proxy"`
	StartupURL  string      `yaml:"startup_url,omitempty" json:"startup_url,omitempty"`
	ChromePath  string      `yaml:"chrome_path,omitempty" json:"chrome_path,omitempty"`
}

// EffectiveGlobalProxy returns the global proxy address if it is enabled.
func (s Settings) EffectiveGlobalProxy() string {
	if s.GlobalProxy.Enabled {
		return strings.TrimSpace(s.GlobalProxy.Address)
	}
	return ""
}

// Validate checks the settings without touching the filesystem.
func (s Settings) Validate() error {
	if s.DataPath == "" {
		return fmt.Errorf("%w: data path is required", ErrInvalidSettings)
	}
	if !filepath.IsAbs(s.DataPath) {
		return fmt.Errorf("%w: data path %q is not absolute", ErrInvalidSettings, s.DataPath)
	}
	if s.GlobalProxy.Enabled && strings.TrimSpace(s.GlobalProxy.Address) == "" {
		return fmt.Errorf("%w: global proxy is enabled without an address", ErrInvalidSettings)
	}
	if s.StartupURL != "" {
		u, err := url.Parse(s.StartupURL)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%w: startup url %q is not absolute", ErrInvalidSettings, s.StartupURL)
		}
	}
	return nil
}

// SettingsStore persists Settings as YAML.
type SettingsStore struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewSettingsStore loads settings from path. A missing file yields defaults
// rooted at defaultDataPath.
func NewSettingsStore(path, defaultDataPath string) (*SettingsStore, error) {
	s := &SettingsStore{
		path:     path,
		settings: Settings{DataPath: defaultDataPath},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &s.settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.settings.DataPath == "" {
		s.settings.DataPath = defaultDataPath
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Path returns the settings file location.
func (s *SettingsStore) Path() string {
	return s.path
}

// Save validates the settings, ensures the data path exists and is writable,
// and writes the file atomically.
func (s *SettingsStore) Save(settings Settings) error {
	settings.DataPath = filepath.Clean(settings.DataPath)
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := checkWritable(settings.DataPath); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeYAML(s.path, settings); err != nil {
		return err
	}
	s.settings = settings
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("data path %q cannot be created: %w", dir, err)
	}
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("data path %q is not writable: %w", dir, err)
	}
	return os.Remove(probe)
}

func writeYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp settings file: %w", err)
	}
	return nil
}
