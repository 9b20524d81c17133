package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EnvTVDBAPIKey overrides the stored TVDB API key when set. It is the one
// required secret: without a key every metadata-dependent operation is
// disabled.
const EnvTVDBAPIKey = "TVDB_API_KEY"

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TVDBSettings configures the upstream metadata provider.
type TVDBSettings struct {
	APIKey string `json:"apiKey"`
	// PageSize is the provider's full-page episode count, used by the
	// short-page end-of-data heuristic.
	PageSize int `json:"pageSize"`
}

// RefreshSettings configures the scheduled refresh loop.
type RefreshSettings struct {
	IntervalHours   int `json:"intervalHours"`
	MaxEpisodePages int `json:"maxEpisodePages"`
	// ManualCooldownMinutes is the per-user cooldown enforced on the
	// manual refresh endpoint.
	ManualCooldownMinutes int `json:"manualCooldownMinutes"`
}

// Settings is the persisted application configuration.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	TVDB    TVDBSettings    `json:"tvdb"`
	Refresh RefreshSettings `json:"refresh"`
}

func defaults() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8484},
		TVDB:   TVDBSettings{PageSize: 50},
		Refresh: RefreshSettings{
			IntervalHours:         12,
			MaxEpisodePages:       20,
			ManualCooldownMinutes: 15,
		},
	}
}

// Manager loads and saves settings from a JSON file on disk.
type Manager struct {
	mu   sync.RWMutex
	path string
}

// NewManager creates a settings manager for the given file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads settings from disk, returning defaults when no file exists.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := defaults()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("decode settings: %w", err)
	}

	if settings.TVDB.PageSize <= 0 {
		settings.TVDB.PageSize = 50
	}
	if settings.Refresh.IntervalHours <= 0 {
		settings.Refresh.IntervalHours = 12
	}
	if settings.Refresh.MaxEpisodePages <= 0 {
		settings.Refresh.MaxEpisodePages = 20
	}
	if settings.Refresh.ManualCooldownMinutes <= 0 {
		settings.Refresh.ManualCooldownMinutes = 15
	}
	return settings, nil
}

// Save writes settings to disk via a temp file rename.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(settings); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close settings temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

// TVDBAPIKey returns the upstream API key, preferring the environment over
// the stored settings. Empty means "not configured".
func (m *Manager) TVDBAPIKey() string {
	if key := strings.TrimSpace(os.Getenv(EnvTVDBAPIKey)); key != "" {
		return key
	}
	settings, err := m.Load()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(settings.TVDB.APIKey)
}
