package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "bytepad-backend/internal/errors"
)

// SyncConfigFileName is the sync configuration file inside the data directory.
const SyncConfigFileName = "sync-config.json"

// MinSyncInterval is the shortest auto-sync interval in minutes.
const MinSyncInterval = 1

// SyncConfig holds the remote mirror settings.
type SyncConfig struct {
	Token           string `json:"-"`
	GistID          string `json:"gistId"`
	AutoSync        bool   `json:"autoSync"`
	IntervalMinutes int    `json:"intervalMinutes"`
	LastSync        string `json:"lastSync,omitempty"`
}

// onDiskSyncConfig is the persisted form. The token is always written as null.
type onDiskSyncConfig struct {
	Token           *string `json:"token"`
	GistID          string  `json:"gistId"`
	AutoSync        bool    `json:"autoSync"`
	IntervalMinutes int     `json:"intervalMinutes"`
	LastSync        string  `json:"lastSync,omitempty"`
}

// Interval returns the auto-sync period, clamped to at least one minute.
func (c SyncConfig) Interval() time.Duration {
	minutes := c.IntervalMinutes
	if minutes < MinSyncInterval {
		minutes = MinSyncInterval
	}
	return time.Duration(minutes) * time.Minute
}

// HasCredentials reports whether both a token and a remote id are set.
func (c SyncConfig) HasCredentials() bool {
	return c.Token != "" && c.GistID != ""
}

// AutoSyncReady reports whether the scheduler may run.
func (c SyncConfig) AutoSyncReady() bool {
	return c.AutoSync && c.HasCredentials()
}

// SyncConfigStore keeps the sync configuration in memory and on disk.
// BYTEPAD_SYNC_TOKEN and BYTEPAD_GIST_ID take precedence over stored values.
type SyncConfigStore struct {
	path   string
	getenv func(string) string

	mu      sync.RWMutex
	current SyncConfig
}

// NewSyncConfigStore creates a store for <dataDir>/sync-config.json.
func NewSyncConfigStore(dataDir string) *SyncConfigStore {
	return &SyncConfigStore{
		path:    filepath.Join(dataDir, SyncConfigFileName),
		getenv:  os.Getenv,
		current: SyncConfig{IntervalMinutes: 5},
	}
}

// Path returns the config file path.
func (s *SyncConfigStore) Path() string {
	return s.path
}

// Load reads the file and applies environment overrides. A missing file
// leaves the defaults. The in-memory token survives reloads because the file
// never carries it.
func (s *SyncConfigStore) Load() (SyncConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := SyncConfig{IntervalMinutes: 5, Token: s.current.Token}

	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var disk onDiskSyncConfig
		if err := json.Unmarshal(raw, &disk); err != nil {
			return s.current, apperrors.Validation(apperrors.CodeConfigInvalid, "Sync configuration is not valid JSON").
				WithResource(s.path).
				WithCause(err).
				Build()
		}
		next.GistID = disk.GistID
		next.AutoSync = disk.AutoSync
		next.IntervalMinutes = disk.IntervalMinutes
		next.LastSync = disk.LastSync
	case os.IsNotExist(err):
	default:
		return s.current, apperrors.Internal(apperrors.CodeStoreReadFailed, "Failed to read sync configuration").
			WithResource(s.path).
			WithCause(err).
			Build()
	}

	if val := s.getenv("BYTEPAD_SYNC_TOKEN"); val != "" {
		next.Token = val
	}
	if val := s.getenv("BYTEPAD_GIST_ID"); val != "" {
		next.GistID = val
	}
	if next.IntervalMinutes < MinSyncInterval {
		next.IntervalMinutes = MinSyncInterval
	}

	s.current = next
	return next, nil
}

// Get returns the current configuration.
func (s *SyncConfigStore) Get() SyncConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save stores cfg in memory and writes it to disk without the token.
func (s *SyncConfigStore) Save(cfg SyncConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

// Update applies fn to a copy of the current configuration and saves it.
func (s *SyncConfigStore) Update(fn func(cfg *SyncConfig)) (SyncConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	fn(&next)
	if err := s.saveLocked(next); err != nil {
		return SyncConfig{}, err
	}
	return s.current, nil
}

func (s *SyncConfigStore) saveLocked(cfg SyncConfig) error {
	if cfg.IntervalMinutes < MinSyncInterval {
		cfg.IntervalMinutes = MinSyncInterval
	}

	raw, err := json.MarshalIndent(onDiskSyncConfig{
		Token:           nil,
		GistID:          cfg.GistID,
		AutoSync:        cfg.AutoSync,
		IntervalMinutes: cfg.IntervalMinutes,
		LastSync:        cfg.LastSync,
	}, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "encode sync configuration")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.Internal(apperrors.CodeStoreWriteFailed, "Failed to write sync configuration").
			WithResource(s.path).
			WithCause(err).
			Build()
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return apperrors.Internal(apperrors.CodeStoreWriteFailed, "Failed to write sync configuration").
			WithResource(s.path).
			WithCause(err).
			Build()
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Internal(apperrors.CodeStoreWriteFailed, "Failed to write sync configuration").
			WithResource(s.path).
			WithCause(err).
			Build()
	}

	s.current = cfg
	return nil
}
