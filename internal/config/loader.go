package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader layers configuration sources. The loading order, lowest priority
// first: defaults in code, bytepad.{yaml,yml,json} in the config directory,
// environment variables.
type Loader struct {
	basePath    string
	sources     []string
	fileLoaders []FileLoader
	getenv      func(string) string
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extensions() []string
}

// NewLoader creates a loader reading files from basePath. An empty basePath
// skips file loading.
func NewLoader(basePath string) *Loader {
	return &Loader{
		basePath:    basePath,
		fileLoaders: []FileLoader{&YAMLLoader{}, &JSONLoader{}},
		getenv:      os.Getenv,
	}
}

// Load builds, overlays and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	l.sources = append(l.sources[:0], "defaults")

	if l.basePath != "" {
		if err := l.loadFile("bytepad", cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	l.loadEnvironmentVariables(cfg)
	l.sources = append(l.sources, "environment")
	cfg.LoadedFrom = append([]string(nil), l.sources...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Sources returns the sources applied by the last Load.
func (l *Loader) Sources() []string {
	return l.sources
}

func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		for _, ext := range loader.Extensions() {
			path := filepath.Join(l.basePath, name+"."+ext)

			file, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}

			err = loader.Load(file, cfg)
			file.Close()
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}

			l.sources = append(l.sources, path)
			return nil
		}
	}
	return os.ErrNotExist
}

// loadEnvironmentVariables overlays BYTEPAD_* environment variables.
func (l *Loader) loadEnvironmentVariables(cfg *Config) {
	if val := l.getenv("BYTEPAD_DATA_DIR"); val != "" {
		cfg.DataDir = val
	}

	if val := l.getenv("BYTEPAD_HTTP_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := l.getenv("BYTEPAD_HTTP_PORT"); val != "" {
		if port := parseInt(val); port > 0 {
			cfg.Server.Port = port
		}
	}

	if val := l.getenv("BYTEPAD_LOCAL_URL"); val != "" {
		cfg.LocalProcess.BaseURL = val
	}
	if val := l.getenv("BYTEPAD_LOCAL_ENABLED"); val != "" {
		cfg.LocalProcess.Enabled = parseBool(val)
	}

	if val := l.getenv("BYTEPAD_REMOTE_API_URL"); val != "" {
		cfg.Remote.APIBaseURL = val
	}

	if val := l.getenv("BYTEPAD_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := l.getenv("BYTEPAD_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = strings.ToLower(val)
	}
	if val := l.getenv("BYTEPAD_LOG_FILE"); val != "" {
		cfg.Logging.Output = "file"
		cfg.Logging.FilePath = val
	}

	if val := l.getenv("BYTEPAD_METRICS_ENABLED"); val != "" {
		cfg.Metrics.Enabled = parseBool(val)
	}
	if val := l.getenv("BYTEPAD_TRACING_ENDPOINT"); val != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = val
	}
}

// ============================================================================
// FILE LOADERS
// ============================================================================

// YAMLLoader loads YAML configuration files.
type YAMLLoader struct{}

// Load decodes YAML into target.
func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Extensions returns the YAML file extensions.
func (y *YAMLLoader) Extensions() []string {
	return []string{"yaml", "yml"}
}

// JSONLoader loads JSON configuration files.
type JSONLoader struct{}

// Load decodes JSON into target.
func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// Extensions returns the JSON file extension.
func (j *JSONLoader) Extensions() []string {
	return []string{"json"}
}

// ============================================================================
// HELPERS
// ============================================================================

func parseInt(s string) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return val
}

func parseBool(s string) bool {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return val
}
