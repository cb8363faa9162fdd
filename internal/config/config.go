package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the application configuration.
type Config struct {
	// DataDir holds the document file and the sync configuration.
	DataDir string `yaml:"dataDir" json:"dataDir"`

	Server       Server       `yaml:"server" json:"server"`
	LocalProcess LocalProcess `yaml:"localProcess" json:"localProcess"`
	Remote       Remote       `yaml:"remote" json:"remote"`
	Commands     Commands     `yaml:"commands" json:"commands"`
	Logging      Logging      `yaml:"logging" json:"logging"`
	Metrics      Metrics      `yaml:"metrics" json:"metrics"`
	Tracing      Tracing      `yaml:"tracing" json:"tracing"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-" json:"-"`
}

// Server configures the inbound HTTP command API.
type Server struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" json:"allowedOrigins"`
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LocalProcess configures the bridge to the live desktop process.
type LocalProcess struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	BaseURL      string        `yaml:"baseURL" json:"baseURL"`
	ProbeTimeout time.Duration `yaml:"probeTimeout" json:"probeTimeout"`
	CallTimeout  time.Duration `yaml:"callTimeout" json:"callTimeout"`
	HealthTTL    time.Duration `yaml:"healthTTL" json:"healthTTL"`
}

// Remote configures the remote mirror client.
type Remote struct {
	// APIBaseURL overrides the hosted API endpoint. Empty means the public API.
	APIBaseURL         string        `yaml:"apiBaseURL" json:"apiBaseURL"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	FileName           string        `yaml:"fileName" json:"fileName"`
	BreakerMaxFailures uint32        `yaml:"breakerMaxFailures" json:"breakerMaxFailures"`
	BreakerOpenTimeout time.Duration `yaml:"breakerOpenTimeout" json:"breakerOpenTimeout"`
}

// Commands configures the command gateway.
type Commands struct {
	DedupTTL time.Duration `yaml:"dedupTTL" json:"dedupTTL"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
	Output string `yaml:"output" json:"output"` // stdout, stderr or file

	// File output rotation
	FilePath   string `yaml:"filePath" json:"filePath"`
	MaxSize    int    `yaml:"maxSize" json:"maxSize"` // megabytes
	MaxAge     int    `yaml:"maxAge" json:"maxAge"`   // days
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Metrics configures the prometheus collector.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Tracing configures OpenTelemetry.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
	ServiceName string  `yaml:"serviceName" json:"serviceName"`
	SampleRate  float64 `yaml:"sampleRate" json:"sampleRate"`
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "bytepad")
	}
	return ".bytepad"
}

// Default returns a configuration with the built-in defaults.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Server: Server{
			Host:            "127.0.0.1",
			Port:            31338,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  25 * time.Second,
			AllowedOrigins:  []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		LocalProcess: LocalProcess{
			Enabled:      true,
			BaseURL:      "http://127.0.0.1:31337",
			ProbeTimeout: 2 * time.Second,
			CallTimeout:  5 * time.Second,
			HealthTTL:    30 * time.Second,
		},
		Remote: Remote{
			Timeout:            10 * time.Second,
			FileName:           "bytepad-data.json",
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Commands: Commands{
			DedupTTL: 5 * time.Minute,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "json",
			Output:     "stderr",
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 5,
			Compress:   true,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "bytepad",
		},
		Tracing: Tracing{
			ServiceName: "bytepad-backend",
			SampleRate:  1.0,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "dataDir is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.LocalProcess.Enabled {
		if u, err := url.Parse(c.LocalProcess.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("localProcess.baseURL %q is not an absolute URL", c.LocalProcess.BaseURL))
		}
	}
	if c.LocalProcess.ProbeTimeout <= 0 || c.LocalProcess.CallTimeout <= 0 {
		problems = append(problems, "localProcess timeouts must be positive")
	}
	if c.Remote.Timeout <= 0 {
		problems = append(problems, "remote.timeout must be positive")
	}
	if c.Remote.FileName == "" {
		problems = append(problems, "remote.fileName is required")
	}
	if c.Commands.DedupTTL <= 0 {
		problems = append(problems, "commands.dedupTTL must be positive")
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			problems = append(problems, "logging.filePath is required for file output")
		}
	default:
		problems = append(problems, fmt.Sprintf("logging.output %q must be stdout, stderr or file", c.Logging.Output))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		problems = append(problems, "tracing.endpoint is required when tracing is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
