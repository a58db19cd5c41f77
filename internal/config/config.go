// internal/config/config.go
//
// This package handles configuration and the .greenlight directory structure.
// Every project that runs greenlight gets a .greenlight/ folder holding the
// config file, logs and the assessment journal.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".greenlight"

	BackendHTTP   = "http"
	BackendScript = "script"

	defaultEndpoint   = "https://api.openai.com/v1/chat/completions"
	defaultModel      = "gpt-4o-mini"
	defaultAPIKeyEnv  = "GREENLIGHT_API_KEY"
	defaultBridgeHost = "127.0.0.1"
	defaultBridgePort = 8766
)

const defaultProjectConfigYAML = `# greenlight project configuration
version: 1

# Where stage prompts are answered. backend: http talks to an OpenAI-compatible
# chat completions endpoint; backend: script evaluates a local Go file.
oracle:
  backend: http
  endpoint: https://api.openai.com/v1/chat/completions
  model: gpt-4o-mini
  api_key_env: GREENLIGHT_API_KEY
  timeout: 30s
  max_retries: 2
  # script: examples/scoring-oracle/main.go

# Quiet period after the last slider edit before results are refreshed.
pipeline:
  debounce: 800ms

# Local HTTP bridge exposing state, edits and events.
bridge:
  enabled: false
  host: 127.0.0.1
  port: 8766

logging:
  level: info    # debug | info | warn | error
  format: text   # text | json
`

// Duration is a time.Duration that reads "800ms"-style strings from YAML.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	value := strings.TrimSpace(node.Value)
	if value == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// OracleConfig selects and tunes the oracle back-end.
type OracleConfig struct {
	Backend    string   `yaml:"backend"`
	Endpoint   string   `yaml:"endpoint,omitempty"`
	Model      string   `yaml:"model,omitempty"`
	APIKeyEnv  string   `yaml:"api_key_env,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	MaxRetries *int     `yaml:"max_retries,omitempty"`
	Script     string   `yaml:"script,omitempty"`
}

// PipelineConfig tunes the orchestrator and staleness controller.
type PipelineConfig struct {
	Debounce Duration `yaml:"debounce,omitempty"`
}

// BridgeConfig configures the HTTP state bridge.
type BridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ProjectConfig models .greenlight/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Config holds the runtime configuration for greenlight.
type Config struct {
	// ProjectDir is the directory where the user ran `greenlight` from
	ProjectDir string

	// StateDir is ProjectDir/.greenlight
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .greenlight directory structure in the given project
// directory and writes the default config if none exists.
//
// Structure created:
// .greenlight/
// ├── config.yaml
// └── logs/       <- greenlight.log and journey.log
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(filepath.Join(root, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads .greenlight/config.yaml (defaults when missing) and applies
// environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogPath returns the structured log file used while the TUI owns the terminal.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "greenlight.log")
}

// JournalPath returns the human-readable assessment journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// APIKey resolves the oracle API key from the configured environment variable.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.Project.Oracle.APIKeyEnv))
}

// Debounce returns the staleness delay.
func (c *Config) Debounce() time.Duration {
	return c.Project.Pipeline.Debounce.Std()
}

// Retries returns the configured retry budget for transport failures.
func (c *Config) Retries() int {
	if c.Project.Oracle.MaxRetries == nil {
		return 0
	}
	return *c.Project.Oracle.MaxRetries
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Oracle.Backend == "" {
		pc.Oracle.Backend = BackendHTTP
	}
	if pc.Oracle.Endpoint == "" {
		pc.Oracle.Endpoint = defaultEndpoint
	}
	if pc.Oracle.Model == "" {
		pc.Oracle.Model = defaultModel
	}
	if pc.Oracle.APIKeyEnv == "" {
		pc.Oracle.APIKeyEnv = defaultAPIKeyEnv
	}
	if pc.Oracle.Timeout <= 0 {
		pc.Oracle.Timeout = Duration(30 * time.Second)
	}
	if pc.Oracle.MaxRetries == nil {
		retries := 2
		pc.Oracle.MaxRetries = &retries
	}
	if pc.Pipeline.Debounce <= 0 {
		pc.Pipeline.Debounce = Duration(800 * time.Millisecond)
	}
	if pc.Bridge.Host == "" {
		pc.Bridge.Host = defaultBridgeHost
	}
	if pc.Bridge.Port == 0 {
		pc.Bridge.Port = defaultBridgePort
	}
	if pc.Logging.Level == "" {
		pc.Logging.Level = "info"
	}
	if pc.Logging.Format == "" {
		pc.Logging.Format = "text"
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Oracle.Backend = strings.ToLower(strings.TrimSpace(pc.Oracle.Backend))
	pc.Oracle.Endpoint = strings.TrimSpace(pc.Oracle.Endpoint)
	pc.Oracle.Model = strings.TrimSpace(pc.Oracle.Model)
	pc.Oracle.APIKeyEnv = strings.TrimSpace(pc.Oracle.APIKeyEnv)
	pc.Oracle.Script = resolvePath(base, pc.Oracle.Script)
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
	pc.Logging.Format = strings.ToLower(strings.TrimSpace(pc.Logging.Format))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Oracle.Backend {
	case BackendHTTP:
		if pc.Oracle.Endpoint == "" {
			return fmt.Errorf("oracle.endpoint is required for the http backend")
		}
	case BackendScript:
		if pc.Oracle.Script == "" {
			return fmt.Errorf("oracle.script is required for the script backend")
		}
	default:
		return fmt.Errorf("oracle.backend must be 'http' or 'script'")
	}
	if pc.Oracle.MaxRetries != nil && *pc.Oracle.MaxRetries < 0 {
		return fmt.Errorf("oracle.max_retries must be >= 0")
	}
	if pc.Bridge.Port <= 0 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535")
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch pc.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	return nil
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("GREENLIGHT_ORACLE_ENDPOINT")); value != "" {
		pc.Oracle.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("GREENLIGHT_ORACLE_MODEL")); value != "" {
		pc.Oracle.Model = value
	}
	if value := strings.TrimSpace(os.Getenv("GREENLIGHT_BRIDGE_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			pc.Bridge.Enabled = enabled
		}
	}
	if value := strings.TrimSpace(os.Getenv("GREENLIGHT_BRIDGE_HOST")); value != "" {
		pc.Bridge.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("GREENLIGHT_BRIDGE_PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil && port > 0 && port <= 65535 {
			pc.Bridge.Port = port
		}
	}
	if value := strings.TrimSpace(os.Getenv("GREENLIGHT_LOG_LEVEL")); value != "" {
		pc.Logging.Level = strings.ToLower(value)
	}
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
