// Package config loads the lexivec configuration from per-environment YAML
// files with ${VAR} environment expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the lexivec API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AuthConfig holds API authentication settings. An empty key list disables
// authentication.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds backing store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds per-index ingestion settings. The three field-count
// limits apply to semi-structured indexes and are read once at pipeline
// construction.
type IndexConfig struct {
	MaxLexicalFieldCount     int `yaml:"max_lexical_field_count"`
	MaxTensorFieldCount      int `yaml:"max_tensor_field_count"`
	MaxStringArrayFieldCount int `yaml:"max_string_array_field_count"`
	FilterStringMaxLength    int `yaml:"filter_string_max_length"`
	SchemaLockTimeoutSec     int `yaml:"schema_lock_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	MaxChunkChars int    `yaml:"max_chunk_chars"`
}

// CapacityConfig is the immutable snapshot of the field-count limits handed
// to a pipeline at construction.
type CapacityConfig struct {
	MaxLexicalFieldCount     int
	MaxTensorFieldCount      int
	MaxStringArrayFieldCount int
}

// Environment variable knobs named in capacity errors.
const (
	EnvMaxLexicalFieldCount     = "LEXIVEC_MAX_LEXICAL_FIELD_COUNT"
	EnvMaxTensorFieldCount      = "LEXIVEC_MAX_TENSOR_FIELD_COUNT"
	EnvMaxStringArrayFieldCount = "LEXIVEC_MAX_STRING_ARRAY_FIELD_COUNT"
)

// Capacity resolves the field-count limits into an immutable CapacityConfig.
func (c *Config) Capacity() CapacityConfig {
	return CapacityConfig{
		MaxLexicalFieldCount:     c.Index.MaxLexicalFieldCount,
		MaxTensorFieldCount:      c.Index.MaxTensorFieldCount,
		MaxStringArrayFieldCount: c.Index.MaxStringArrayFieldCount,
	}
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.MaxLexicalFieldCount <= 0 {
		c.Index.MaxLexicalFieldCount = 100
	}
	if c.Index.MaxTensorFieldCount <= 0 {
		c.Index.MaxTensorFieldCount = 100
	}
	if c.Index.MaxStringArrayFieldCount <= 0 {
		c.Index.MaxStringArrayFieldCount = 100
	}
	if c.Index.FilterStringMaxLength <= 0 {
		c.Index.FilterStringMaxLength = 50
	}
	if c.Index.SchemaLockTimeoutSec <= 0 {
		c.Index.SchemaLockTimeoutSec = 5
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "lexivec:"
	}
	if c.Embedding.MaxChunkChars <= 0 {
		c.Embedding.MaxChunkChars = 600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
