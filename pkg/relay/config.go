package relay

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete relay configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Assistant AssistantConfig `yaml:"assistant"`
	Cache     CacheConfig     `yaml:"cache"`
	Access    AccessConfig    `yaml:"access"`
	Relay     RelayConfig     `yaml:"relay"`
}

// ServerConfig configures the process surface.
type ServerConfig struct {
	// HealthAddress is where liveness/readiness endpoints are served.
	// Empty disables the health server.
	HealthAddress string `yaml:"health_address"`
}

// DatabaseConfig configures PostgreSQL persistence. An empty DSN selects
// in-memory stores and the slog usage recorder.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	Migrate      bool   `yaml:"migrate"`
}

// AssistantConfig configures the AI backend client.
type AssistantConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	AssistantID string        `yaml:"assistant_id"`
	Timeout     time.Duration `yaml:"timeout"`
	Truncation  int           `yaml:"truncation"`
}

// CacheConfig configures the thread cache janitor.
type CacheConfig struct {
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	StaleThreshold  time.Duration `yaml:"stale_threshold"`
}

// AccessConfig configures the role gate.
type AccessConfig struct {
	AllowedRoles []string `yaml:"allowed_roles"`
}

// RelayConfig configures message handling limits.
type RelayConfig struct {
	MessageLimit       int           `yaml:"message_limit"`
	MaxAttachmentBytes int64         `yaml:"max_attachment_bytes"`
	DownloadTimeout    time.Duration `yaml:"download_timeout"`
}

// LoadConfig reads, env-expands, parses, and defaults a yaml config file.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Assistant.APIKey == "" {
		return fmt.Errorf("assistant.api_key is required")
	}
	if c.Assistant.AssistantID == "" {
		return fmt.Errorf("assistant.assistant_id is required")
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Assistant.Timeout == 0 {
		cfg.Assistant.Timeout = 120 * time.Second
	}
	if cfg.Assistant.Truncation == 0 {
		cfg.Assistant.Truncation = 15
	}
	if cfg.Cache.JanitorInterval == 0 {
		cfg.Cache.JanitorInterval = time.Hour
	}
	if cfg.Cache.StaleThreshold == 0 {
		cfg.Cache.StaleThreshold = 24 * time.Hour
	}
	if cfg.Relay.MessageLimit == 0 {
		cfg.Relay.MessageLimit = 2000
	}
	if cfg.Relay.MaxAttachmentBytes == 0 {
		cfg.Relay.MaxAttachmentBytes = defaultMaxAttachmentBytes
	}
	if cfg.Relay.DownloadTimeout == 0 {
		cfg.Relay.DownloadTimeout = defaultDownloadTimeout
	}
}
