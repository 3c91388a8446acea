package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Cache       CacheConfig       `toml:"cache"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // append logs here instead of stderr
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google GoogleConfig `toml:"google"`
}

// GoogleConfig contains OAuth2 client credentials and the Data API key.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIKey       string `toml:"api_key"`
	AuthURL      string `toml:"auth_url"`  // overrides the Google authorization endpoint
	TokenURL     string `toml:"token_url"` // overrides the Google token endpoint
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DataSource returns the connection string for the configured driver.
func (d DatabaseConfig) DataSource() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	BaseURL           string `toml:"base_url"`
	SessionSecret     string `toml:"session_secret"`
	SecureCookies     bool   `toml:"secure_cookies"`
	PostLoginRedirect string `toml:"post_login_redirect"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UpstreamConfig controls calls to the YouTube Data API.
type UpstreamConfig struct {
	BaseURL           string        `toml:"base_url"`
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	MaxRetries        int           `toml:"max_retries"`
	RetryDelay        time.Duration `toml:"retry_delay"`
	PageSize          int64         `toml:"page_size"`
}

// CacheConfig controls the playlist video cache write-back.
type CacheConfig struct {
	SyncWriteBack    bool          `toml:"sync_write_back"`
	WriteBackTimeout time.Duration `toml:"write_back_timeout"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings required to run the server.
func (c *Config) Validate() error {
	g := c.Credentials.Google
	if g.ClientID == "" || g.ClientSecret == "" {
		return fmt.Errorf("%w: google client_id and client_secret are required", ErrMissingCredentials)
	}
	if g.RedirectURI == "" {
		return fmt.Errorf("%w: google redirect_uri is required", ErrInvalidConfig)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DataSource() == "" {
		return fmt.Errorf("%w: database %s has no data source", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("%w: upstream max_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}
