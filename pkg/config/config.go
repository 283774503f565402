package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Public base URL used in email links"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:uniscope.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Crawl CrawlConfig `yaml:"crawl" json:"crawl" jsonschema:"description=Crawl scheduling configuration"`

	API struct {
		BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Storage API base URL the crawler posts to"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Storage API request timeout"`
	} `yaml:"api" json:"api" jsonschema:"description=Storage API client configuration"`

	Email EmailConfig `yaml:"email" json:"email" jsonschema:"description=SMTP configuration for notifications"`
}

// CrawlConfig holds crawl scheduling settings
type CrawlConfig struct {
	Interval     time.Duration `yaml:"interval" json:"interval" jsonschema:"default=1h,description=Interval between crawl cycles"`
	RunTimeout   time.Duration `yaml:"run_timeout" json:"run_timeout" jsonschema:"default=10m,description=Per-run deadline for one source"`
	MaxWorkers   int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=2,description=Maximum sources crawled concurrently"`
	Retries      int           `yaml:"retries" json:"retries" jsonschema:"default=3,description=Retries for a failed run"`
	RetryDelay   time.Duration `yaml:"retry_delay" json:"retry_delay" jsonschema:"default=5m,description=Delay between run retries"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=30s,description=Timeout for one page fetch"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Mozilla/5.0 (compatible; uniscope/1.0),description=User agent for page fetches"`
	EventBuffer  int           `yaml:"event_buffer" json:"event_buffer" jsonschema:"default=256,description=Match event queue size"`
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable email notifications"`
	Host     string        `yaml:"host" json:"host" jsonschema:"description=SMTP server host"`
	Port     int           `yaml:"port" json:"port" jsonschema:"default=587,description=SMTP server port"`
	Username string        `yaml:"username" json:"username" jsonschema:"description=SMTP user (can use environment variable)"`
	Password string        `yaml:"password" json:"password" jsonschema:"description=SMTP password (can use environment variable)"`
	STARTTLS bool          `yaml:"starttls" json:"starttls" jsonschema:"default=true,description=Use STARTTLS"`
	TLS      bool          `yaml:"tls" json:"tls" jsonschema:"default=false,description=Use implicit TLS"`
	From     string        `yaml:"from" json:"from" jsonschema:"description=From address for notification emails"`
	FromName string        `yaml:"from_name" json:"from_name" jsonschema:"default=UniScope 通知系统,description=From display name"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=SMTP connection timeout"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:uniscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for crawl
	if cfg.Crawl.Interval == 0 {
		cfg.Crawl.Interval = time.Hour
	}
	if cfg.Crawl.RunTimeout == 0 {
		cfg.Crawl.RunTimeout = 10 * time.Minute
	}
	if cfg.Crawl.MaxWorkers == 0 {
		cfg.Crawl.MaxWorkers = 2
	}
	if cfg.Crawl.Retries == 0 {
		cfg.Crawl.Retries = 3
	}
	if cfg.Crawl.RetryDelay == 0 {
		cfg.Crawl.RetryDelay = 5 * time.Minute
	}
	if cfg.Crawl.FetchTimeout == 0 {
		cfg.Crawl.FetchTimeout = 30 * time.Second
	}
	if cfg.Crawl.UserAgent == "" {
		cfg.Crawl.UserAgent = "Mozilla/5.0 (compatible; uniscope/1.0)"
	}
	if cfg.Crawl.EventBuffer == 0 {
		cfg.Crawl.EventBuffer = 256
	}

	// set defaults for API client
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}

	// set defaults for email
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "UniScope 通知系统"
	}
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = 30 * time.Second
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate crawl config
	if cfg.Crawl.RunTimeout < time.Second {
		return fmt.Errorf("crawl.run_timeout must be at least 1 second")
	}
	if cfg.Crawl.Retries < 1 {
		return fmt.Errorf("crawl.retries must be at least 1")
	}
	if cfg.Crawl.MaxWorkers < 1 {
		return fmt.Errorf("crawl.max_workers must be at least 1")
	}

	// validate email config
	if cfg.Email.Enabled {
		if cfg.Email.Host == "" {
			return fmt.Errorf("email.host is required when email is enabled")
		}
		if cfg.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetCrawlConfig returns crawl configuration
func (c *Config) GetCrawlConfig() CrawlConfig {
	return c.Crawl
}

// GetEmailConfig returns email configuration
func (c *Config) GetEmailConfig() EmailConfig {
	return c.Email
}

// GetFullConfig returns the full configuration
func (c *Config) GetFullConfig() *Config {
	return c
}
