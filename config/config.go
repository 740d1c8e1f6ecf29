package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Depthflow DepthflowConfig `yaml:"depthflow"`
	Capture   CaptureConfig   `yaml:"capture"`
	Store     StoreConfig     `yaml:"store"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Export    ExportConfig    `yaml:"export"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DepthflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type CaptureConfig struct {
	Exchange       string               `yaml:"exchange"`
	URL            string               `yaml:"url"`
	Limit          int                  `yaml:"limit"`
	MaxWorkers     int                  `yaml:"max_workers"`
	Timeout        time.Duration        `yaml:"timeout"`
	Symbols        []string             `yaml:"symbols"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type StoreConfig struct {
	BaseURI        string               `yaml:"base_uri"`
	AppID          string               `yaml:"app_id"`
	AppKey         string               `yaml:"app_key"`
	Timeout        time.Duration        `yaml:"timeout"`
	PageSize       int                  `yaml:"page_size"`
	Retry          RetryConfig          `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type SweepConfig struct {
	LoginURI      string        `yaml:"login_uri"`
	XSRFURI       string        `yaml:"xsrf_uri"`
	DeleteURI     string        `yaml:"delete_uri"`
	Email         string        `yaml:"email"`
	Password      string        `yaml:"password"`
	RetentionDays int           `yaml:"retention_days"`
	Timeout       time.Duration `yaml:"timeout"`
}

type ExportConfig struct {
	OutputDir   string   `yaml:"output_dir"`
	Compression string   `yaml:"compression"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
	// MetricsRegion is the AWS region for runtime-report metrics. Empty
	// falls back to AWS_REGION.
	MetricsRegion string `yaml:"metrics_region"`
}

// DefaultRetentionDays applies when sweep.retention_days is unset.
const DefaultRetentionDays = 2

func defaults() Config {
	return Config{
		Depthflow: DepthflowConfig{Name: "depthflow", Version: "dev"},
		Capture: CaptureConfig{
			Exchange:   "binance",
			Limit:      5000,
			MaxWorkers: 4,
			Timeout:    10 * time.Second,
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Store: StoreConfig{
			Timeout:  15 * time.Second,
			PageSize: 1000,
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         500 * time.Millisecond,
				MaxDelay:          10 * time.Second,
				BackoffMultiplier: 2,
			},
			RateLimit: RateLimitConfig{RequestsPerSecond: 10, BurstSize: 20},
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Sweep: SweepConfig{
			RetentionDays: DefaultRetentionDays,
			Timeout:       30 * time.Second,
		},
		Export: ExportConfig{
			OutputDir:   "./target",
			Compression: "snappy",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout", MaxAge: 7},
	}
}

// LoadConfig reads a yaml configuration file, layers it over the defaults
// and applies environment overrides for credentials.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the invariants the components rely on at construction.
func (c *Config) Validate() error {
	if c.Capture.MaxWorkers < 1 {
		return fmt.Errorf("capture.max_workers must be at least 1, got %d", c.Capture.MaxWorkers)
	}
	switch c.Capture.Exchange {
	case "binance", "bybit":
	default:
		return fmt.Errorf("capture.exchange must be binance or bybit, got %q", c.Capture.Exchange)
	}
	if c.Store.Retry.MaxAttempts < 1 {
		return fmt.Errorf("store.retry.max_attempts must be at least 1, got %d", c.Store.Retry.MaxAttempts)
	}
	if c.Store.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("store.retry.backoff_multiplier must be at least 1, got %d", c.Store.Retry.BackoffMultiplier)
	}
	if c.Store.PageSize < 1 {
		return fmt.Errorf("store.page_size must be at least 1, got %d", c.Store.PageSize)
	}
	if c.Sweep.RetentionDays < 0 {
		return fmt.Errorf("sweep.retention_days must not be negative, got %d", c.Sweep.RetentionDays)
	}
	if c.Export.S3.Enabled && c.Export.S3.Bucket == "" {
		return fmt.Errorf("export.s3.bucket is required when export.s3.enabled is true")
	}
	if _, err := ParseSymbolSpecs(c.Capture.Symbols); err != nil {
		return err
	}
	return nil
}
