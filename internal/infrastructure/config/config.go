package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Analysis AnalysisConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// AnalysisConfig holds the document analysis provider settings
type AnalysisConfig struct {
	Endpoint string
	APIKey   string
	// Locale is the OCR language hint forwarded to the provider
	Locale       string
	Timeout      time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	PollInterval time.Duration
}

// PipelineConfig holds the document pipeline tunables
type PipelineConfig struct {
	Concurrency             int
	DocumentTimeout         time.Duration
	ClassificationThreshold float64
	ReviewThreshold         float64
	ArithmeticTolerance     string // decimal string, e.g. "0.01"
	ConfidencePenalty       float64
	DefaultCurrency         string
	BulkSize                int
}

// StorageConfig holds object-store settings for s3:// document locators
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LEDGERSCAN_ prefix (e.g., LEDGERSCAN_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("LEDGERSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Enabled:  v.GetBool("redis.enabled"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Analysis: AnalysisConfig{
			Endpoint:     v.GetString("analysis.endpoint"),
			APIKey:       v.GetString("analysis.api_key"),
			Locale:       v.GetString("analysis.locale"),
			Timeout:      v.GetDuration("analysis.timeout"),
			MaxRetries:   v.GetInt("analysis.max_retries"),
			BackoffBase:  v.GetDuration("analysis.backoff_base"),
			BackoffCap:   v.GetDuration("analysis.backoff_cap"),
			PollInterval: v.GetDuration("analysis.poll_interval"),
		},
		Pipeline: PipelineConfig{
			Concurrency:             v.GetInt("pipeline.concurrency"),
			DocumentTimeout:         v.GetDuration("pipeline.document_timeout"),
			ClassificationThreshold: v.GetFloat64("pipeline.classification_threshold"),
			ReviewThreshold:         v.GetFloat64("pipeline.review_threshold"),
			ArithmeticTolerance:     v.GetString("pipeline.arithmetic_tolerance"),
			ConfidencePenalty:       v.GetFloat64("pipeline.confidence_penalty"),
			DefaultCurrency:         v.GetString("pipeline.default_currency"),
			BulkSize:                v.GetInt("pipeline.bulk_size"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledgerscan-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ledgerscan"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Batch processing responses wait on the provider; keep this above
		// the per-document timeout.
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.Analysis.Locale == "" {
		cfg.Analysis.Locale = "he-IL"
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 90 * time.Second
	}
	if cfg.Analysis.MaxRetries == 0 {
		cfg.Analysis.MaxRetries = 3
	}
	if cfg.Analysis.BackoffBase == 0 {
		cfg.Analysis.BackoffBase = 500 * time.Millisecond
	}
	if cfg.Analysis.BackoffCap == 0 {
		cfg.Analysis.BackoffCap = 8 * time.Second
	}
	if cfg.Analysis.PollInterval == 0 {
		cfg.Analysis.PollInterval = 2 * time.Second
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Pipeline.DocumentTimeout == 0 {
		cfg.Pipeline.DocumentTimeout = 3 * time.Minute
	}
	if cfg.Pipeline.ClassificationThreshold == 0 {
		cfg.Pipeline.ClassificationThreshold = 0.5
	}
	if cfg.Pipeline.ReviewThreshold == 0 {
		cfg.Pipeline.ReviewThreshold = 0.70
	}
	if cfg.Pipeline.ArithmeticTolerance == "" {
		cfg.Pipeline.ArithmeticTolerance = "0.01"
	}
	if cfg.Pipeline.ConfidencePenalty == 0 {
		cfg.Pipeline.ConfidencePenalty = 0.15
	}
	if cfg.Pipeline.DefaultCurrency == "" {
		cfg.Pipeline.DefaultCurrency = "ILS"
	}
	if cfg.Pipeline.BulkSize == 0 {
		cfg.Pipeline.BulkSize = 25
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "il-central-1"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.ClassificationThreshold < 0 || c.Pipeline.ClassificationThreshold > 1 {
		return fmt.Errorf("pipeline.classification_threshold must be between 0.0 and 1.0, got %f", c.Pipeline.ClassificationThreshold)
	}
	if c.Pipeline.ReviewThreshold < 0 || c.Pipeline.ReviewThreshold > 1 {
		return fmt.Errorf("pipeline.review_threshold must be between 0.0 and 1.0, got %f", c.Pipeline.ReviewThreshold)
	}
	if len(c.Pipeline.DefaultCurrency) != 3 {
		return fmt.Errorf("pipeline.default_currency must be a 3-letter ISO code, got %q", c.Pipeline.DefaultCurrency)
	}
	if c.Analysis.MaxRetries < 0 {
		return fmt.Errorf("analysis.max_retries cannot be negative")
	}
	if c.Analysis.BackoffBase > c.Analysis.BackoffCap {
		return fmt.Errorf("analysis.backoff_base (%s) cannot exceed analysis.backoff_cap (%s)",
			c.Analysis.BackoffBase, c.Analysis.BackoffCap)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Analysis.Endpoint == "" {
			return fmt.Errorf("analysis.endpoint is required in production")
		}
		if c.Analysis.APIKey == "" {
			return fmt.Errorf("analysis.api_key is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
