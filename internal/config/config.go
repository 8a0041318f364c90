package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"notely/internal/constants"
)

const (
	NotifierSMTP  = "smtp"
	NotifierKafka = "kafka"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Storage    StorageConfig    `yaml:"storage"`
	Search     SearchConfig     `yaml:"search"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type ServerConfig struct {
	Name           string   `yaml:"name"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	ResetCodeTTL time.Duration `yaml:"reset_code_ttl"`
	BcryptCost   int           `yaml:"bcrypt_cost"`
}

type NotifierConfig struct {
	Driver string      `yaml:"driver"`
	SMTP   SMTPConfig  `yaml:"smtp"`
	Kafka  KafkaConfig `yaml:"kafka"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type StorageConfig struct {
	Driver         string   `yaml:"driver"`
	BlobRoot       string   `yaml:"blob_root"`
	UploadMaxBytes int64    `yaml:"upload_max_bytes"`
	S3             S3Config `yaml:"s3"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

type SearchConfig struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// Enabled reports whether an Elasticsearch cluster is configured.
func (c ElasticsearchConfig) Enabled() bool {
	return len(c.Addresses) > 0
}

type SummarizerConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	Requests     int           `yaml:"requests"`
	Window       time.Duration `yaml:"window"`
	AuthRequests int           `yaml:"auth_requests"`
	AuthWindow   time.Duration `yaml:"auth_window"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML, then applies env overrides, validation
// and defaults in that order.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NOTELY_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("NOTELY_SMTP_PASSWORD"); v != "" {
		c.Notifier.SMTP.Password = v
	}
	if v := os.Getenv("NOTELY_GEMINI_API_KEY"); v != "" {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv("NOTELY_S3_SECRET_KEY"); v != "" {
		c.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("NOTELY_ES_PASSWORD"); v != "" {
		c.Search.Elasticsearch.Password = v
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}

	switch strings.ToLower(c.Notifier.Driver) {
	case "", NotifierSMTP:
		if c.Notifier.SMTP.Host == "" {
			return fmt.Errorf("notifier.smtp.host is required")
		}
		if c.Notifier.SMTP.Port == 0 {
			return fmt.Errorf("notifier.smtp.port is required")
		}
		if c.Notifier.SMTP.From == "" {
			return fmt.Errorf("notifier.smtp.from is required")
		}
	case NotifierKafka:
		if len(c.Notifier.Kafka.Brokers) == 0 {
			return fmt.Errorf("notifier.kafka.brokers is required")
		}
	default:
		return fmt.Errorf("notifier.driver must be %q or %q", NotifierSMTP, NotifierKafka)
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", StorageLocal, StorageS3)
	}

	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must be >= 0")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.Name == "" {
		c.Server.Name = "Notely"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/notely.db"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Auth.ResetCodeTTL == 0 {
		c.Auth.ResetCodeTTL = constants.ResetCodeTTL
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	c.Notifier.Driver = strings.ToLower(c.Notifier.Driver)
	if c.Notifier.Driver == "" {
		c.Notifier.Driver = NotifierSMTP
	}
	if c.Notifier.Kafka.Topic == "" {
		c.Notifier.Kafka.Topic = "notely.auth"
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageLocal
	}
	if c.Storage.BlobRoot == "" {
		c.Storage.BlobRoot = "./data/blobs"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = constants.ProfilePictureMaxBytes
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "us-east-1"
	}
	if c.Search.Elasticsearch.Index == "" {
		c.Search.Elasticsearch.Index = "notes"
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = 30 * time.Second
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.RateLimit.AuthRequests == 0 {
		c.RateLimit.AuthRequests = 20
	}
	if c.RateLimit.AuthWindow == 0 {
		c.RateLimit.AuthWindow = 15 * time.Minute
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
