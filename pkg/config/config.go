package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		// per-client token bucket on scoring endpoints; burst 0 disables
		RateLimit struct {
			Burst     float64 `yaml:"burst" default:"10"`
			PerSecond float64 `yaml:"per_second" default:"2"`
		} `yaml:"rate_limit"`
		RequireAPIKey bool     `yaml:"require_api_key"`
		CORSOrigins   []string `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Etherscan struct {
		BaseURL          string        `yaml:"base_url" default:"https://api.etherscan.io/v2/api"`
		APIKeys          []string      `yaml:"api_keys"`
		MinInterval      time.Duration `yaml:"min_interval" default:"100ms"`
		MaxAttempts      int           `yaml:"max_attempts" default:"3"`
		RateLimitBackoff time.Duration `yaml:"rate_limit_backoff" default:"1500ms"`
		TransportBackoff time.Duration `yaml:"transport_backoff" default:"500ms"`
		Timeout          time.Duration `yaml:"timeout" default:"15s"`
		PageSize         int           `yaml:"page_size" default:"10000"`
	} `yaml:"etherscan"`
	Scoring struct {
		ModelURL string        `yaml:"model_url"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		Attempts int           `yaml:"attempts" default:"2"`
		TopN     int           `yaml:"top_n" default:"3"`
	} `yaml:"scoring"`
	Jobs struct {
		Workers      int           `yaml:"workers" default:"4"`
		MaxAddresses int           `yaml:"max_addresses" default:"10000"`
		MaxLifetime  time.Duration `yaml:"max_lifetime" default:"30m"`
		TTL          time.Duration `yaml:"ttl" default:"24h"`
		MaxJobs      int           `yaml:"max_jobs" default:"1000"`
		SweepEvery   time.Duration `yaml:"sweep_every" default:"1m"`
		StreamEvery  time.Duration `yaml:"stream_every" default:"1s"`
	} `yaml:"jobs"`
	Store struct {
		Type  string `yaml:"type" default:"memory"`
		Redis struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"sybilscan"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Cache struct {
		VerifyTTL time.Duration `yaml:"verify_ttl" default:"5m"`
		Redis     bool          `yaml:"redis"`
	} `yaml:"cache"`
	Keys struct {
		Type        string `yaml:"type" default:"memory"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"keys"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"sybilscan.jobs"`
		LogTopic     string        `yaml:"log_topic"`
		IntakeTopic  string        `yaml:"intake_topic" default:"sybilscan.intake"`
		DLQTopic     string        `yaml:"dlq_topic" default:"sybilscan.intake.dlq"`
		GroupID      string        `yaml:"group_id" default:"sybilscan"`
		Workers      int           `yaml:"workers" default:"2"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sybilscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, and environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ETHERSCAN_API_KEYS"); v != "" {
		c.Etherscan.APIKeys = splitList(v)
	}
	if v := getenv("MODEL_URL"); v != "" {
		c.Scoring.ModelURL = v
	}
	if v := getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Keys.PostgresDSN = v
		c.Keys.Type = "postgres"
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Etherscan.MinInterval < 0 {
		return fmt.Errorf("etherscan.min_interval must not be negative")
	}
	if c.Etherscan.MaxAttempts < 1 {
		return fmt.Errorf("etherscan.max_attempts must be at least 1")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1")
	}
	if c.Jobs.MaxAddresses < 1 {
		return fmt.Errorf("jobs.max_addresses must be at least 1")
	}
	switch c.Store.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.type must be 'memory' or 'redis', got '%s'", c.Store.Type)
	}
	switch c.Keys.Type {
	case "memory":
	case "postgres":
		if c.Keys.PostgresDSN == "" {
			return fmt.Errorf("keys.postgres_dsn is required for postgres key store")
		}
	default:
		return fmt.Errorf("keys.type must be 'memory' or 'postgres', got '%s'", c.Keys.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
