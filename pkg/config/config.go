package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		RateLimit       struct {
			Rate      float64       `yaml:"rate"`
			Burst     int           `yaml:"burst"`
			IdleAfter time.Duration `yaml:"idle_after"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Chart struct {
		JoinMode     string        `yaml:"join_mode"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		IdleTTL      time.Duration `yaml:"idle_ttl"`
		MaxCandles   int64         `yaml:"max_candles"`
	} `yaml:"chart"`
	Source struct {
		Type    string `yaml:"type"`
		GraphQL struct {
			URL     string        `yaml:"url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"graphql"`
	} `yaml:"source"`
	Cache struct {
		Enabled     bool          `yaml:"enabled"`
		MemorySize  int           `yaml:"memory_size"`
		IntradayTTL time.Duration `yaml:"intraday_ttl"`
		DailyTTL    time.Duration `yaml:"daily_ttl"`
		Redis       struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		CandlesTopic string   `yaml:"candles_topic"`
		EventsTopic  string   `yaml:"events_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Prefetch struct {
		Enabled  bool     `yaml:"enabled"`
		Schedule string   `yaml:"schedule"`
		Pairs    []string `yaml:"pairs"` // BASE/QUOTE
		Workers  int      `yaml:"workers"`
		Queue    string   `yaml:"queue"`
	} `yaml:"prefetch"`
}

// Parse decodes YAML bytes without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SOURCE_TYPE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("GRAPHQL_URL"); v != "" {
		c.Source.GraphQL.URL = v
	}
	if v := os.Getenv("CHART_JOIN_MODE"); v != "" {
		c.Chart.JoinMode = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("PREFETCH_PAIRS"); v != "" {
		c.Prefetch.Pairs = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Chart.JoinMode == "" {
		c.Chart.JoinMode = "positional"
	}
	if c.Chart.FetchTimeout == 0 {
		c.Chart.FetchTimeout = 15 * time.Second
	}
	if c.Chart.IdleTTL == 0 {
		c.Chart.IdleTTL = 30 * time.Minute
	}
	if c.Chart.MaxCandles == 0 {
		c.Chart.MaxCandles = 150000
	}
	if c.Server.RateLimit.IdleAfter == 0 {
		c.Server.RateLimit.IdleAfter = 10 * time.Minute
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 1000
	}
	if c.Cache.IntradayTTL == 0 {
		c.Cache.IntradayTTL = time.Minute
	}
	if c.Cache.DailyTTL == 0 {
		c.Cache.DailyTTL = 30 * time.Minute
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Prefetch.Workers == 0 {
		c.Prefetch.Workers = 2
	}
	if c.Prefetch.Queue == "" {
		c.Prefetch.Queue = "prefetch"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Source.Type {
	case "graphql":
		if c.Source.GraphQL.URL == "" {
			return fmt.Errorf("source.graphql.url is required for source.type 'graphql'")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for source.type 'clickhouse'")
		}
	case "":
		return fmt.Errorf("source.type is required")
	default:
		return fmt.Errorf("source.type must be 'graphql' or 'clickhouse', got '%s'", c.Source.Type)
	}
	if c.Chart.JoinMode != "positional" && c.Chart.JoinMode != "timestamp" {
		return fmt.Errorf("chart.join_mode must be 'positional' or 'timestamp', got '%s'", c.Chart.JoinMode)
	}
	if c.Chart.MaxCandles < 0 {
		return fmt.Errorf("chart.max_candles cannot be negative")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.CandlesTopic != "" && c.ClickHouse.Host == "" {
			return fmt.Errorf("kafka.candles_topic needs clickhouse.host to store candles")
		}
	}
	if c.Prefetch.Enabled {
		if !c.Cache.Redis.Enabled {
			return fmt.Errorf("prefetch needs cache.redis.enabled for its job queue")
		}
		if c.Prefetch.Schedule == "" {
			return fmt.Errorf("prefetch.schedule is required when prefetch is enabled")
		}
		for _, p := range c.Prefetch.Pairs {
			if _, _, ok := SplitPair(p); !ok {
				return fmt.Errorf("prefetch.pairs: %q is not BASE/QUOTE", p)
			}
		}
	}
	return nil
}

// SplitPair parses "BASE/QUOTE".
func SplitPair(p string) (base, quote string, ok bool) {
	parts := strings.Split(strings.TrimSpace(p), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), true
}
