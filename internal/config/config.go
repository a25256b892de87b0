package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/kurantoB/TwitterClone-sub000/pkg/config"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Events     EventsConfig
	Reconciler ReconcilerConfig
	Graph      GraphConfig
	Auth       AuthConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	TimeZone        string        `mapstructure:"timezone"`
	FilePath        string        `mapstructure:"file_path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

type RedisConfig struct {
	Address   string        `mapstructure:"address"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	HotKeyTTL time.Duration `mapstructure:"hot_key_ttl"`
}

// KafkaConfig configures the CDC consumer. An empty Brokers disables it.
type KafkaConfig struct {
	Brokers   string   `mapstructure:"brokers"`
	CDCTopics []string `mapstructure:"cdc_topics"`
	GroupID   string   `mapstructure:"group_id"`
}

// EventsConfig configures relationship event publishing.
type EventsConfig struct {
	Driver     string `mapstructure:"driver"` // redis, kafka, none
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

type ReconcilerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	TopN        int           `mapstructure:"top_n"`
	DirtyBatch  int           `mapstructure:"dirty_batch"`
	ChunkSize   int           `mapstructure:"chunk_size"`
	Concurrency int           `mapstructure:"concurrency"`
}

// GraphConfig bounds write retries and query pages.
type GraphConfig struct {
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
	TxTimeout            time.Duration `mapstructure:"tx_timeout"`
	DefaultPageSize      int           `mapstructure:"default_page_size"`
	MaxPageSize          int           `mapstructure:"max_page_size"`
}

type AuthConfig struct {
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Issuer        string        `mapstructure:"issuer"`
	Leeway        time.Duration `mapstructure:"leeway"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads ./config/config.yaml and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom reads config.yaml from dir and the environment.
func LoadFrom(dir string) (*Config, error) {
	v, err := pkgconfig.Load(dir, "config", "")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8095)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.file_path", "./data/social-graph.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.hot_key_ttl", "10m")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.cdc_topics", []string{"dbserver1.public.follows", "dbserver1.public.blocks"})
	v.SetDefault("kafka.group_id", "social-graph-service")
	v.SetDefault("events.driver", "redis")
	v.SetDefault("events.topic", "social.relationship")
	v.SetDefault("events.partitions", 4)
	v.SetDefault("reconciler.interval", "60s")
	v.SetDefault("reconciler.top_n", 100)
	v.SetDefault("reconciler.dirty_batch", 500)
	v.SetDefault("reconciler.chunk_size", 50)
	v.SetDefault("reconciler.concurrency", 4)
	v.SetDefault("graph.retry_attempts", 5)
	v.SetDefault("graph.retry_initial_interval", "20ms")
	v.SetDefault("graph.retry_max_interval", "500ms")
	v.SetDefault("graph.tx_timeout", "5s")
	v.SetDefault("graph.default_page_size", 20)
	v.SetDefault("graph.max_page_size", 100)
	v.SetDefault("auth.public_key_path", "./keys/auth_public.pem")
	v.SetDefault("auth.issuer", "auth-service")
	v.SetDefault("auth.leeway", "30s")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	binds := map[string]string{
		"server.port":                "PORT",
		"database.driver":            "DB_DRIVER",
		"database.host":              "DB_HOST",
		"database.port":              "DB_PORT",
		"database.user":              "DB_USER",
		"database.password":          "DB_PASSWORD",
		"database.dbname":            "DB_NAME",
		"database.sslmode":           "DB_SSLMODE",
		"database.file_path":         "DB_FILE_PATH",
		"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
		"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
		"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
		"database.log_level":         "DB_LOG_LEVEL",
		"redis.address":              "REDIS_ADDRESS",
		"redis.password":             "REDIS_PASSWORD",
		"redis.db":                   "REDIS_DB",
		"kafka.brokers":              "KAFKA_BROKERS",
		"kafka.cdc_topics":           "KAFKA_CDC_TOPICS",
		"kafka.group_id":             "KAFKA_GROUP_ID",
		"events.driver":              "EVENTS_DRIVER",
		"events.topic":               "EVENTS_TOPIC",
		"reconciler.interval":        "RECONCILER_INTERVAL",
		"reconciler.top_n":           "RECONCILER_TOP_N",
		"graph.retry_attempts":       "GRAPH_RETRY_ATTEMPTS",
		"graph.tx_timeout":           "GRAPH_TX_TIMEOUT",
		"graph.max_page_size":        "GRAPH_MAX_PAGE_SIZE",
		"auth.public_key_path":       "AUTH_PUBLIC_KEY_PATH",
		"auth.issuer":                "AUTH_ISSUER",
		"telemetry.enabled":          "OTEL_ENABLED",
		"telemetry.endpoint":         "OTEL_EXPORTER_OTLP_ENDPOINT",
		"log.level":                  "LOG_LEVEL",
		"log.pretty":                 "LOG_PRETTY",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Graph.RetryAttempts < 1 {
		return fmt.Errorf("graph.retry_attempts must be at least 1, got %d", c.Graph.RetryAttempts)
	}
	if c.Graph.DefaultPageSize < 1 || c.Graph.MaxPageSize < c.Graph.DefaultPageSize {
		return fmt.Errorf("graph page sizes must satisfy 1 <= default (%d) <= max (%d)",
			c.Graph.DefaultPageSize, c.Graph.MaxPageSize)
	}
	if c.Graph.TxTimeout <= 0 {
		return fmt.Errorf("graph.tx_timeout must be positive")
	}
	return nil
}
