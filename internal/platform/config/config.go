package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// TrustedProxies lists addresses or CIDR ranges whose X-Forwarded-For
	// header is honoured.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
	EventsPerMinute   int `mapstructure:"events_per_minute"`
}

type WebhooksConfig struct {
	WorkerCount       int           `mapstructure:"worker_count"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DefaultMaxRetries int           `mapstructure:"default_max_retries"`
	DefaultRetryDelay int           `mapstructure:"default_retry_delay"`
	UserAgent         string        `mapstructure:"user_agent"`
}

type WorkerConfig struct {
	RetryInterval    time.Duration `mapstructure:"retry_interval"`
	RetryBatchSize   int           `mapstructure:"retry_batch_size"`
	RollupInterval   time.Duration `mapstructure:"rollup_interval"`
	AttemptRetention time.Duration `mapstructure:"attempt_retention"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type MetricsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Path              string        `mapstructure:"path"`
	DashboardCacheTTL time.Duration `mapstructure:"dashboard_cache_ttl"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "file:data/worksphere.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.migrations_path", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("rate_limit.api_read_per_minute", 1000)
	v.SetDefault("rate_limit.api_write_per_minute", 100)
	v.SetDefault("rate_limit.events_per_minute", 600)

	v.SetDefault("webhooks.worker_count", 8)
	v.SetDefault("webhooks.timeout", 15*time.Second)
	v.SetDefault("webhooks.default_max_retries", 3)
	v.SetDefault("webhooks.default_retry_delay", 60)
	v.SetDefault("webhooks.user_agent", "WorkSphere-Webhooks/1.0")

	v.SetDefault("worker.retry_interval", 15*time.Second)
	v.SetDefault("worker.retry_batch_size", 100)
	v.SetDefault("worker.rollup_interval", time.Hour)
	v.SetDefault("worker.attempt_retention", 30*24*time.Hour)
	v.SetDefault("worker.metrics_addr", ":9090")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.buffer_size", 1024)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.dashboard_cache_ttl", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}

// Load reads the YAML file at path, overlaid by environment variables
// (server.port -> SERVER_PORT). A .env file in the working directory is
// loaded first when present. An empty path loads defaults and env only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
