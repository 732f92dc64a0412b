package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	strutil "rehla/pkg/platform/strings"
)

// DefaultExpectedDomain is the host printed on Rehla tree tags.
const DefaultExpectedDomain = "rehla-trees-planting.com"

// Config is the full runtime configuration shared by the server and the CLI.
type Config struct {
	Server    Server         `yaml:"server"`
	Resolver  Resolver       `yaml:"resolver"`
	CMS       CMS            `yaml:"cms"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Kafka     KafkaConfig    `yaml:"kafka"`
	RateLimit RateLimit      `yaml:"rate_limit"`
	Advisory  Advisory       `yaml:"advisory"`
	Cache     Cache          `yaml:"cache"`
	Scan      Scan           `yaml:"scan"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Resolver configures the QR payload resolver.
type Resolver struct {
	// ExpectedDomain is the only host tree tags are expected to point at.
	// Empty disables the mismatch advisory.
	ExpectedDomain string `yaml:"expected_domain"`
}

// CMS locates the Strapi backend.
type CMS struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// JWTSecret is Strapi's JWT_SECRET. When set, admin routes verify tokens
	// locally before forwarding them.
	JWTSecret string `yaml:"jwt_secret"`
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds the advisory store DSN. Empty keeps advisories in memory.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// KafkaConfig enables the Kafka advisory sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RateLimit bounds requests per client IP. Limit applies to public lookups;
// logins and submissions get their own, tighter budgets.
type RateLimit struct {
	Disabled   bool          `yaml:"disabled"`
	Limit      int           `yaml:"limit"`
	AuthLimit  int           `yaml:"auth_limit"`
	WriteLimit int           `yaml:"write_limit"`
	Window     time.Duration `yaml:"window"`
}

// Advisory sizes the advisory pipeline.
type Advisory struct {
	BufferSize int `yaml:"buffer_size"`
}

// Cache configures the public profile cache.
type Cache struct {
	TTL time.Duration `yaml:"ttl"`
}

// Scan configures the CLI scan session.
type Scan struct {
	FramesDir     string        `yaml:"frames_dir"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	SessionFile   string        `yaml:"session_file"`
}

// Default returns the configuration used when neither file nor env say otherwise.
func Default() Config {
	return Config{
		Server: Server{
			Addr:      ":8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Resolver: Resolver{ExpectedDomain: DefaultExpectedDomain},
		CMS: CMS{
			BaseURL: "http://localhost:1337",
			Timeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:     KafkaConfig{Topic: "rehla.advisories"},
		RateLimit: RateLimit{Limit: 120, AuthLimit: 10, WriteLimit: 30, Window: time.Minute},
		Advisory:  Advisory{BufferSize: 256},
		Cache:     Cache{TTL: 5 * time.Minute},
		Scan: Scan{
			FramesDir:     "frames",
			FrameInterval: 100 * time.Millisecond,
		},
	}
}

// FromEnv builds a Config from defaults and environment variables so main stays lean.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML file over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("REHLA_ADDR", c.Server.Addr)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.LogFormat = getEnv("LOG_FORMAT", c.Server.LogFormat)

	if v, ok := os.LookupEnv("EXPECTED_DOMAIN"); ok {
		c.Resolver.ExpectedDomain = strings.TrimSpace(v)
	}

	c.CMS.BaseURL = strings.TrimRight(getEnv("CMS_URL", c.CMS.BaseURL), "/")
	c.CMS.Timeout = getDuration("CMS_TIMEOUT", c.CMS.Timeout)
	c.CMS.JWTSecret = getEnv("CMS_JWT_SECRET", c.CMS.JWTSecret)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.PoolSize = getInt("REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.Postgres.DSN = getEnv("DATABASE_URL", c.Postgres.DSN)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strutil.SplitList(brokers)
	}
	c.Kafka.Topic = getEnv("KAFKA_ADVISORY_TOPIC", c.Kafka.Topic)

	c.RateLimit.Disabled = getBool("RATE_LIMIT_DISABLED", c.RateLimit.Disabled)
	c.RateLimit.Limit = getInt("RATE_LIMIT_LIMIT", c.RateLimit.Limit)
	c.RateLimit.AuthLimit = getInt("RATE_LIMIT_AUTH_LIMIT", c.RateLimit.AuthLimit)
	c.RateLimit.WriteLimit = getInt("RATE_LIMIT_WRITE_LIMIT", c.RateLimit.WriteLimit)
	c.RateLimit.Window = getDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.Advisory.BufferSize = getInt("ADVISORY_BUFFER_SIZE", c.Advisory.BufferSize)
	c.Cache.TTL = getDuration("PROFILE_CACHE_TTL", c.Cache.TTL)

	c.Scan.FramesDir = getEnv("SCAN_FRAMES_DIR", c.Scan.FramesDir)
	c.Scan.FrameInterval = getDuration("SCAN_FRAME_INTERVAL", c.Scan.FrameInterval)
	c.Scan.SessionFile = getEnv("TREESCAN_SESSION_FILE", c.Scan.SessionFile)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
