package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ProviderLocal = "local"
	ProviderSSO   = "sso"

	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	Logger   LoggerConfig   `yaml:"logger"`
	Channel  ChannelConfig  `yaml:"channel"`
	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	JSON   bool   `yaml:"json" env-default:"false"`
	Source bool   `yaml:"source" env-default:"false"`
}

// ChannelConfig is shared by both ends: the background listens on Addr+Path,
// the popup dials URL.
type ChannelConfig struct {
	Addr    string        `yaml:"addr" env-default:"127.0.0.1:8765"`
	Path    string        `yaml:"path" env-default:"/channel"`
	URL     string        `yaml:"url" env:"CHANNEL_URL" env-default:"ws://127.0.0.1:8765/channel"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
	Origins []string      `yaml:"origins"`
}

type ProviderConfig struct {
	Kind  string              `yaml:"kind" env:"PROVIDER" env-default:"local"`
	Local LocalProviderConfig `yaml:"local"`
	SSO   SSOConfig           `yaml:"sso"`
}

type LocalProviderConfig struct {
	AppID           int32         `yaml:"app_id" env-default:"1"`
	Secret          string        `yaml:"secret" env:"LOCAL_TOKEN_SECRET"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env-default:"720h"`
	// Accounts is memory or postgres, Sessions is memory or redis.
	Accounts string     `yaml:"accounts" env-default:"memory"`
	Sessions string     `yaml:"sessions" env-default:"memory"`
	GRPC     GRPCConfig `yaml:"grpc"`
}

// GRPCConfig exposes the local provider on the SSO API when Port is set.
type GRPCConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
	Cert    string        `yaml:"cert"`
	Key     string        `yaml:"key"`
}

type SSOConfig struct {
	Addr    string        `yaml:"addr" env:"SSO_ADDR" env-default:"localhost:44044"`
	AppID   int32         `yaml:"app_id" env-default:"1"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

type StoreConfig struct {
	Kind      string         `yaml:"kind" env:"STORE" env-default:"memory"`
	Namespace string         `yaml:"namespace" env-default:"popup"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	SQLite    SQLiteConfig   `yaml:"sqlite"`
}

type RedisConfig struct {
	Host      string `yaml:"host" env-default:"localhost"`
	Port      string `yaml:"port" env-default:"6379"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	Database  int    `yaml:"database" env-default:"0"`
	ConnRetry int    `yaml:"conn_retry" env-default:"5"`
}

type PostgresConfig struct {
	Host      string `yaml:"host" env-default:"localhost"`
	Port      string `yaml:"port" env-default:"5432"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database  string `yaml:"database"`
	ConnRetry int    `yaml:"conn_retry" env-default:"5"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env-default:"./credentials.db"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"false"`
	Path    string `yaml:"path" env-default:"/metrics"`
}

func (c *Config) validate() error {
	switch c.Provider.Kind {
	case ProviderLocal:
		if c.Provider.Local.Secret == "" {
			return fmt.Errorf("provider.local.secret is required")
		}
	case ProviderSSO:
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}

	switch c.Store.Kind {
	case StoreMemory, StoreRedis, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// LogValue hides secrets when the config is logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("log_level", c.Logger.Level),
		slog.String("channel_addr", c.Channel.Addr),
		slog.String("channel_url", c.Channel.URL),
		slog.Duration("channel_timeout", c.Channel.Timeout),
		slog.String("provider", c.Provider.Kind),
		slog.String("sso_addr", c.Provider.SSO.Addr),
		slog.String("store", c.Store.Kind),
		slog.String("namespace", c.Store.Namespace),
		slog.String("redis", c.Store.Redis.Host+":"+c.Store.Redis.Port),
		slog.String("postgres", c.Store.Postgres.Host+":"+c.Store.Postgres.Port+"/"+c.Store.Postgres.Database),
		slog.Bool("metrics", c.Metrics.Enabled),
	)
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}
	if err := cfg.validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	return &cfg
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is required")
	}
	return MustLoadByPath(path)
}

// fetchConfigPath returns the path of the config file from the command line flag or environment variable.
// Priority: command line flag > environment variable > default value
// Default value: empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to the config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
