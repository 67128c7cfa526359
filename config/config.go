package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is immutable after Load and
// injected into components at construction.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Tron       TronConfig       `mapstructure:"tron"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Callback   CallbackConfig   `mapstructure:"callback"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TronConfig holds the TronGrid indexer settings and chain policy constants.
type TronConfig struct {
	Network       string        `mapstructure:"network"` // mainnet or shasta
	APIKey        string        `mapstructure:"api_key"`
	USDTContract  string        `mapstructure:"usdt_contract"`
	WalletAddress string        `mapstructure:"wallet_address"` // shared deposit address
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	PageLimit     int           `mapstructure:"page_limit"`
}

// BaseURL returns the TronGrid API base URL for the configured network.
func (t TronConfig) BaseURL() string {
	if t.Network == "shasta" {
		return "https://api.shasta.trongrid.io"
	}
	return "https://api.trongrid.io"
}

// ReconcilerConfig holds the polling loop and confirmation policy.
type ReconcilerConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	MinConfirmations int64         `mapstructure:"min_confirmations"`
	PaymentExpiry    time.Duration `mapstructure:"payment_expiry"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	SeenCacheTTL     time.Duration `mapstructure:"seen_cache_ttl"`
}

// CallbackConfig controls settlement callback delivery. When SigningSecret is
// set, outbound callback bodies carry an HMAC-SHA256 signature header.
type CallbackConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"` // shared key for admin endpoints
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: TRUSTX_.
// Nested keys use underscore: TRUSTX_DATABASE_HOST, TRUSTX_TRON_API_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "trustx")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("tron.network", "mainnet")
	v.SetDefault("tron.api_key", "")
	v.SetDefault("tron.usdt_contract", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	v.SetDefault("tron.wallet_address", "")
	v.SetDefault("tron.http_timeout", "15s")
	v.SetDefault("tron.page_limit", 50)
	v.SetDefault("reconciler.interval", "15s")
	v.SetDefault("reconciler.min_confirmations", 19)
	v.SetDefault("reconciler.payment_expiry", "60m")
	v.SetDefault("reconciler.lock_ttl", "2m")
	v.SetDefault("reconciler.seen_cache_ttl", "24h")
	v.SetDefault("callback.signing_secret", "")
	v.SetDefault("admin.api_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: TRUSTX_DATABASE_HOST -> database.host
	v.SetEnvPrefix("TRUSTX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
