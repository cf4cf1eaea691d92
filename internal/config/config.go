package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds everything the relay needs at startup.
type Config struct {
	Addr          string        `mapstructure:"addr"`
	DBPath        string        `mapstructure:"db_path"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	LogLevel      string        `mapstructure:"log_level"`
}

// Default values for optional configuration fields.
const (
	DefaultAddr          = ":8080"
	DefaultDBPath        = "./towhee.db"
	DefaultJWTSecret     = "towhee-secret-key-change-in-production" // Change in production!
	DefaultTokenTTL      = 24 * time.Hour
	DefaultLookupTimeout = 5 * time.Second
	DefaultReadLimit     = 32768
	DefaultSendBuffer    = 256
	DefaultLogLevel      = "info"
)

// Load reads towhee.yaml if present, applies TOWHEE_* env overrides, and
// falls back to defaults. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("towhee")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TOWHEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("token_ttl", DefaultTokenTTL)
	v.SetDefault("lookup_timeout", DefaultLookupTimeout)
	v.SetDefault("read_limit", DefaultReadLimit)
	v.SetDefault("send_buffer", DefaultSendBuffer)
	v.SetDefault("log_level", DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return &cfg, nil
}
