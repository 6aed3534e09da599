// Package config loads process settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Payment PaymentConfig `mapstructure:"payment"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

type StorageConfig struct {
	// Driver is "mongo" or "memory".
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"pass"`
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
}

// ConnectionURI returns URI if set, otherwise an Atlas SRV URI built from the credentials.
func (m MongoConfig) ConnectionURI() string {
	if m.URI != "" {
		return m.URI
	}
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(m.User, m.Password),
		Host:     m.Host,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority",
	}
	return u.String()
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

func (a AuthConfig) Validate() error {
	if a.Secret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	return nil
}

type PaymentConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	VerifyCharges bool   `mapstructure:"verify_charges"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// env var names, kept compatible with existing deployments
var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",
	"server.request_timeout":  "REQUEST_TIMEOUT",
	"storage.driver":          "STORAGE_DRIVER",
	"mongo.uri":               "MONGO_URI",
	"mongo.user":              "DB_USER",
	"mongo.pass":              "DB_PASS",
	"mongo.host":              "DB_HOST",
	"mongo.database":          "DB_NAME",
	"auth.secret":             "ACCESS_TOKEN_SECRET",
	"auth.token_ttl":          "TOKEN_TTL",
	"payment.secret_key":      "STRIPE_SECRET_KEY",
	"payment.verify_charges":  "PAYMENT_VERIFY_CHARGES",
	"log.level":               "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("storage.driver", DriverMongo)
	v.SetDefault("mongo.host", "cluster0.xlfxim0.mongodb.net")
	v.SetDefault("mongo.database", "bicycle-manufacture")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("payment.verify_charges", true)
	v.SetDefault("log.level", "info")
}

// Load reads the environment, overlaying values from envFile when it exists.
// Real environment variables win over the file. Call Validate before serving.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		if err := loadEnvFile(v, envFile); err != nil {
			return nil, err
		}
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	return cfg, nil
}

// loadEnvFile maps KEY=VALUE pairs from a dotenv file onto config keys.
func loadEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	f := viper.New()
	f.SetConfigFile(path)
	f.SetConfigType("env")
	if err := f.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for key, env := range envBindings {
		if _, ok := os.LookupEnv(env); ok {
			continue
		}
		// dotenv keys are lower-cased by viper
		if f.IsSet(strings.ToLower(env)) {
			v.Set(key, f.Get(strings.ToLower(env)))
		}
	}
	return nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Mongo.URI == "" && (c.Mongo.User == "" || c.Mongo.Password == "" || c.Mongo.Host == "") {
			return errors.New("MONGO_URI or DB_USER/DB_PASS/DB_HOST is required")
		}
		if c.Payment.SecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
