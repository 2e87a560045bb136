package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store drivers understood by the relay.
const (
	DriverSurreal = "surreal"
	DriverBadger  = "badger"
	DriverMemory  = "memory"
)

// Provider exposes configuration values to the rest of the application.
// Components depend on this interface rather than on *Config so tests can
// supply their own values.
type Provider interface {
	GetServerAddr() string
	GetStoreDriver() string
	GetDBURL() string
	GetDBUser() string
	GetDBPass() string
	GetDBNs() string
	GetDBDb() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetBadgerPath() string
	GetAllowedOrigins() []string
	GetMaxMessageSize() int64
	GetSendBufferSize() int
}

// Config holds all configuration for the application.
type Config struct {
	Port       string `env:"PORT,default=3001" validate:"required,numeric"`
	ServerAddr string `env:"SERVER_ADDR"`

	StoreDriver string `env:"STORE_DRIVER,default=badger" validate:"oneof=surreal badger memory"`

	DBUrl  string `env:"SURREAL_URL" validate:"required_if=StoreDriver surreal"`
	DBUser string `env:"SURREAL_USER"`
	DBPass string `env:"SURREAL_PASS"`
	DBNs   string `env:"SURREAL_NS" validate:"required_if=StoreDriver surreal"`
	DBDb   string `env:"SURREAL_DB" validate:"required_if=StoreDriver surreal"`

	DBQueryTimeout   time.Duration `env:"DB_QUERY_TIMEOUT,default=5s" validate:"gt=0"`
	DBExecuteTimeout time.Duration `env:"DB_EXECUTE_TIMEOUT,default=10s" validate:"gt=0"`

	BadgerPath string `env:"BADGER_PATH,default=data/relay" validate:"required_if=StoreDriver badger"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize int64  `env:"MAX_MESSAGE_SIZE,default=1048576" validate:"gt=0"`
	SendBufferSize int    `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
}

var validate = validator.New()

// New loads configuration from an optional .env file and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnviron()
}

// FromEnviron reads and validates configuration from the process environment
// without touching .env files.
func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GetServerAddr returns the listen address. SERVER_ADDR wins over PORT.
func (c *Config) GetServerAddr() string {
	if c.ServerAddr != "" {
		return c.ServerAddr
	}
	return net.JoinHostPort("", c.Port)
}

func (c *Config) GetStoreDriver() string { return c.StoreDriver }
func (c *Config) GetDBURL() string { return c.DBUrl }
func (c *Config) GetDBUser() string { return c.DBUser }
func (c *Config) GetDBPass() string { return c.DBPass }
func (c *Config) GetDBNs() string { return c.DBNs }
func (c *Config) GetDBDb() string { return c.DBDb }
func (c *Config) GetDBQueryTimeout() time.Duration { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }
func (c *Config) GetBadgerPath() string { return c.BadgerPath }
func (c *Config) GetMaxMessageSize() int64 { return c.MaxMessageSize }
func (c *Config) GetSendBufferSize() int { return c.SendBufferSize }

// GetAllowedOrigins splits ALLOWED_ORIGINS on commas.
func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
