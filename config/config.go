package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	HistoryPostgres = "postgres"
	HistoryBadger   = "badger"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // talk-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

type Storage struct {
	History    string `yaml:"history"` // postgres|badger
	BadgerPath string `yaml:"badgerPath"`
}

type Chat struct {
	HistoryLimit     int           `yaml:"historyLimit"`
	MaxContentLength int           `yaml:"maxContentLength"`
	SendBuffer       int           `yaml:"sendBuffer"`
	PingEvery        time.Duration `yaml:"pingEvery"`
	WriteWait        time.Duration `yaml:"writeWait"`
	TypingThrottle   time.Duration `yaml:"typingThrottle"`
	StoreTimeout     time.Duration `yaml:"storeTimeout"`
	Welcome          string        `yaml:"welcome"`
	CensoredWords    []string      `yaml:"censoredWords"`
	CensorChar       string        `yaml:"censorChar"`
}

type JWT struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	AccessTTL time.Duration `yaml:"accessTTL"`
	ClockSkew time.Duration `yaml:"clockSkew"`
}

type Security struct {
	JWT        JWT    `yaml:"jwt"`
	AdminToken string `yaml:"adminToken"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Storage  Storage  `yaml:"storage"`
	Chat     Chat     `yaml:"chat"`
	Security Security `yaml:"security"`
}

// overrides are read from TALK_* environment variables and win over the file.
type overrides struct {
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	AdminToken  string `envconfig:"ADMIN_TOKEN"`
	HTTPAddr    string `envconfig:"HTTP_ADDR"`
	GRPCAddr    string `envconfig:"GRPC_ADDR"`
	BadgerPath  string `envconfig:"BADGER_PATH"`
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml), applies env
// overrides, fills defaults and validates.
func LoadConfig() (*Config, error) {
	// .env is optional; real env vars are never overwritten
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var o overrides
	if err := envconfig.Process("talk", &o); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Postgres.DSN, o.PostgresDSN)
	set(&c.Security.JWT.Secret, o.JWTSecret)
	set(&c.Security.AdminToken, o.AdminToken)
	set(&c.HTTP.Addr, o.HTTPAddr)
	set(&c.GRPC.Addr, o.GRPCAddr)
	set(&c.Storage.BadgerPath, o.BadgerPath)
	return nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 15*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 30*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "talk-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	if c.Storage.History == "" {
		c.Storage.History = HistoryPostgres
	}
	if c.Storage.BadgerPath == "" {
		c.Storage.BadgerPath = "./data/history"
	}

	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 50
	}
	if c.Chat.MaxContentLength <= 0 {
		c.Chat.MaxContentLength = 4000
	}
	if c.Chat.SendBuffer <= 0 {
		c.Chat.SendBuffer = 256
	}
	c.Chat.PingEvery = durationOr(c.Chat.PingEvery, 15*time.Second)
	c.Chat.WriteWait = durationOr(c.Chat.WriteWait, 10*time.Second)
	c.Chat.TypingThrottle = durationOr(c.Chat.TypingThrottle, 2*time.Second)
	c.Chat.StoreTimeout = durationOr(c.Chat.StoreTimeout, 5*time.Second)
	if c.Chat.Welcome == "" {
		c.Chat.Welcome = "Welcome to Food for Talk, {name}!"
	}
	if c.Chat.CensorChar == "" {
		c.Chat.CensorChar = "*"
	}

	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "foodfortalk"
	}
	c.Security.JWT.AccessTTL = durationOr(c.Security.JWT.AccessTTL, 12*time.Hour)
}

func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	switch c.Storage.History {
	case HistoryPostgres, HistoryBadger:
	default:
		return fmt.Errorf("storage.history must be %q or %q", HistoryPostgres, HistoryBadger)
	}
	if len(c.Security.JWT.Secret) < 32 {
		return errors.New("security.jwt.secret must be at least 32 bytes")
	}
	if c.Security.JWT.ClockSkew < 0 || c.Security.JWT.ClockSkew > time.Minute {
		return errors.New("security.jwt.clockSkew must be in [0..1m]")
	}
	if c.Security.AdminToken == "" {
		return errors.New("security.adminToken is required")
	}
	if len([]rune(c.Chat.CensorChar)) != 1 {
		return fmt.Errorf("chat.censorChar must be a single character, got %q", c.Chat.CensorChar)
	}
	return nil
}

// CensorRune returns the configured replacement character.
func (c Chat) CensorRune() rune {
	return []rune(c.CensorChar)[0]
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
