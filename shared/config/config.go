package config

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const envPrefix = "STAFFHUB_"

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Log                 Log           `yaml:"log"`
	Http                Http          `yaml:"http" validate:"required"`
	Store               Store         `yaml:"store" validate:"required"`
	Events              Events        `yaml:"events"`
	JwtTTL              time.Duration `yaml:"jwt_ttl" validate:"required"`
	ModerationRateLimit float64       `yaml:"moderation_rate_limit" validate:"gte=0"` // mutations per second per supervisor, 0 disables
}

type Log struct {
	Level string `yaml:"level"`
	Json  bool   `yaml:"json"`
}

type Http struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SecureCookies  bool     `yaml:"secure_cookies"`
}

type Store struct {
	Backend        string        `yaml:"backend" validate:"required,oneof=memory postgres redis"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RedisPrefix    string        `yaml:"redis_prefix"`
	SeedFile       string        `yaml:"seed_file"` // memory backend only
}

type Events struct {
	Brokers []string          `yaml:"brokers"` // empty means log events instead of publishing
	Topics  map[string]string `yaml:"topics"`  // event type -> topic override
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Redis struct {
	Url string `yaml:"url"`
}

type Private struct {
	JwtKey         string `yaml:"jwt_key" validate:"required"`
	IdentityPepper string `yaml:"identity_pepper"`
	Pg             Pg     `yaml:"pg"`
	Redis          Redis  `yaml:"redis"`
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) JwtTTL() time.Duration {
	return s.Public.JwtTTL
}

// StoreTimeout bounds a single store call.
func (s *Config) StoreTimeout() time.Duration {
	if s.Public.Store.RequestTimeout <= 0 {
		return 5 * time.Second
	}
	return s.Public.Store.RequestTimeout
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)

	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file: " + err.Error())
	}
}

// applyEnv overrides secrets and endpoints from STAFFHUB_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "JWT_KEY"); v != "" {
		cfg.Private.JwtKey = v
	}
	if v := os.Getenv(envPrefix + "IDENTITY_PEPPER"); v != "" {
		cfg.Private.IdentityPepper = v
	}
	if v := os.Getenv(envPrefix + "PG_PASSWORD"); v != "" {
		cfg.Private.Pg.Password = v
	}
	if v := os.Getenv(envPrefix + "REDIS_URL"); v != "" {
		cfg.Private.Redis.Url = v
	}
	if v := os.Getenv(envPrefix + "STORE_BACKEND"); v != "" {
		cfg.Public.Store.Backend = v
	}
	if v := os.Getenv(envPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Public.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv(envPrefix + "HTTP_ADDR"); v != "" {
		cfg.Public.Http.Addr = v
	}
}

// Validate checks required fields and backend specific settings.
func (s *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(s); err != nil {
		return err
	}
	switch s.Public.Store.Backend {
	case "postgres":
		if s.Private.Pg.Host == "" || s.Private.Pg.Dbname == "" {
			return fmt.Errorf("postgres store requires pg.host and pg.dbname")
		}
	case "redis":
		if s.Private.Redis.Url == "" {
			return fmt.Errorf("redis store requires redis.url")
		}
	}
	return nil
}

func MustLoad(configFolder string) *Config {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load(path.Join(configFolder, ".env"))

	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}
