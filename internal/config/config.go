// Package config loads service settings: defaults, then an optional YAML
// file named by LEDGER_CONFIG, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   int         `yaml:"port" validate:"min=1,max=65535"`
	Store  StoreConfig `yaml:"store"`
	Lock   LockConfig  `yaml:"lock"`
	Ledger Ledger      `yaml:"ledger"`
	HTTP   HTTP        `yaml:"http"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver" validate:"oneof=memory mongo sqlite"`
	Mongo  MongoConfig `yaml:"mongo"`
	SQLite SQLite      `yaml:"sqlite"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	DB         string `yaml:"db"`
	Collection string `yaml:"collection"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type LockConfig struct {
	Driver   string        `yaml:"driver" validate:"oneof=local redis"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
}

type Ledger struct {
	AppendAttempts int  `yaml:"append_attempts" validate:"min=1,max=20"`
	AuditRollbacks bool `yaml:"audit_rollbacks"`
}

type HTTP struct {
	APIKeys       []string      `yaml:"api_keys"`
	RatePerMinute int           `yaml:"rate_per_minute" validate:"min=0"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

func Default() Config {
	return Config{
		Port: 8080,
		Store: StoreConfig{
			Driver: "memory",
			Mongo:  MongoConfig{URI: "mongodb://localhost:27017", DB: "ledger", Collection: "audit_events"},
			SQLite: SQLite{Path: "ledger.db"},
		},
		Lock:   LockConfig{Driver: "local", RedisURL: "redis://localhost:6379/0", TTL: 10 * time.Second},
		Ledger: Ledger{AppendAttempts: 3},
		HTTP: HTTP{
			RatePerMinute: 60,
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  15 * time.Second,
		},
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = GetInt("PORT", cfg.Port)
	cfg.Store.Driver = Getenv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Mongo.URI = Getenv("MONGO_URI", cfg.Store.Mongo.URI)
	cfg.Store.Mongo.DB = Getenv("MONGO_DB", cfg.Store.Mongo.DB)
	cfg.Store.Mongo.Collection = Getenv("MONGO_COLLECTION", cfg.Store.Mongo.Collection)
	cfg.Store.SQLite.Path = Getenv("SQLITE_PATH", cfg.Store.SQLite.Path)
	cfg.Lock.Driver = Getenv("LOCK_DRIVER", cfg.Lock.Driver)
	cfg.Lock.RedisURL = Getenv("REDIS_URL", cfg.Lock.RedisURL)
	cfg.Lock.TTL = GetDuration("LOCK_TTL", cfg.Lock.TTL)
	cfg.Ledger.AppendAttempts = GetInt("APPEND_ATTEMPTS", cfg.Ledger.AppendAttempts)
	cfg.Ledger.AuditRollbacks = GetBool("AUDIT_ROLLBACKS", cfg.Ledger.AuditRollbacks)
	if keys := Getenv("API_KEYS", ""); keys != "" { // "k1,k2,..."
		cfg.HTTP.APIKeys = splitCSV(keys)
	}
	cfg.HTTP.RatePerMinute = GetInt("RATE", cfg.HTTP.RatePerMinute)
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Store.Driver == "mongo" && (c.Store.Mongo.URI == "" || c.Store.Mongo.DB == "" || c.Store.Mongo.Collection == "") {
		return fmt.Errorf("config validation failed: mongo store needs uri, db and collection")
	}
	if c.Lock.Driver == "redis" && c.Lock.RedisURL == "" {
		return fmt.Errorf("config validation failed: redis lock needs redis_url")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Exported helpers
func Getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func GetInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func GetBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func GetDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if t, err := time.ParseDuration(v); err == nil {
			return t
		}
	}
	return d
}
