package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds everything kleis reads from config.toml and the environment.
type Config struct {
	CatalogURL string
	PollEvery  time.Duration
	Storage    StorageConfig
	Redis      RedisConfig
	Logging    LoggingConfig
}

// StorageConfig selects and tunes the cart slot.
type StorageConfig struct {
	Backend    string
	Dir        string
	Key        string
	MaxBytes   int
	WatchEvery time.Duration
	Timeout    time.Duration
}

// RedisConfig is used when Storage.Backend is "redis".
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// LoggingConfig controls the logrus logger.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

const (
	defaultConfigPath = "~/.config/kleis/config.toml"
	defaultCatalogURL = "127.0.0.1:4321"
	defaultPollEvery  = 30 * time.Second
	defaultStorageDir = "~/.local/share/kleis"
	defaultKey        = "kleisCart"
	defaultMaxBytes   = 5 * 1024 * 1024
	defaultWatchEvery = 500 * time.Millisecond
	defaultTimeout    = 3 * time.Second
	defaultRedisAddr  = "127.0.0.1:6379"
	defaultChannel    = "kleis:changes"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
	defaultLogFile    = "~/.local/state/kleis/kleis.log"
	envPrefix         = "KLEIS_"
)

type fileConfig struct {
	CatalogURL  string `toml:"catalog_url"`
	PollSeconds int    `toml:"poll_seconds"`
	Storage     struct {
		Backend   string `toml:"backend"`
		Dir       string `toml:"dir"`
		Key       string `toml:"key"`
		MaxBytes  int    `toml:"max_bytes"`
		WatchMS   int    `toml:"watch_ms"`
		TimeoutMS int    `toml:"timeout_ms"`
	} `toml:"storage"`
	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Channel  string `toml:"channel"`
	} `toml:"redis"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"log"`
}

// Default returns the configuration used when no file or environment
// overrides exist.
func Default() Config {
	return Config{
		CatalogURL: defaultCatalogURL,
		PollEvery:  defaultPollEvery,
		Storage: StorageConfig{
			Backend:    BackendFile,
			Dir:        mustExpand(defaultStorageDir),
			Key:        defaultKey,
			MaxBytes:   defaultMaxBytes,
			WatchEvery: defaultWatchEvery,
			Timeout:    defaultTimeout,
		},
		Redis: RedisConfig{
			Addr:    defaultRedisAddr,
			Channel: defaultChannel,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
			File:   mustExpand(defaultLogFile),
		},
	}
}

// Load reads the TOML config at path (or the default location), then a
// .env file in the working directory, then KLEIS_* environment variables.
// A missing config file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw fileConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		cfg.applyFile(raw)
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	// A missing .env file is normal.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyFile(raw fileConfig) {
	setString(&c.CatalogURL, raw.CatalogURL)
	if raw.PollSeconds > 0 {
		c.PollEvery = time.Duration(raw.PollSeconds) * time.Second
	}

	setString(&c.Storage.Backend, raw.Storage.Backend)
	if dir := strings.TrimSpace(raw.Storage.Dir); dir != "" {
		c.Storage.Dir = mustExpand(dir)
	}
	setString(&c.Storage.Key, raw.Storage.Key)
	if raw.Storage.MaxBytes != 0 {
		c.Storage.MaxBytes = raw.Storage.MaxBytes
	}
	if raw.Storage.WatchMS > 0 {
		c.Storage.WatchEvery = time.Duration(raw.Storage.WatchMS) * time.Millisecond
	}
	if raw.Storage.TimeoutMS > 0 {
		c.Storage.Timeout = time.Duration(raw.Storage.TimeoutMS) * time.Millisecond
	}

	setString(&c.Redis.Addr, raw.Redis.Addr)
	setString(&c.Redis.Password, raw.Redis.Password)
	if raw.Redis.DB > 0 {
		c.Redis.DB = raw.Redis.DB
	}
	setString(&c.Redis.Channel, raw.Redis.Channel)

	setString(&c.Logging.Level, raw.Log.Level)
	setString(&c.Logging.Format, raw.Log.Format)
	if file := strings.TrimSpace(raw.Log.File); file != "" {
		c.Logging.File = mustExpand(file)
	}
}

func (c *Config) applyEnv() {
	c.CatalogURL = getEnv("CATALOG_URL", c.CatalogURL)
	c.PollEvery = getEnvAsDuration("POLL_SECONDS", time.Second, c.PollEvery)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	if dir := getEnv("STORAGE_DIR", ""); dir != "" {
		c.Storage.Dir = mustExpand(dir)
	}
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	if file, ok := os.LookupEnv(envPrefix + "LOG_FILE"); ok {
		// An explicitly empty value logs to stderr.
		if strings.TrimSpace(file) == "" {
			c.Logging.File = ""
		} else {
			c.Logging.File = mustExpand(file)
		}
	}
}

// Validate reports settings kleis cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return fmt.Errorf("storage key is empty")
	}
	if c.Storage.Backend == BackendRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis addr is required for the redis backend")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func setString(dst *string, v string) {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		*dst = trimmed
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsDuration(key string, unit time.Duration, def time.Duration) time.Duration {
	n := getEnvAsInt(key, 0)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * unit
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
