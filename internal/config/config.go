package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

type Config struct {
	Env           string              `yaml:"env"`
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Broker        BrokerConfig        `yaml:"broker"`
	Delivery      DeliveryConfig      `yaml:"delivery"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Limits        LimitsConfig        `yaml:"limits"`
	Blob          BlobConfig          `yaml:"blob"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	Token          string   `yaml:"token"`
	RequireToken   *bool    `yaml:"requireToken"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type StorageConfig struct {
	Path             string `yaml:"path"`
	InMemory         bool   `yaml:"inMemory"`
	EncryptionSecret string `yaml:"encryptionSecret"`
}

type BrokerConfig struct {
	Kind          string `yaml:"kind"`
	RedisURL      string `yaml:"redisUrl"`
	ChannelPrefix string `yaml:"channelPrefix"`
}

type DeliveryConfig struct {
	QueueSize      int           `yaml:"queueSize"`
	Workers        int           `yaml:"workers"`
	PublishTimeout time.Duration `yaml:"publishTimeout"`
	SessionBuffer  int           `yaml:"sessionBuffer"`
}

type NotificationsConfig struct {
	QueueSize     int    `yaml:"queueSize"`
	Workers       int    `yaml:"workers"`
	ActionBaseURL string `yaml:"actionBaseUrl"`
}

type LimitsConfig struct {
	SendPerSecond      float64 `yaml:"sendPerSecond"`
	SendBurst          int     `yaml:"sendBurst"`
	RPCPerSecond       float64 `yaml:"rpcPerSecond"`
	RPCBurst           int     `yaml:"rpcBurst"`
	MaxSessions        int     `yaml:"maxSessions"`
	MaxSessionsPerUser int     `yaml:"maxSessionsPerUser"`
}

type BlobConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Env: "production",
		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			AllowedOrigins: []string{"localhost", "127.0.0.1", "::1"},
		},
		Storage: StorageConfig{Path: "data/chat"},
		Broker: BrokerConfig{
			Kind:          BrokerMemory,
			ChannelPrefix: "chat:events:",
		},
		Delivery: DeliveryConfig{
			QueueSize:      1024,
			Workers:        4,
			PublishTimeout: 2 * time.Second,
			SessionBuffer:  64,
		},
		Notifications: NotificationsConfig{
			QueueSize: 1024,
			Workers:   2,
		},
		Limits: LimitsConfig{
			SendPerSecond:      5,
			SendBurst:          20,
			RPCPerSecond:       30,
			RPCBurst:           60,
			MaxSessions:        4096,
			MaxSessionsPerUser: 8,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFromPath reads an optional .env file, then the YAML config over the
// defaults, then CHAT_* environment overrides. With an empty path the
// conventional locations are tried and a missing file is not an error.
func LoadFromPath(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()

	candidates := []string{"configs/config.yaml", "config.yaml"}
	if configPath != "" {
		candidates = []string{configPath}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) && configPath == "" {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		break
	}

	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.Env, "CHAT_ENV")
	setString(&cfg.Server.Addr, "CHAT_ADDR")
	setString(&cfg.Server.Token, "CHAT_RPC_TOKEN")
	if v, ok := parseBoolEnv("CHAT_REQUIRE_RPC_TOKEN"); ok {
		cfg.Server.RequireToken = &v
	}
	setString(&cfg.Storage.Path, "CHAT_DATA_DIR")
	setString(&cfg.Storage.EncryptionSecret, "CHAT_STORAGE_SECRET")
	if v, ok := parseBoolEnv("CHAT_STORAGE_IN_MEMORY"); ok {
		cfg.Storage.InMemory = v
	}
	setString(&cfg.Broker.Kind, "CHAT_BROKER")
	setString(&cfg.Broker.RedisURL, "CHAT_REDIS_URL")
	setString(&cfg.Blob.BaseURL, "CHAT_BLOB_BASE_URL")
	setString(&cfg.Notifications.ActionBaseURL, "CHAT_ACTION_BASE_URL")
	setString(&cfg.Log.Level, "CHAT_LOG_LEVEL")
	if raw := strings.TrimSpace(os.Getenv("CHAT_SEND_RPS")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			cfg.Limits.SendPerSecond = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("CHAT_SEND_BURST")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			cfg.Limits.SendBurst = v
		}
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Broker.Kind)) {
	case BrokerMemory:
	case BrokerRedis:
		if strings.TrimSpace(c.Broker.RedisURL) == "" {
			return errors.New("broker.redisUrl is required for the redis broker")
		}
	default:
		return fmt.Errorf("unknown broker kind %q", c.Broker.Kind)
	}
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required unless storage.inMemory is set")
	}
	if c.TokenRequired() && strings.TrimSpace(c.Server.Token) == "" {
		return errors.New("server.token (CHAT_RPC_TOKEN) is required unless env is test/development/local")
	}
	return nil
}

// TokenRequired fails closed: an explicit opt-out only counts outside
// production-like environments.
func (c Config) TokenRequired() bool {
	if c.Server.RequireToken != nil {
		if !*c.Server.RequireToken && !c.NonProd() {
			return true
		}
		return *c.Server.RequireToken
	}
	return !c.NonProd()
}

func (c Config) NonProd() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "test", "testing", "dev", "development", "local":
		return true
	default:
		return false
	}
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func parseBoolEnv(name string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
