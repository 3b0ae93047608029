package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath — путь к конфигу, если CONFIG_PATH не задан
const DefaultPath = "config/config.yaml"

// Config определяет структуру конфигурации всего приложения целиком
type Config struct {
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Storage    `yaml:"storage"`
	Cache      `yaml:"cache"`
	Notifier   `yaml:"notifier"`
	Kafka      `yaml:"kafka"`
	RateLimit  `yaml:"rate_limit"`
	Logger     `yaml:"logger"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	DBName      string `yaml:"db_name"`
	SSLMode     string `yaml:"ssl_mode"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// Storage выбирает реализацию хранилища каталога: postgres или memory
type Storage struct {
	Driver string `yaml:"driver"`
}

// Cache содержит настройки read-through кэша
type Cache struct {
	Driver             string        `yaml:"driver"` // memory или redis
	DefaultTTL         time.Duration `yaml:"default_ttl"`
	MaxTTL             time.Duration `yaml:"max_ttl"`
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
	Redis              Redis         `yaml:"redis"`
}

// Redis содержит настройки подключения к Redis
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Notifier содержит настройки уведомлений о новых заказах
type Notifier struct {
	Driver   string        `yaml:"driver"` // pushover, kafka или none
	Timeout  time.Duration `yaml:"timeout"`
	Pushover Pushover      `yaml:"pushover"`
	Topic    string        `yaml:"topic"` // топик для driver=kafka, брокеры берутся из секции kafka
}

// Pushover содержит учётные данные Pushover
type Pushover struct {
	Token string `yaml:"token"`
	User  string `yaml:"user"`
}

// Kafka содержит конфигурацию для подключения к кафке
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// RateLimit задаёт ограничение частоты запросов на одного клиента
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Path возвращает путь к конфигу из CONFIG_PATH или путь по умолчанию
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load читает YAML-файл, подставляет значения по умолчанию и переменные окружения
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv переопределяет секреты из окружения, чтобы не держать их в файле
func (c *Config) applyEnv() {
	if v := os.Getenv("PUSHOVER_TOKEN"); v != "" {
		c.Notifier.Pushover.Token = v
	}
	if v := os.Getenv("PUSHOVER_USER"); v != "" {
		c.Notifier.Pushover.User = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPServer.Port == "" {
		c.HTTPServer.Port = ":8080"
	}
	if c.HTTPServer.Timeout == 0 {
		c.HTTPServer.Timeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 5 * time.Minute
	}
	if c.Cache.MaxTTL < c.Cache.DefaultTTL {
		c.Cache.MaxTTL = c.Cache.DefaultTTL
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 10000
	}
	if c.Cache.NumShards == 0 {
		c.Cache.NumShards = 64
	}
	if c.Cache.EvictionPercentage == 0 {
		c.Cache.EvictionPercentage = 10
	}
	if c.Notifier.Driver == "" {
		c.Notifier.Driver = "pushover"
	}
	if c.Notifier.Timeout == 0 {
		c.Notifier.Timeout = 10 * time.Second
	}
	if c.Notifier.Topic == "" {
		c.Notifier.Topic = "order-events"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "orders"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "simple-shop-service"
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "INFO"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver: %s", c.Cache.Driver)
	}
	switch c.Notifier.Driver {
	case "pushover", "kafka", "none":
	default:
		return fmt.Errorf("unknown notifier driver: %s", c.Notifier.Driver)
	}
	if c.Cache.Driver == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required for redis cache")
	}
	if (c.Kafka.Enabled || c.Notifier.Driver == "kafka") && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is used")
	}
	return nil
}
