package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/psds-microservice/ticket-desk/internal/kafka"
	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// StoreDriver выбирает бэкенд хранилища: csv (по умолчанию) или postgres.
	StoreDriver string
	StorePath   string

	Categories   []model.Category
	CostTracking bool

	// AdminSecretHash: bcrypt-хеш секрета удаления. AdminSecret: открытый секрет,
	// хешируется при старте (удобно для разработки).
	AdminSecretHash  string
	AdminSecret      string
	AdminMaxAttempts int
	AdminLockout     time.Duration

	BrandName string
	LogoPath  string

	KafkaBrokers     []string
	KafkaTopicTicket string

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8097"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverCSV)),
		StorePath:        getEnv("STORE_PATH", "tickets.csv"),
		AdminSecretHash:  getEnv("ADMIN_SECRET_HASH", ""),
		AdminSecret:      getEnv("ADMIN_SECRET", ""),
		BrandName:        getEnv("BRAND_NAME", "Ticket Desk"),
		LogoPath:         getEnv("LOGO_PATH", ""),
		KafkaBrokers:     kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicTicket: getEnv("KAFKA_TOPIC_TICKET", "tickets.events"),
	}

	var err error
	if cfg.CostTracking, err = getBool("COST_TRACKING", true); err != nil {
		return nil, err
	}
	if cfg.AdminMaxAttempts, err = getInt("ADMIN_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.AdminLockout, err = getDuration("ADMIN_LOCKOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.Categories = ParseCategories(getEnv("TICKET_CATEGORIES", ""))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "ticket_desk")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverCSV:
		if c.StorePath == "" {
			return errors.New("config: STORE_PATH is required for the csv driver")
		}
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q (want csv or postgres)", c.StoreDriver)
	}
	if c.AppEnv == "production" {
		if c.AdminSecretHash == "" {
			return errors.New("config: in production ADMIN_SECRET_HASH is required")
		}
		if c.AdminSecret != "" {
			return errors.New("config: in production use ADMIN_SECRET_HASH instead of ADMIN_SECRET")
		}
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// NewRedisClient возвращает клиент Redis или nil, если REDIS_ADDR не задан или
// сервер недоступен: тогда ограничение попыток удаления отключается.
func (c *Config) NewRedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

// ParseCategories разбирает список через запятую; пустая строка даёт набор по умолчанию.
// Известные категории сравниваются без учёта регистра и сохраняют каноническое написание.
func ParseCategories(s string) []model.Category {
	var out []model.Category
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cat := model.Category(part)
		for _, known := range model.DefaultCategories {
			if strings.EqualFold(part, string(known)) {
				cat = known
				break
			}
		}
		out = append(out, cat)
	}
	if len(out) == 0 {
		return append([]model.Category(nil), model.DefaultCategories...)
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return b, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return d, nil
}
