package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxConns     int    `env:"DB_MAX_CONNS" envDefault:"10"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis Config
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Auth Config
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Dispatch Config
	AlertRadiusMeters float64       `env:"ALERT_RADIUS_METERS" envDefault:"5000"`
	StalenessWindow   time.Duration `env:"STALENESS_WINDOW" envDefault:"5m"`
	DispatchTimeout   time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10s"`
	MailConcurrency   int           `env:"MAIL_CONCURRENCY" envDefault:"4"`

	// Mail Config
	SMTPHost           string        `env:"SMTP_HOST"`
	SMTPPort           int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser           string        `env:"SMTP_USER"`
	SMTPPass           string        `env:"SMTP_PASS"`
	SMTPFrom           string        `env:"SMTP_FROM"`
	FrontendURL        string        `env:"FRONTEND_URL"`
	MailQueueEnabled   bool          `env:"MAIL_QUEUE_ENABLED" envDefault:"false"`
	MailMaxRetries     int           `env:"MAIL_MAX_RETRIES" envDefault:"3"`
	MailRetryBaseDelay time.Duration `env:"MAIL_RETRY_BASE_DELAY" envDefault:"1s"`

	// Realtime Config
	WSPingInterval  time.Duration `env:"WS_PING_INTERVAL" envDefault:"25s"`
	WSWriteTimeout  time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSSendBuffer    int           `env:"WS_SEND_BUFFER" envDefault:"32"`
	PresenceBuckets int           `env:"PRESENCE_BUCKETS" envDefault:"32"`
}

// SMTPConfigured сообщает, заданы ли параметры SMTP. Без них письма только логируются.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getEnvAsInt("DB_MAX_CONNS", 10),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize:      getEnvAsInt("REDIS_POOL_SIZE", 10),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTL:             getEnvAsDuration("JWT_TTL", 24*time.Hour),
		AlertRadiusMeters:  getEnvAsFloat("ALERT_RADIUS_METERS", 5000),
		StalenessWindow:    getEnvAsDuration("STALENESS_WINDOW", 5*time.Minute),
		DispatchTimeout:    getEnvAsDuration("DISPATCH_TIMEOUT", 10*time.Second),
		MailConcurrency:    getEnvAsInt("MAIL_CONCURRENCY", 4),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPass:           os.Getenv("SMTP_PASS"),
		SMTPFrom:           os.Getenv("SMTP_FROM"),
		FrontendURL:        os.Getenv("FRONTEND_URL"),
		MailQueueEnabled:   getEnvAsBool("MAIL_QUEUE_ENABLED", false),
		MailMaxRetries:     getEnvAsInt("MAIL_MAX_RETRIES", 3),
		MailRetryBaseDelay: getEnvAsDuration("MAIL_RETRY_BASE_DELAY", time.Second),
		WSPingInterval:     getEnvAsDuration("WS_PING_INTERVAL", 25*time.Second),
		WSWriteTimeout:     getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		WSSendBuffer:       getEnvAsInt("WS_SEND_BUFFER", 32),
		PresenceBuckets:    getEnvAsInt("PRESENCE_BUCKETS", 32),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные и числовые параметры
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}
	if c.AlertRadiusMeters <= 0 {
		errs = append(errs, errors.New("ALERT_RADIUS_METERS must be positive"))
	}
	if c.StalenessWindow <= 0 {
		errs = append(errs, errors.New("STALENESS_WINDOW must be positive"))
	}
	if c.DispatchTimeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT must be positive"))
	}
	if c.MailConcurrency <= 0 {
		errs = append(errs, errors.New("MAIL_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
