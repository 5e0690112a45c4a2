package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	StoreType   string
	AppURL      string

	Database DatabaseConfig
	Mongo    MongoConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Mail     MailConfig
	Events   EventsConfig

	AdminAlertEmail      string
	AdminBootstrapSecret string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

type MongoConfig struct {
	URI      string
	Database string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// RedisConfig backs the asynq mail queue. An empty Addr disables the queue.
type RedisConfig struct {
	Addr     string
	Password string
}

type MailConfig struct {
	Provider string // smtp, plunk or log
	ReplyTo  string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	PlunkAPIKey string
	PlunkFrom   string
	PlunkAPIURL string

	Workers int
}

// EventsConfig points booking events at RabbitMQ. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		StoreType:   strings.ToLower(getEnv("STORE_TYPE", "postgres")),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "homeswift"),
			SSLMode:  getEnv("DB_SSLMODE", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "homeswift"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getDurationEnv("JWT_TTL", 72*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     redisAddr(),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(getEnv("MAIL_PROVIDER", "")),
			ReplyTo:      getEnv("MAIL_REPLY_TO", ""),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "465"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", ""),
			PlunkAPIKey:  getEnv("PLUNK_API_KEY", ""),
			PlunkFrom:    getEnv("PLUNK_FROM", ""),
			PlunkAPIURL:  getEnv("PLUNK_API_URL", "https://api.useplunk.com/v1/send"),
			Workers:      getIntEnv("MAIL_WORKERS", 4),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "bookings_topic"),
		},
		AdminAlertEmail:      getEnv("ADMIN_ALERT_EMAIL", ""),
		AdminBootstrapSecret: getEnv("ADMIN_BOOTSTRAP_SECRET", ""),
	}

	// Plunk wins when only its key is present.
	if cfg.Mail.Provider == "" {
		switch {
		case cfg.Mail.PlunkAPIKey != "":
			cfg.Mail.Provider = "plunk"
		case cfg.Mail.SMTPHost != "":
			cfg.Mail.Provider = "smtp"
		default:
			cfg.Mail.Provider = "log"
		}
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	switch c.Environment {
	case "development", "production", "test":
	default:
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be 'development', 'production', or 'test', got '%s'", c.Environment))
	}

	switch c.StoreType {
	case "postgres":
		if c.Database.Host == "" || c.Database.Port == "" || c.Database.Name == "" || c.Database.User == "" {
			errs = append(errs, errors.New("DB_HOST, DB_PORT, DB_USER and DB_NAME are required for the postgres store"))
		}
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("MONGO_URI and MONGO_DB are required for the mongo store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_TYPE must be 'postgres', 'mongo', or 'memory', got '%s'", c.StoreType))
	}

	if c.JWT.Secret == "" && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	switch c.Mail.Provider {
	case "smtp":
		if c.Mail.SMTPHost == "" || c.Mail.SMTPPort == "" || c.Mail.SMTPUsername == "" || c.Mail.SMTPPassword == "" || c.Mail.SMTPFrom == "" {
			errs = append(errs, errors.New("smtp mail requires SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM"))
		}
	case "plunk":
		if c.Mail.PlunkAPIKey == "" {
			errs = append(errs, errors.New("plunk mail requires PLUNK_API_KEY"))
		}
	case "log":
	default:
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER must be 'smtp', 'plunk', or 'log', got '%s'", c.Mail.Provider))
	}
	if c.Mail.Workers <= 0 {
		errs = append(errs, errors.New("MAIL_WORKERS must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// redisAddr prefers REDIS_ADDR, then REDIS_HOST/REDIS_PORT.
func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		return host + ":" + getEnv("REDIS_PORT", "6379")
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
