package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devJWTSecret = "default_super_secret_key"

type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	GinMode     string   `env:"GIN_MODE" envDefault:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`

	DB     DBConfig
	JWT    JWTConfig
	Log    LogConfig
	Access AccessConfig
	SMTP   SMTPConfig
	Kafka  KafkaConfig

	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN renders the postgres connection URL
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Name + "?sslmode=" + c.SSLMode
}

type JWTConfig struct {
	Secret   string        `env:"JWT_SECRET"`
	TokenTTL time.Duration `env:"JWT_TOKEN_TTL" envDefault:"1h"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type AccessConfig struct {
	// BreakGlassEmail, when set, is granted every capability. Empty disables it.
	BreakGlassEmail string        `env:"ACCESS_BREAK_GLASS_EMAIL"`
	CacheTTL        time.Duration `env:"ACCESS_CACHE_TTL" envDefault:"5m"`
}

type SMTPConfig struct {
	Host       string        `env:"SMTP_HOST"`
	Port       int           `env:"SMTP_PORT" envDefault:"587"`
	Username   string        `env:"SMTP_USERNAME"`
	Password   string        `env:"SMTP_PASSWORD"`
	From       string        `env:"SMTP_FROM"`
	FromName   string        `env:"SMTP_FROM_NAME" envDefault:"Opsdesk"`
	Recipients []string      `env:"NOTIFY_RECIPIENTS" envSeparator:","`
	Timeout    time.Duration `env:"SMTP_TIMEOUT" envDefault:"15s"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_ACTIVITY_TOPIC" envDefault:"activity-events"`
}

// Load reads the optional env file and then the process environment.
func Load(envPath string) (Config, error) {
	var c Config

	err := godotenv.Load(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envPath, err)
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if c.JWT.Secret == "" {
		if c.GinMode == "release" {
			return Config{}, errors.New("JWT_SECRET is required in release mode")
		}
		c.JWT.Secret = devJWTSecret // Development fallback only
	}

	return c, nil
}
