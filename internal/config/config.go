package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const minSecretLength = 32

type Config struct {
	ServerPort string
	JWTSecret  string
	TokenTTL   time.Duration

	DBDriver string
	DBDSN    string

	RedisURL     string
	RoleCacheTTL time.Duration

	AllowedOrigins []string

	LogLevel  logrus.Level
	LogFormat string
}

// Load reads an optional .env file and then the environment. Every problem
// is reported, each naming its variable.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		ServerPort: os.Getenv("SERVER_PORT"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		RedisURL:   os.Getenv("REDIS_URL"),
		LogFormat:  strings.ToLower(getenv("LOG_FORMAT", "text")),
	}

	if cfg.ServerPort == "" {
		errs = append(errs, errors.New("environment variable SERVER_PORT must be set"))
	}
	if len(cfg.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("environment variable JWT_SECRET must be at least %d characters", minSecretLength))
	}

	var err error
	if cfg.TokenTTL, err = duration("TOKEN_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.RoleCacheTTL, err = duration("ROLE_CACHE_TTL", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}

	cfg.DBDriver = getenv("DB_DRIVER", "postgres")
	switch cfg.DBDriver {
	case "postgres":
		cfg.DBDSN, err = postgresDSN()
		if err != nil {
			errs = append(errs, err)
		}
	case "sqlite3":
		cfg.DBDSN = os.Getenv("SQLITE_PATH")
		if cfg.DBDSN == "" {
			errs = append(errs, errors.New("environment variable SQLITE_PATH must be set when DB_DRIVER=sqlite3"))
		} else if !strings.Contains(cfg.DBDSN, "_foreign_keys") {
			cfg.DBDSN += sep(cfg.DBDSN) + "_foreign_keys=1"
		}
	default:
		errs = append(errs, fmt.Errorf("environment variable DB_DRIVER: unsupported driver %q", cfg.DBDriver))
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if cfg.LogLevel, err = logrus.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, fmt.Errorf("environment variable LOG_LEVEL: %w", err))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("environment variable LOG_FORMAT: want text or json, got %q", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func postgresDSN() (string, error) {
	required := []string{"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"}
	var missing []string
	for _, env := range required {
		if os.Getenv(env) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variables %s must be set", strings.Join(missing, ", "))
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("POSTGRES_HOST"), os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"), os.Getenv("POSTGRES_PORT")), nil
}

// NewLogger builds the process logger from the configured level and format.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("environment variable %s: invalid duration %q", key, v)
	}
	return d, nil
}

func sep(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}
