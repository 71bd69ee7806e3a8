package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"clubvote/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Voting  VotingConfig
	Auth    AuthConfig
	Session SessionConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string
	Host           string
	Env            string // "development" or "production"
	AllowedOrigins []string
}

// VotingConfig holds election-related configuration
type VotingConfig struct {
	Mode      string // "open" or "token"
	Retention time.Duration
}

// AuthConfig holds login configuration
type AuthConfig struct {
	UsersFile string
}

// SessionConfig holds cookie session configuration
type SessionConfig struct {
	Driver     string // "sqlite" or "postgres"
	DSN        string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// KafkaConfig holds event publishing configuration. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// LoadDotEnv loads variables from the given .env files when they exist.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "0.0.0.0"),
			Env:            getEnv("ENV", "development"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", nil),
		},
		Voting: VotingConfig{
			Mode:      getEnv("VOTING_MODE", "token"),
			Retention: getEnvDuration("ELECTION_RETENTION", 0),
		},
		Auth: AuthConfig{
			UsersFile: getEnv("USERS_FILE", "users.csv"),
		},
		Session: SessionConfig{
			Driver:     getEnv("SESSION_DRIVER", "sqlite"),
			DSN:        getEnv("SESSION_DSN", "data.sqlite"),
			TTL:        getEnvDuration("SESSION_TTL", 24*time.Hour),
			CookieName: getEnv("SESSION_COOKIE", "clubvote.sid"),
			Secure:     getEnvBool("SESSION_SECURE", false),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "election-events"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate checks values that have a fixed set of allowed options
func (c *Config) Validate() error {
	if _, err := c.VotingMode(); err != nil {
		return err
	}

	switch c.Session.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}

	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Voting.Retention < 0 {
		return errors.New("election retention cannot be negative")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}

	return nil
}

// VotingMode returns the parsed voting mode
func (c *Config) VotingMode() (domain.VotingMode, error) {
	return domain.ParseVotingMode(c.Voting.Mode)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// SecureCookies reports whether session cookies carry the Secure flag.
// Production always does.
func (c *Config) SecureCookies() bool {
	return c.Session.Secure || c.IsProduction()
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool returns an environment variable as a bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "24h") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
