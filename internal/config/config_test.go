package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clubvote/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "HOST", "ENV", "ALLOWED_ORIGINS", "VOTING_MODE", "ELECTION_RETENTION",
		"USERS_FILE", "SESSION_DRIVER", "SESSION_DSN", "SESSION_TTL", "SESSION_COOKIE",
		"SESSION_SECURE", "KAFKA_BROKERS", "KAFKA_TOPIC", "LOG_LEVEL", "LOG_FORMAT",
	} {
		if value, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, value) })
		}
	}

	require := require.New(t)
	cfg := Load()

	require.Equal("0.0.0.0:8080", cfg.GetAddr())
	require.True(cfg.IsDevelopment())
	require.Equal("token", cfg.Voting.Mode)
	require.Zero(cfg.Voting.Retention)
	require.Equal("users.csv", cfg.Auth.UsersFile)
	require.Equal("sqlite", cfg.Session.Driver)
	require.Equal("data.sqlite", cfg.Session.DSN)
	require.Equal(24*time.Hour, cfg.Session.TTL)
	require.Equal("clubvote.sid", cfg.Session.CookieName)
	require.False(cfg.Session.Secure)
	require.Empty(cfg.Kafka.Brokers)
	require.Equal("election-events", cfg.Kafka.Topic)
	require.NoError(cfg.Validate())

	mode, err := cfg.VotingMode()
	require.NoError(err)
	require.Equal(domain.VotingModeTokenGated, mode)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("VOTING_MODE", "open")
	t.Setenv("ELECTION_RETENTION", "3600")
	t.Setenv("SESSION_DRIVER", "postgres")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SESSION_SECURE", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ALLOWED_ORIGINS", "https://club.example")

	require := require.New(t)
	cfg := Load()

	require.Equal("9000", cfg.Server.Port)
	require.True(cfg.IsProduction())
	require.True(cfg.SecureCookies())
	require.Equal(time.Hour, cfg.Voting.Retention)
	require.Equal("postgres", cfg.Session.Driver)
	require.Equal(30*time.Minute, cfg.Session.TTL)
	require.True(cfg.Session.Secure)
	require.Equal([]string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	require.Equal([]string{"https://club.example"}, cfg.Server.AllowedOrigins)
	require.NoError(cfg.Validate())

	mode, err := cfg.VotingMode()
	require.NoError(err)
	require.Equal(domain.VotingModeOpen, mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown voting mode", mutate: func(c *Config) { c.Voting.Mode = "ranked" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Session.Driver = "mysql" }},
		{name: "zero ttl", mutate: func(c *Config) { c.Session.TTL = 0 }},
		{name: "negative retention", mutate: func(c *Config) { c.Voting.Retention = -time.Second }},
		{name: "brokers without topic", mutate: func(c *Config) {
			c.Kafka.Brokers = []string{"localhost:9092"}
			c.Kafka.Topic = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Voting:  VotingConfig{Mode: "token"},
				Session: SessionConfig{Driver: "sqlite", TTL: time.Hour},
				Kafka:   KafkaConfig{Topic: "election-events"},
			}
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(os.WriteFile(path, []byte("CLUBVOTE_TEST_TOPIC=from-file\nCLUBVOTE_TEST_KEEP=from-file\n"), 0o600))

	t.Setenv("CLUBVOTE_TEST_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("CLUBVOTE_TEST_TOPIC") })

	require.NoError(LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	require.Equal("from-file", os.Getenv("CLUBVOTE_TEST_TOPIC"))
	require.Equal("from-env", os.Getenv("CLUBVOTE_TEST_KEEP"))
}
