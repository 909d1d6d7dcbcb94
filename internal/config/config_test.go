package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"REWARDS_CONFIG", "REWARDS_HTTP_PORT", "DATABASE_URL", "KAFKA_BROKERS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected default log level: %s", cfg.Logging.Level)
	}
	if cfg.Database.URL != "" || len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("unexpected backends configured: %+v", cfg)
	}
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rewards.yaml")
	data := []byte(`
server:
  port: 9000
database:
  url: postgres://file
auth:
  tokens: [alpha]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("REWARDS_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("API_TOKENS", "beta,gamma")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("file port not applied: %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env" {
		t.Fatalf("env override not applied: %s", cfg.Database.URL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers not parsed: %v", cfg.Kafka.Brokers)
	}
	if len(cfg.Auth.Tokens) != 2 || cfg.Auth.Tokens[0] != "beta" {
		t.Fatalf("tokens override not applied: %v", cfg.Auth.Tokens)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("REWARDS_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("REWARDS_CONFIG", "")
	t.Setenv("REWARDS_HTTP_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}
