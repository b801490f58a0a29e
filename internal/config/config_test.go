package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("MEMOS_TEST_PORT", "9090")
	path := writeConfig(t, `{
		"server": {"port": ${MEMOS_TEST_PORT:8080}, "log_level": "${MEMOS_TEST_LEVEL:debug}"},
		"database": {"postgres": {"dsn": "${MEMOS_TEST_DSN:}"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want env value 9090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q, want default", cfg.Server.LogLevel)
	}
	if cfg.Database.Postgres.DSN != "" {
		t.Errorf("dsn = %q, want empty default", cfg.Database.Postgres.DSN)
	}
}

func TestReflectionEveryDefault(t *testing.T) {
	var a AgentConfig
	if got := a.ReflectionEvery(); got != 20*time.Second {
		t.Errorf("default interval = %v", got)
	}
	a.ReflectionInterval = "5s"
	if got := a.ReflectionEvery(); got != 5*time.Second {
		t.Errorf("interval = %v, want 5s", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
