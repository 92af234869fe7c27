package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

var allVars = []string{
	"SERVER_PORT", "JWT_SECRET", "TOKEN_TTL", "DB_DRIVER", "SQLITE_PATH",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
	"REDIS_URL", "ROLE_CACHE_TTL", "ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, env[k])
	}
}

func validEnv() map[string]string {
	return map[string]string{
		"SERVER_PORT":       "8080",
		"JWT_SECRET":        strings.Repeat("s", 32),
		"POSTGRES_HOST":     "localhost",
		"POSTGRES_PORT":     "5432",
		"POSTGRES_USER":     "boards",
		"POSTGRES_PASSWORD": "secret",
		"POSTGRES_DB":       "boards",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	want := "host=localhost user=boards password=secret dbname=boards port=5432 sslmode=disable"
	if cfg.DBDSN != want {
		t.Errorf("DBDSN = %q, want %q", cfg.DBDSN, want)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.RoleCacheTTL != 5*time.Minute {
		t.Errorf("TTL defaults = %v, %v", cfg.TokenTTL, cfg.RoleCacheTTL)
	}
	if cfg.LogLevel != logrus.InfoLevel || cfg.LogFormat != "text" {
		t.Errorf("log defaults = %v, %q", cfg.LogLevel, cfg.LogFormat)
	}
	if len(cfg.AllowedOrigins) != 0 || cfg.RedisURL != "" {
		t.Errorf("unexpected optional values: %+v", cfg)
	}
}

func TestFromEnv_SQLiteAndOptionals(t *testing.T) {
	env := validEnv()
	env["DB_DRIVER"] = "sqlite3"
	env["SQLITE_PATH"] = "file:boards.db?cache=shared"
	env["TOKEN_TTL"] = "1h"
	env["ROLE_CACHE_TTL"] = "30s"
	env["REDIS_URL"] = "redis://localhost:6379/0"
	env["ALLOWED_ORIGINS"] = "https://a.example, https://b.example,,"
	env["LOG_LEVEL"] = "debug"
	env["LOG_FORMAT"] = "JSON"
	setEnv(t, env)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.DBDSN != "file:boards.db?cache=shared&_foreign_keys=1" {
		t.Errorf("DBDSN = %q", cfg.DBDSN)
	}
	if cfg.TokenTTL != time.Hour || cfg.RoleCacheTTL != 30*time.Second {
		t.Errorf("TTLs = %v, %v", cfg.TokenTTL, cfg.RoleCacheTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if cfg.LogLevel != logrus.DebugLevel || cfg.LogFormat != "json" {
		t.Errorf("log = %v, %q", cfg.LogLevel, cfg.LogFormat)
	}
	if _, ok := cfg.NewLogger().Formatter.(*logrus.JSONFormatter); !ok {
		t.Error("json format should give a JSONFormatter")
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantVar string
	}{
		{"missing port", func(e map[string]string) { delete(e, "SERVER_PORT") }, "SERVER_PORT"},
		{"short secret", func(e map[string]string) { e["JWT_SECRET"] = "short" }, "JWT_SECRET"},
		{"missing postgres host", func(e map[string]string) { delete(e, "POSTGRES_HOST") }, "POSTGRES_HOST"},
		{"sqlite without path", func(e map[string]string) { e["DB_DRIVER"] = "sqlite3" }, "SQLITE_PATH"},
		{"unknown driver", func(e map[string]string) { e["DB_DRIVER"] = "mysql" }, "DB_DRIVER"},
		{"bad ttl", func(e map[string]string) { e["TOKEN_TTL"] = "tomorrow" }, "TOKEN_TTL"},
		{"negative cache ttl", func(e map[string]string) { e["ROLE_CACHE_TTL"] = "-1m" }, "ROLE_CACHE_TTL"},
		{"bad level", func(e map[string]string) { e["LOG_LEVEL"] = "loud" }, "LOG_LEVEL"},
		{"bad format", func(e map[string]string) { e["LOG_FORMAT"] = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnv()
			tt.mutate(env)
			setEnv(t, env)

			_, err := FromEnv()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantVar) {
				t.Errorf("error %q does not name %s", err, tt.wantVar)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	// godotenv never overrides a variable that is present, even when empty
	for _, k := range allVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	path := filepath.Join(t.TempDir(), ".env")
	content := "SERVER_PORT=9090\nJWT_SECRET=" + strings.Repeat("x", 40) + "\nDB_DRIVER=sqlite3\nSQLITE_PATH=boards.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "9090" || cfg.DBDSN != "boards.db?_foreign_keys=1" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	setEnv(t, validEnv())
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
}
