package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("VERIDOCS_CONFIG")
	defer os.Setenv("VERIDOCS_CONFIG", originalEnv)

	os.Setenv("VERIDOCS_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies run fails when the signing secret is absent.
func TestRun_MissingJWTSecret(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
service:
  name: veridocs
  environment: development

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("VERIDOCS_CONFIG")
	defer os.Setenv("VERIDOCS_CONFIG", originalEnv)
	os.Setenv("VERIDOCS_CONFIG", configPath)

	originalSecret := os.Getenv("VERIDOCS_JWT_SECRET")
	defer os.Setenv("VERIDOCS_JWT_SECRET", originalSecret)
	os.Unsetenv("VERIDOCS_JWT_SECRET")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("VERIDOCS_CONFIG")
	defer os.Setenv("VERIDOCS_CONFIG", originalEnv)

	os.Unsetenv("VERIDOCS_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("VERIDOCS_CONFIG")
	defer os.Setenv("VERIDOCS_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("VERIDOCS_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown boots the full service on an ephemeral port and
// cancels the context to exercise the shutdown path.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
service:
  name: veridocs
  environment: development

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

security:
  jwt:
    secret: "test-secret-at-least-32-characters!!"

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18099
  timeouts:
    read: 30
    write: 60
    idle: 120
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("VERIDOCS_CONFIG")
	defer os.Setenv("VERIDOCS_CONFIG", originalEnv)
	os.Setenv("VERIDOCS_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() returned error: %v", err)
	}
}
