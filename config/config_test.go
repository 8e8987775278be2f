package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected logging service name to follow name, got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production environment keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func(env string) ServiceConfig {
		cfg := ServiceConfig{Name: "svc", Environment: env}
		cfg.Logging.ApplyDefaults()
		return cfg
	}
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", valid("development"), false, ""},
		{"valid production", valid("production"), false, ""},
		{"missing name", ServiceConfig{Environment: "production"}, true, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, true, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

type testEngineConfig struct {
	Workers     int    `mapstructure:"workers"`
	DefaultMode string `mapstructure:"default_mode"`
}

type testAppConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Engine        testEngineConfig `yaml:"engine" mapstructure:"engine"`
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: seqdemo
environment: staging
engine:
  workers: 4
  default_mode: concurrent-ordered
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testAppConfig
	if err := LoadConfig("seqdemo", &cfg, WithConfigFile(configPath), WithEnvPrefix("SEQKIT_TEST_YAML")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "seqdemo" || cfg.Environment != "staging" {
		t.Errorf("unexpected base config %+v", cfg.ServiceConfig)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.DefaultMode != "concurrent-ordered" {
		t.Errorf("unexpected engine config %+v", cfg.Engine)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("engine:\n  workers: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEQKITENV_ENGINE_WORKERS", "16")
	t.Setenv("SEQKITENV_ENGINE_DEFAULT_MODE", "parallel-unordered")

	var cfg testAppConfig
	if err := LoadConfig("seqdemo", &cfg, WithConfigFile(configPath), WithEnvPrefix("SEQKITENV")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine.Workers != 16 {
		t.Errorf("expected env override 16, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.DefaultMode != "parallel-unordered" {
		t.Errorf("expected env override, got %q", cfg.Engine.DefaultMode)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testAppConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/seqdemo/config.yml": true,
		".env":                     true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("seqdemo", LoaderConfig{})
	if files.ConfigFile != "./cmd/seqdemo/config.yml" {
		t.Errorf("expected config file at ./cmd/seqdemo/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != ".env" {
		t.Errorf("expected .env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("seqdemo", LoaderConfig{ConfigFile: "/etc/x.yml"})
	if explicit.ConfigFile != "/etc/x.yml" {
		t.Errorf("explicit path must win, got %q", explicit.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(string) error    { return nil }

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("ENGINE_DEFAULT_MODE")
	want := map[string]bool{
		"engine_default_mode": true,
		"engine.default.mode": true,
		"engine.default_mode": true,
		"engine_default.mode": true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), got)
	}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected variant %q", v)
		}
	}
	if single := envKeyVariants("WORKERS"); len(single) != 1 || single[0] != "workers" {
		t.Errorf("unexpected single variant %v", single)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithEnvPrefix("APP")(&lc)
	if lc.FileSystem == nil || lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" || lc.EnvPrefix != "APP" {
		t.Errorf("unexpected loader config %+v", lc)
	}
}
