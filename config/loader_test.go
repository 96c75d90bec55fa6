// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.LockTimeout)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]
  jwt:
    secret: "s3cret"
    issuer: "prompt2cad"

database:
  driver: postgres
  host: db.internal
  port: 5432
  name: keychains

redis:
  enabled: true
  addr: "redis.example.com:6379"
  db: 1

storage:
  root: /var/lib/prompt2cad

pipeline:
  lock_timeout: 30s
  thickness_scale: 12.5
  points_threshold: 100

cad:
  mock: true
  prompt_version: v2

log:
  level: "debug"
  format: "console"
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.True(t, cfg.Server.JWT.Enabled())
	assert.Equal(t, "prompt2cad", cfg.Server.JWT.Issuer)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "keychains", cfg.Database.Name)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "/var/lib/prompt2cad", cfg.Storage.Root)
	assert.Equal(t, "/static", cfg.Storage.URLPrefix, "untouched keys keep their defaults")

	assert.Equal(t, 30*time.Second, cfg.Pipeline.LockTimeout)
	assert.InDelta(t, 12.5, cfg.Pipeline.ThicknessScale, 1e-9)
	assert.Equal(t, uint8(100), cfg.Pipeline.PointsThreshold)

	assert.True(t, cfg.CAD.Mock)
	assert.Equal(t, "v2", cfg.CAD.PromptVersion)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("PROMPT2CAD_SERVER_HTTP_PORT", "7777")
	t.Setenv("PROMPT2CAD_SERVER_API_KEYS", "a, b,,c")
	t.Setenv("PROMPT2CAD_SERVER_JWT_SECRET", "jwt-key")
	t.Setenv("PROMPT2CAD_REDIS_ENABLED", "true")
	t.Setenv("PROMPT2CAD_LLM_API_KEY", "sk-test")
	t.Setenv("PROMPT2CAD_PIPELINE_LOCK_TIMEOUT", "45s")
	t.Setenv("PROMPT2CAD_PIPELINE_POINTS_THRESHOLD", "64")
	t.Setenv("PROMPT2CAD_CAD_TEMPERATURE", "0.4")
	t.Setenv("PROMPT2CAD_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	assert.Equal(t, "jwt-key", cfg.Server.JWT.Secret)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.LockTimeout)
	assert.Equal(t, uint8(64), cfg.Pipeline.PointsThreshold)
	assert.InDelta(t, 0.4, cfg.CAD.Temperature, 1e-9)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
llm:
  model: yaml-model
  provider: deepseek
`)
	t.Setenv("PROMPT2CAD_SERVER_HTTP_PORT", "9999")
	t.Setenv("PROMPT2CAD_LLM_PROVIDER", "qwen")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "qwen", cfg.LLM.Provider)
	assert.Equal(t, "yaml-model", cfg.LLM.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_STORAGE_ROOT", "/srv/blobs")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "/srv/blobs", cfg.Storage.Root)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("PROMPT2CAD_PIPELINE_LOCK_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROMPT2CAD_PIPELINE_LOCK_TIMEOUT")
}

func TestLoader_PointsThresholdOverflow(t *testing.T) {
	t.Setenv("PROMPT2CAD_PIPELINE_POINTS_THRESHOLD", "300")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("PROMPT2CAD_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_ValidateAsValidator(t *testing.T) {
	t.Setenv("PROMPT2CAD_DATABASE_DRIVER", "oracle")

	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: [invalid
  this is not valid yaml
`)
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN gets pragmas",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		},
		{
			name:     "sqlite DSN with explicit params is kept",
			config:   DatabaseConfig{Driver: "sqlite", Name: "file::memory:?cache=shared"},
			expected: "file::memory:?cache=shared",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8080\n")

	assert.NotPanics(t, func() {
		cfg := MustLoad(path)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml")

	assert.Panics(t, func() {
		MustLoad(path)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("PROMPT2CAD_CAD_BINARY", "/opt/openscad/bin/openscad")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/opt/openscad/bin/openscad", cfg.CAD.Binary)
}
