// 配置加载器测试。
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/agent/persistence"
	"github.com/BaSui01/streamrelay/internal/database"
	"github.com/BaSui01/streamrelay/llm/factory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleYAML = `
server:
  http_port: 8888
  read_timeout: 60s

llm:
  default_provider: anthropic
  max_retries: 5
  retry_base_delay: 250ms
  providers:
    anthropic:
      model: claude-3-5-sonnet-20241022
      timeout: 45s
    ollama:
      base_url: http://localhost:11434
      model: llama3

orchestration:
  history_limit: 10
  history_store: redis

tasks:
  - name: global
    instructions: Answer briefly.
    tools: [getWeather]
    model: anthropic/claude-3-5-sonnet-20241022
    model_config:
      temperature: 0.3
  - name: home
    instructions: You are a helpful assistant.
    model: global

redis:
  addr: "redis.example.com:6379"
  key_prefix: "sr:"

log:
  level: debug
  format: console
`

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(writeConfig(t, sampleYAML)).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	// untouched keys keep defaults
	assert.Equal(t, 9091, cfg.Server.MetricsPort)

	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.RetryBaseDelay)
	require.Len(t, cfg.LLM.Providers, 2)
	assert.Equal(t, 45*time.Second, cfg.LLM.Providers["anthropic"].Timeout)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Providers["ollama"].BaseURL)

	assert.Equal(t, 10, cfg.Orchestration.HistoryLimit)
	assert.Equal(t, "redis", cfg.Orchestration.HistoryStore)
	assert.Equal(t, "home", cfg.Orchestration.DefaultTask)

	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, []string{"getWeather"}, cfg.Tasks[0].ToolIDs)
	require.NotNil(t, cfg.Tasks[0].ModelConfig.Temperature)
	assert.InDelta(t, 0.3, *cfg.Tasks[0].ModelConfig.Temperature, 0.001)
	assert.True(t, cfg.Tasks[1].UsesGlobalModel())

	assert.Equal(t, "sr:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.NoError(t, cfg.Validate())

	reg := cfg.LLM.Registry()
	assert.Equal(t, "anthropic", reg.Default)
	assert.Len(t, reg.Providers, 2)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	t.Setenv("STREAMRELAY_SERVER_HTTP_PORT", "9999")
	t.Setenv("STREAMRELAY_LLM_RETRY_BASE_DELAY", "2s")
	t.Setenv("STREAMRELAY_ORCHESTRATION_HISTORY_LIMIT", "7")
	t.Setenv("STREAMRELAY_SERVER_RATE_LIMIT_RPS", "12.5")
	t.Setenv("STREAMRELAY_TELEMETRY_ENABLED", "true")
	t.Setenv("STREAMRELAY_LOG_OUTPUT_PATHS", "stdout, /tmp/streamrelay.log")

	cfg, err := NewLoader().WithConfigPath(writeConfig(t, sampleYAML)).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, 7, cfg.Orchestration.HistoryLimit)
	assert.Equal(t, 12.5, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, []string{"stdout", "/tmp/streamrelay.log"}, cfg.Log.OutputPaths)
	// yaml value survives where no env is set
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_BadEnvValue(t *testing.T) {
	t.Setenv("STREAMRELAY_SERVER_HTTP_PORT", "eighty")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STREAMRELAY_SERVER_HTTP_PORT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("STREAMRELAY_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Server.HTTPPort < 1024 {
				return errors.New("privileged port")
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "privileged port")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	_, err := NewLoader().WithConfigPath(writeConfig(t, "server: [unclosed")).Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "negative retries", mutate: func(c *Config) { c.LLM.MaxRetries = -1 }, wantErr: "max_retries"},
		{name: "zero history", mutate: func(c *Config) { c.Orchestration.HistoryLimit = 0 }, wantErr: "history_limit"},
		{name: "unknown store", mutate: func(c *Config) { c.Orchestration.HistoryStore = "file" }, wantErr: "history_store"},
		{name: "redis task store", mutate: func(c *Config) { c.Orchestration.TaskStore = "redis" }, wantErr: "task_store"},
		{name: "sql without driver", mutate: func(c *Config) {
			c.Orchestration.TaskStore = "sql"
			c.Database.Driver = ""
		}, wantErr: "database"},
		{name: "missing default provider", mutate: func(c *Config) {
			c.LLM.Providers = map[string]factory.ProviderConfig{"gemini": {}}
		}, wantErr: `default provider "openai"`},
		{name: "duplicate tasks", mutate: func(c *Config) {
			c.Tasks = []agent.TaskConfig{{Name: "home"}, {Name: "home"}}
		}, wantErr: "duplicate task"},
		{name: "unnamed task", mutate: func(c *Config) { c.Tasks = []agent.TaskConfig{{}} }, wantErr: "task name"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "log level"},
		{name: "sample rate", mutate: func(c *Config) { c.Telemetry.SampleRate = 2 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DefaultDatabaseConfig()
	assert.Equal(t, "host=localhost port=5432 user=streamrelay password= dbname=streamrelay sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "relay"}
	assert.Equal(t, "u:p@tcp(db:3306)/relay?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	assert.Equal(t, ":memory:", lite.DSN())

	assert.Empty(t, (&DatabaseConfig{Driver: "oracle"}).DSN())
}

func TestDatabaseConfig_Connection(t *testing.T) {
	d := DatabaseConfig{Driver: "sqlite", Path: "relay.db", MaxOpenConns: 2, MaxIdleConns: 8}
	conn := d.Connection()

	assert.Equal(t, database.DriverSQLite, conn.Driver)
	assert.Equal(t, "relay.db", conn.DSN)
	assert.Equal(t, 2, conn.Pool.MaxOpenConns)
	assert.Equal(t, 2, conn.Pool.MaxIdleConns, "idle is clamped to open")
	require.NoError(t, conn.Pool.Validate())
}

func TestConfig_Stores(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(writeConfig(t, sampleYAML)).Load()
	require.NoError(t, err)

	stores := cfg.Stores()
	assert.Equal(t, persistence.StoreTypeRedis, stores.Messages)
	assert.Equal(t, persistence.StoreTypeMemory, stores.Tasks)
	assert.Equal(t, "redis.example.com:6379", stores.Redis.Addr)
	assert.Equal(t, "sr:", stores.Redis.KeyPrefix)
	assert.False(t, cfg.UsesSQL())

	cfg.Orchestration.TaskStore = "sql"
	assert.True(t, cfg.UsesSQL())
}
