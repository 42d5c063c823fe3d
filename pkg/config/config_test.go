package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, "fair", cfg.Strategy)
	assert.Equal(t, 50, cfg.RegisterRetry.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.RegisterRetry.InitialBackoff)
	assert.Equal(t, 6, cfg.FetchRetry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.FetchRetry.Factor)
	assert.Equal(t, "ftp", cfg.Daemon.User)
	assert.Equal(t, "nextflowClient", cfg.Daemon.Password)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
namespace: wf
runName: run-42
localRoot: /scratch
batchSize: 25
strategy: locality
scheduler:
  image: example.com/sched:v2
  port: 9090
  nodeSelector:
    role: head
daemon:
  port: 2121
registerRetry:
  maxAttempts: 5
  initialBackoff: 1s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wf", cfg.Namespace)
	assert.Equal(t, "run-42", cfg.RunName)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, "locality", cfg.Strategy)
	assert.Equal(t, "example.com/sched:v2", cfg.Scheduler.Image)
	assert.Equal(t, 9090, cfg.Scheduler.Port)
	assert.Equal(t, "head", cfg.Scheduler.NodeSelector["role"])
	assert.Equal(t, 2121, cfg.Daemon.Port)
	assert.Equal(t, 5, cfg.RegisterRetry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RegisterRetry.InitialBackoff)

	// untouched sections keep their defaults
	assert.Equal(t, 6, cfg.FetchRetry.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Namespace = "wf"
		cfg.RunName = "r"
		cfg.LocalRoot = "/scratch"
		return cfg
	}

	tests := []struct {
		name  string
		mutate func(*Config)
	}{
		{"missing namespace", func(c *Config) { c.Namespace = "" }},
		{"missing run name", func(c *Config) { c.RunName = "" }},
		{"missing local root", func(c *Config) { c.LocalRoot = "" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"bad scheduler port", func(c *Config) { c.Scheduler.Port = 70000 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	r := Retry{MaxAttempts: 7, InitialBackoff: time.Millisecond, Factor: 2.0}
	p := r.Policy()
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 2.0, p.Factor)
}
