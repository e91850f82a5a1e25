package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("CALLBACK_BACKOFFS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "redis", cfg.Queue.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Queue.JobTTL)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 150, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 6, cfg.RAG.TopK)
	assert.Equal(t, 20, cfg.RAG.FetchK)
	assert.Equal(t, 3, cfg.Callback.MaxRetries)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}, cfg.Callback.Backoffs)
	assert.Equal(t, int64(20*1024*1024), cfg.Material.MaxBytes())
	assert.Equal(t, 5, cfg.Worksheet.DefaultActivities)
	assert.Equal(t, time.Second, cfg.Worker.DequeueTimeout)
	assert.Equal(t, time.Minute, cfg.Worker.CleanupInterval)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
}

func TestConfigWithEnvVars(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9000")
	t.Setenv("QUEUE_BACKEND", "postgres")
	t.Setenv("RAG_TOP_K", "3")
	t.Setenv("RAG_MMR_LAMBDA", "0.7")
	t.Setenv("CALLBACK_MAX_RETRIES", "5")
	t.Setenv("CALLBACK_BACKOFFS", "2s, 4s")
	t.Setenv("APP_PUBLIC_BASE_URL", "https://worker.example.com/")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORAGE_TYPE", "minio")
	t.Setenv("STORAGE_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres", cfg.Queue.Backend)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.InDelta(t, 0.7, cfg.RAG.MMRLambda, 1e-9)
	assert.Equal(t, 5, cfg.Callback.MaxRetries)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, cfg.Callback.Backoffs)
	assert.Equal(t, "https://worker.example.com", cfg.PublicBaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.True(t, cfg.Storage.UseSSL)
}

func TestConfigInvalidBackoffsKeepDefault(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CALLBACK_BACKOFFS", "1s,oops")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Callback.Backoffs, 3)
}

func TestConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	content := `
port: "7000"
rag:
  chunkSize: 500
  chunkOverlap: 50
worksheet:
  defaultActivities: 4
  minActivities: 2
  maxActivities: 8
callback:
  backoffs: [2s, 3s]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")
	t.Setenv("CALLBACK_BACKOFFS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.Worksheet.DefaultActivities)
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, cfg.Callback.Backoffs)
	// Les sections absentes du fichier gardent leurs valeurs par défaut
	assert.Equal(t, 6, cfg.RAG.TopK)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Zero chunk size", func(c *Config) { c.RAG.ChunkSize = 0 }},
		{"Overlap not smaller than size", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }},
		{"Negative retries", func(c *Config) { c.Callback.MaxRetries = -1 }},
		{"No backoffs", func(c *Config) { c.Callback.Backoffs = nil }},
		{"Default outside range", func(c *Config) { c.Worksheet.DefaultActivities = 42 }},
		{"Empty max file size", func(c *Config) { c.Material.MaxFileMB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
