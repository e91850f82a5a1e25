package garage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestConfig() *storage.StorageConfig {
	return &storage.StorageConfig{
		Type:      "garage",
		Endpoint:  getEnvOrDefault("TEST_GARAGE_ENDPOINT", "http://localhost:9000"),
		AccessKey: getEnvOrDefault("TEST_GARAGE_ACCESS_KEY", "minioadmin"),
		SecretKey: getEnvOrDefault("TEST_GARAGE_SECRET_KEY", "minioadmin"),
		Bucket:    getEnvOrDefault("TEST_GARAGE_BUCKET", "ocf-test"),
		Region:    getEnvOrDefault("TEST_GARAGE_REGION", "us-east-1"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestGarageStorageIntegration(t *testing.T) {
	if os.Getenv("SKIP_INTEGRATION_TESTS") != "" {
		t.Skip("Skipping integration tests")
	}

	store, err := NewGarageStorage(getTestConfig())
	if err != nil {
		t.Skipf("Cannot connect to test Garage/MinIO server: %v", err)
	}

	ctx := context.Background()
	t.Cleanup(func() {
		objects, _ := store.List(ctx, "test/")
		for _, obj := range objects {
			_ = store.Delete(ctx, obj)
		}
	})

	t.Run("Upload and Download", func(t *testing.T) {
		require.NoError(t, store.Upload(ctx, "test/worksheets/ws-1.md", strings.NewReader("# Worksheet")))

		exists, err := store.Exists(ctx, "test/worksheets/ws-1.md")
		assert.NoError(t, err)
		assert.True(t, exists)

		reader, err := store.Download(ctx, "test/worksheets/ws-1.md")
		require.NoError(t, err)
		defer reader.Close()
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "# Worksheet", string(data))
	})

	t.Run("List files with prefix", func(t *testing.T) {
		for _, path := range []string{"test/meta/a.json", "test/meta/b.json", "test/other/c.json"} {
			require.NoError(t, store.Upload(ctx, path, strings.NewReader("{}")))
		}

		files, err := store.List(ctx, "test/meta/")
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"test/meta/a.json", "test/meta/b.json"}, files)
	})

	t.Run("Non-existent file operations", func(t *testing.T) {
		_, err := store.Download(ctx, "test/non-existent.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		exists, err := store.Exists(ctx, "test/non-existent.txt")
		assert.NoError(t, err)
		assert.False(t, exists)

		assert.NoError(t, store.Delete(ctx, "test/non-existent.txt"))
	})
}

func TestContentType(t *testing.T) {
	tests := []struct {
		filename   string
		expectedCT string
	}{
		{"ws.md", "text/markdown; charset=utf-8"},
		{"ws.json", "application/json"},
		{"ws.PDF", "application/pdf"},
		{"ws.unknown", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expectedCT, contentType(tt.filename), "Content type for %s", tt.filename)
	}
}

func TestGarageStorageConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *storage.StorageConfig
	}{
		{"missing endpoint", &storage.StorageConfig{AccessKey: "test", SecretKey: "test", Bucket: "test"}},
		{"missing access key", &storage.StorageConfig{Endpoint: "http://localhost:9000", SecretKey: "test", Bucket: "test"}},
		{"missing secret key", &storage.StorageConfig{Endpoint: "http://localhost:9000", AccessKey: "test", Bucket: "test"}},
		{"missing bucket", &storage.StorageConfig{Endpoint: "http://localhost:9000", AccessKey: "test", SecretKey: "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGarageStorage(tt.config)
			assert.Error(t, err)
		})
	}
}
