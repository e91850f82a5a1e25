package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/storage/filesystem"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*ArtifactService, storage.Storage, *time.Time) {
	t.Helper()
	backend, err := filesystem.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewArtifactService(backend, 24*time.Hour, nil, nil)
	svc.now = func() time.Time { return now }
	return svc, backend, &now
}

func TestArtifactService(t *testing.T) {
	ctx := context.Background()

	t.Run("Save and Open", func(t *testing.T) {
		svc, _, now := newTestService(t)

		meta, err := svc.Save(ctx, []byte("# Worksheet"), ".md", "text/markdown")
		require.NoError(t, err)
		assert.NoError(t, ValidateFileID(meta.FileID))
		assert.Equal(t, now.Add(24*time.Hour), meta.ExpiresAt)
		assert.Equal(t, meta.FileID+".md", meta.Filename())

		reader, got, err := svc.Open(ctx, meta.FileID)
		require.NoError(t, err)
		defer reader.Close()
		data, _ := io.ReadAll(reader)
		assert.Equal(t, "# Worksheet", string(data))
		assert.Equal(t, "text/markdown", got.ContentType)
	})

	t.Run("Expired artifact is deleted on read", func(t *testing.T) {
		svc, backend, now := newTestService(t)

		meta, err := svc.Save(ctx, []byte("old"), ".md", "text/markdown")
		require.NoError(t, err)

		*now = now.Add(24 * time.Hour)
		_, _, err = svc.Open(ctx, meta.FileID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		files, err := backend.List(ctx, "worksheets/")
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("Unknown and malformed ids", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, _, err := svc.Open(ctx, "worksheet-"+strings.Repeat("a", 32))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, _, err = svc.Open(ctx, "../../etc/passwd")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Cleanup removes expired pairs and unreadable metadata", func(t *testing.T) {
		svc, backend, now := newTestService(t)

		old, err := svc.Save(ctx, []byte("old"), ".md", "text/markdown")
		require.NoError(t, err)

		*now = now.Add(12 * time.Hour)
		fresh, err := svc.Save(ctx, []byte("fresh"), ".md", "text/markdown")
		require.NoError(t, err)

		broken := "worksheet-" + strings.Repeat("b", 32)
		require.NoError(t, backend.Upload(ctx, "worksheets/"+broken+".json", strings.NewReader("not json")))
		require.NoError(t, backend.Upload(ctx, "worksheets/"+broken+".md", strings.NewReader("orphan")))

		*now = now.Add(12 * time.Hour)
		removed, err := svc.CleanupExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		files, err := backend.List(ctx, "worksheets/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"worksheets/" + fresh.FileID + ".md",
			"worksheets/" + fresh.FileID + ".json",
		}, files)

		_, _, err = svc.Open(ctx, old.FileID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://worker.example.com/api/v1/worksheet/files/worksheet-1",
		PublicURL("https://worker.example.com/", "worksheet-1"))
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(&storage.StorageConfig{Type: "filesystem", BasePath: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = NewStorage(&storage.StorageConfig{Type: "floppy"})
	assert.ErrorContains(t, err, "unknown storage type")
}
