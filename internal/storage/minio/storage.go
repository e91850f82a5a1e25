package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/storage"
)

const noSuchKey = "NoSuchKey"

type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage crée un storage MinIO; l'endpoint est de la forme host:port sans schéma
func NewMinioStorage(cfg *storage.StorageConfig) (storage.Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	m := &minioStorage{client: client, bucket: cfg.Bucket}
	if err := m.ensureBucket(context.Background(), cfg.Region); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return m, nil
}

func (m *minioStorage) ensureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("bucket %s does not exist and cannot be created: %w", m.bucket, err)
	}
	return nil
}

func (m *minioStorage) Upload(ctx context.Context, path string, data io.Reader) error {
	key := strings.TrimPrefix(path, "/")

	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data for %s: %w", key, err)
	}

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, m.bucket, err)
	}
	return nil
}

// Download vérifie l'objet avant de le retourner: GetObject est paresseux
func (m *minioStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	key := strings.TrimPrefix(path, "/")

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download object %s from bucket %s: %w", key, m.bucket, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download object %s from bucket %s: %w", key, m.bucket, err)
	}
	return obj, nil
}

func (m *minioStorage) Exists(ctx context.Context, path string) (bool, error) {
	key := strings.TrimPrefix(path, "/")

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence %s: %w", key, err)
	}
	return true, nil
}

func (m *minioStorage) Delete(ctx context.Context, path string) error {
	key := strings.TrimPrefix(path, "/")

	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, m.bucket, err)
	}
	return nil
}

func (m *minioStorage) List(ctx context.Context, prefix string) ([]string, error) {
	cleanPrefix := strings.TrimPrefix(prefix, "/")

	var objects []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: cleanPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", cleanPrefix, obj.Err)
		}
		objects = append(objects, obj.Key)
	}
	return objects, nil
}
