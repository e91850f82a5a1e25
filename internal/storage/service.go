package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	artifactPrefix = "worksheets/"
	metaExtension  = ".json"
	fileIDPrefix   = "worksheet-"
)

var fileIDPattern = regexp.MustCompile(`^worksheet-[0-9a-f]{32}$`)

// ErrInvalidFileID est retourné pour un identifiant mal formé
var ErrInvalidFileID = errors.New("invalid file id")

// ArtifactMeta est la métadonnée stockée à côté de chaque artefact
type ArtifactMeta struct {
	FileID      string    `json:"file_id"`
	Extension   string    `json:"extension"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Filename retourne le nom proposé au téléchargement
func (m *ArtifactMeta) Filename() string {
	return m.FileID + m.Extension
}

// ArtifactService stocke les documents rendus par paires contenu + métadonnée
// avec une durée de vie. Un artefact expiré est supprimé à la lecture et
// pendant le ménage périodique.
type ArtifactService struct {
	storage storage.Storage
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewArtifactService(store storage.Storage, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *ArtifactService {
	return &ArtifactService{
		storage: store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.OrNop(log).Named("artifacts"),
		tracer:  otel.Tracer("ocf-material-worker/storage"),
		now:     time.Now,
	}
}

// ValidateFileID vérifie la forme worksheet-<32 hex>
func ValidateFileID(fileID string) error {
	if !fileIDPattern.MatchString(fileID) {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	return nil
}

func contentPath(fileID, ext string) string {
	return artifactPrefix + fileID + ext
}

func metaPath(fileID string) string {
	return artifactPrefix + fileID + metaExtension
}

// Save écrit le contenu puis sa métadonnée et retourne celle-ci
func (s *ArtifactService) Save(ctx context.Context, content []byte, ext, contentType string) (*ArtifactMeta, error) {
	ctx, span := s.tracer.Start(ctx, "ArtifactService.Save")
	defer span.End()

	meta := &ArtifactMeta{
		FileID:      fileIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Extension:   ext,
		ContentType: contentType,
		ExpiresAt:   s.now().UTC().Add(s.ttl),
	}
	span.SetAttributes(attribute.String("artifact.id", meta.FileID))

	if err := s.storage.Upload(ctx, contentPath(meta.FileID, ext), bytes.NewReader(content)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store artifact %s: %w", meta.FileID, err)
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact metadata: %w", err)
	}
	if err := s.storage.Upload(ctx, metaPath(meta.FileID), bytes.NewReader(raw)); err != nil {
		span.RecordError(err)
		s.deletePair(ctx, meta.FileID, ext)
		return nil, fmt.Errorf("failed to store artifact metadata %s: %w", meta.FileID, err)
	}

	s.logger.Debug("ArtifactService.Save: artifact stored",
		zap.String("file_id", meta.FileID), zap.Int("bytes", len(content)), zap.Time("expires_at", meta.ExpiresAt))
	return meta, nil
}

// Open retourne le contenu d'un artefact valide. Un artefact expiré ou
// incomplet est supprimé et signalé comme introuvable.
func (s *ArtifactService) Open(ctx context.Context, fileID string) (io.ReadCloser, *ArtifactMeta, error) {
	if err := ValidateFileID(fileID); err != nil {
		return nil, nil, storage.ErrNotFound
	}

	meta, err := s.loadMeta(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if meta == nil {
		return nil, nil, storage.ErrNotFound
	}

	if !s.now().Before(meta.ExpiresAt) {
		s.deletePair(ctx, fileID, meta.Extension)
		return nil, nil, storage.ErrNotFound
	}

	reader, err := s.storage.Download(ctx, contentPath(fileID, meta.Extension))
	if errors.Is(err, storage.ErrNotFound) {
		s.deletePair(ctx, fileID, meta.Extension)
		return nil, nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact %s: %w", fileID, err)
	}
	return reader, meta, nil
}

// CleanupExpired supprime les paires expirées et les métadonnées illisibles
func (s *ArtifactService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ArtifactService.CleanupExpired")
	defer span.End()

	files, err := s.storage.List(ctx, artifactPrefix)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to list artifacts: %w", err)
	}

	now := s.now()
	var removed int64
	for _, file := range files {
		if !strings.HasSuffix(file, metaExtension) {
			continue
		}
		fileID := strings.TrimSuffix(strings.TrimPrefix(file, artifactPrefix), metaExtension)

		meta, err := s.loadMeta(ctx, fileID)
		if err != nil {
			s.logger.Warn("ArtifactService.CleanupExpired: cannot read metadata", zap.String("file_id", fileID), zap.Error(err))
			continue
		}
		if meta == nil {
			s.deletePair(ctx, fileID, "")
			removed++
			continue
		}
		if !now.Before(meta.ExpiresAt) {
			s.deletePair(ctx, fileID, meta.Extension)
			removed++
		}
	}

	s.metrics.ArtifactsPurged(int(removed))
	return removed, nil
}

// loadMeta retourne nil, nil si la métadonnée est absente ou illisible
func (s *ArtifactService) loadMeta(ctx context.Context, fileID string) (*ArtifactMeta, error) {
	reader, err := s.storage.Download(ctx, metaPath(fileID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact metadata %s: %w", fileID, err)
	}
	defer reader.Close()

	var meta ArtifactMeta
	if err := json.NewDecoder(reader).Decode(&meta); err != nil || meta.ExpiresAt.IsZero() {
		return nil, nil
	}
	return &meta, nil
}

// deletePair supprime le contenu et la métadonnée; sans extension connue,
// tous les objets portant l'identifiant sont supprimés.
func (s *ArtifactService) deletePair(ctx context.Context, fileID, ext string) {
	paths := []string{metaPath(fileID)}
	if ext != "" {
		paths = append(paths, contentPath(fileID, ext))
	} else if found, err := s.storage.List(ctx, artifactPrefix+fileID+"."); err == nil {
		paths = append(paths, found...)
	}

	for _, path := range paths {
		if err := s.storage.Delete(ctx, path); err != nil {
			s.logger.Warn("ArtifactService: failed to delete object", zap.String("path", path), zap.Error(err))
		}
	}
}

// PublicURL construit l'URL de téléchargement servie par l'API
func PublicURL(baseURL, fileID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/worksheet/files/" + fileID
}
