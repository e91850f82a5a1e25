package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/storage"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	pkgstorage "github.com/Open-Course-Factory/ocf-material-worker/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArtifactReader ouvre un document rendu encore valide
type ArtifactReader interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, *storage.ArtifactMeta, error)
}

type StorageHandlers struct {
	artifacts ArtifactReader
	logger    *zap.Logger
}

func NewStorageHandlers(artifacts ArtifactReader, log *zap.Logger) *StorageHandlers {
	return &StorageHandlers{
		artifacts: artifacts,
		logger:    logger.OrNop(log).Named("api"),
	}
}

// DownloadWorksheetFile sert une fiche rendue tant qu'elle n'a pas expiré
// @Summary Télécharger une fiche d'activités
// @Description Un document expiré est supprimé à la lecture et renvoie 404.
// @Tags Worksheet
// @Produce text/markdown
// @Param file_id path string true "ID du document (worksheet-<32 hex>)"
// @Success 200 {file} binary "Contenu du document"
// @Failure 404 {object} models.ErrorResponse "Document introuvable ou expiré"
// @Router /worksheet/files/{file_id} [get]
func (h *StorageHandlers) DownloadWorksheetFile(c *gin.Context) {
	fileID := c.Param("file_id")

	reader, meta, err := h.artifacts.Open(c.Request.Context(), fileID)
	if errors.Is(err, pkgstorage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Worksheet file not found or expired."})
		return
	}
	if err != nil {
		h.logger.Error("StorageHandlers.DownloadWorksheetFile: failed to open artifact",
			zap.String("file_id", fileID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read worksheet file"})
		return
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		h.logger.Error("StorageHandlers.DownloadWorksheetFile: failed to read artifact",
			zap.String("file_id", fileID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read worksheet file"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, meta.Filename()))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, meta.ContentType, content)
}
