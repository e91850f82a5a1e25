package rag

import (
	"context"
	"fmt"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresIndex persiste les chunks et leurs embeddings dans rag_chunks.
// Le classement MMR est calculé en mémoire sur les lignes d'un seul document.
type PostgresIndex struct {
	db       *gorm.DB
	embedder Embedder
}

func NewPostgresIndex(db *gorm.DB, embedder Embedder) *PostgresIndex {
	return &PostgresIndex{db: db, embedder: embedder}
}

func (p *PostgresIndex) Index(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]models.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = models.ChunkRecord{
			ChunkID:    c.ID,
			UserID:     c.UserID,
			DocumentID: c.DocumentID,
			Filename:   c.Filename,
			FileType:   c.FileType,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Embedding:  models.Vector(vectors[i]),
			UploadedAt: c.UploadedAt,
		}
	}

	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 100).Error
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, query string, opts SearchOptions) ([]Chunk, error) {
	var records []models.ChunkRecord
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ?", opts.UserID, opts.DocumentID).
		Order("chunk_index").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	qv, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = []float32(r.Embedding)
	}
	picked := rankMMR(qv, vectors, opts)

	out := make([]Chunk, len(picked))
	for i, idx := range picked {
		r := records[idx]
		out[i] = Chunk{
			ID:         r.ChunkID,
			UserID:     r.UserID,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			FileType:   r.FileType,
			Index:      r.ChunkIndex,
			Text:       r.Text,
			UploadedAt: r.UploadedAt,
			Source:     ChunkSource,
		}
	}
	return out, nil
}
