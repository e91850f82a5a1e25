// Package rag découpe, indexe et retrouve le texte des documents déposés.
// L'index vectoriel est optionnel: sans lui, la recherche se dégrade vers
// un classement par mots-clés sur la liste en mémoire.
package rag

import (
	"context"
	"fmt"
	"time"
)

// ChunkSource marque l'origine des chunks produits par l'indexation d'un upload
const ChunkSource = "uploaded_material_chunk"

// Chunk est une fenêtre de texte indexée
type Chunk struct {
	ID         string    `json:"chunk_id"`
	UserID     string    `json:"user_id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	Index      int       `json:"chunk_index"`
	Text       string    `json:"text"`
	UploadedAt time.Time `json:"uploaded_at"`
	Source     string    `json:"source"`
}

// ChunkID retourne l'identifiant déterministe {document_id}:chunk:{index}
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:chunk:%d", documentID, index)
}

// SearchOptions restreint la recherche à un (utilisateur, document) et règle le MMR
type SearchOptions struct {
	UserID     string
	DocumentID string
	K          int
	FetchK     int
	Lambda     float64
}

// VectorIndex est le backend de recherche par similarité
type VectorIndex interface {
	Index(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, opts SearchOptions) ([]Chunk, error)
}
