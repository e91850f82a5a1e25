package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobRecord est la ligne clé/valeur avec expiration utilisée par le backend postgres du job store
type JobRecord struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Payload   []byte    `gorm:"type:bytea;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time
}

func (JobRecord) TableName() string { return "job_records" }

// QueueItem est une entrée FIFO; l'ordre est celui de l'identifiant auto-incrémenté
type QueueItem struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Queue     string `gorm:"size:255;index;not null"`
	Value     string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

func (QueueItem) TableName() string { return "queue_items" }

// Vector stocke un embedding en JSON (compatible sans extension pgvector)
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal([]float32{})
	}
	return json.Marshal([]float32(v))
}

func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = Vector{}
		return nil
	}

	var bytes []byte
	switch val := value.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	default:
		return fmt.Errorf("cannot scan %T into Vector", value)
	}

	if len(bytes) == 0 {
		*v = Vector{}
		return nil
	}

	return json.Unmarshal(bytes, v)
}

// ChunkRecord est un chunk indexé avec son embedding (backend postgres du RAG)
type ChunkRecord struct {
	ChunkID    string    `gorm:"primaryKey;size:255"`
	UserID     string    `gorm:"size:255;index:idx_chunk_scope,priority:1;not null"`
	DocumentID string    `gorm:"size:255;index:idx_chunk_scope,priority:2;not null"`
	Filename   string    `gorm:"size:512"`
	FileType   string    `gorm:"size:32"`
	ChunkIndex int       `gorm:"not null"`
	Text       string    `gorm:"type:text;not null"`
	Embedding  Vector    `gorm:"type:jsonb"`
	UploadedAt time.Time `gorm:"not null"`
}

func (ChunkRecord) TableName() string { return "rag_chunks" }
