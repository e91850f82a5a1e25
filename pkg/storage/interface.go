package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound est retourné lorsqu'un objet n'existe pas dans le backend
var ErrNotFound = errors.New("object not found")

// Storage définit l'interface pour le stockage des artefacts rendus
type Storage interface {
	// Upload un fichier vers le storage
	Upload(ctx context.Context, path string, data io.Reader) error

	// Download ouvre un fichier; l'appelant ferme le lecteur.
	// Retourne une erreur enveloppant ErrNotFound si l'objet n'existe pas.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists vérifie si un fichier existe
	Exists(ctx context.Context, path string) (bool, error)

	// Delete supprime un fichier
	Delete(ctx context.Context, path string) error

	// List liste les fichiers avec un préfixe donné
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageConfig contient la configuration du storage
type StorageConfig struct {
	Type      string `yaml:"type"`     // "filesystem", "garage" ou "minio"
	BasePath  string `yaml:"basePath"` // Pour filesystem
	Endpoint  string `yaml:"endpoint"` // Pour S3/Garage/MinIO
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"` // MinIO uniquement
}
