// Package extract convertit un fichier déposé (.pdf, .pptx, .txt) en texte brut normalisé.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("Unsupported file type. Allowed extensions: .pdf, .pptx, .txt")
	ErrEmptyText       = errors.New("Extracted text is empty.")
	// ErrMaterialTooLarge est la cible errors.Is de SizeError
	ErrMaterialTooLarge = errors.New("material too large")
)

// SizeError signale un fichier dépassant la taille maximale autorisée
type SizeError struct {
	MaxMB int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("File exceeds maximum size of %d MB.", e.MaxMB)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrMaterialTooLarge
}

// CheckSize retourne une SizeError si size dépasse maxMB mégaoctets
func CheckSize(size int64, maxMB int) error {
	if maxMB > 0 && size > int64(maxMB)*1024*1024 {
		return &SizeError{MaxMB: maxMB}
	}
	return nil
}

// Result est le texte extrait avec son type et les avertissements éventuels
type Result struct {
	Text     string
	FileType string
	Warnings []string
}

// Extract choisit le lecteur selon l'extension du nom de fichier
func Extract(filename, contentType string, payload []byte) (*Result, error) {
	var (
		text     string
		fileType string
		err      error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		fileType = "pdf"
		text, err = FromPDF(payload)
	case ".pptx":
		fileType = "pptx"
		text, err = FromPPTX(payload)
	case ".txt":
		fileType = "txt"
		text = FromTXT(payload)
	default:
		return nil, ErrUnsupportedType
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	res := &Result{Text: text, FileType: fileType}
	if contentType != "" && fileType == "txt" && !strings.Contains(strings.ToLower(contentType), "text") {
		res.Warnings = append(res.Warnings, "Uploaded file extension is .txt but content-type is unusual.")
	}
	return res, nil
}

// Normalize retire les octets NUL et réduit les espaces
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(text, "\x00", " ")), " ")
}

func readError(kind string, err error) error {
	return fmt.Errorf("Failed to read %s file: %w", kind, err)
}
