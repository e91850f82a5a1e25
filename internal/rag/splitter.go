package rag

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidChunking = errors.New("invalid chunking parameters")

// ValidateChunking vérifie size > 0 et 0 <= overlap < size
func ValidateChunking(size, overlap int) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: chunk size must be greater than zero", ErrInvalidChunking)
	case overlap < 0:
		return fmt.Errorf("%w: chunk overlap must be zero or greater", ErrInvalidChunking)
	case overlap >= size:
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidChunking)
	}
	return nil
}

// NormalizeWhitespace remplace toute suite d'espaces par un seul espace
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitText découpe le texte normalisé en fenêtres de size caractères
// se chevauchant de overlap caractères. Un texte vide donne zéro chunk.
func SplitText(text string, size, overlap int) ([]string, error) {
	if err := ValidateChunking(size, overlap); err != nil {
		return nil, err
	}

	clean := []rune(NormalizeWhitespace(text))
	if len(clean) == 0 {
		return nil, nil
	}
	if len(clean) <= size {
		return []string{string(clean)}, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(clean); start += step {
		end := start + size
		if end > len(clean) {
			end = len(clean)
		}
		if segment := NormalizeWhitespace(string(clean[start:end])); segment != "" {
			chunks = append(chunks, segment)
		}
		if start+size >= len(clean) {
			break
		}
	}
	return chunks, nil
}
