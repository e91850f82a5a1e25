package worker

import (
	"errors"
	"strings"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/extract"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/generation"
)

// Codes d'erreur transmis dans le callback d'un job en échec
const (
	CodeModelToolUseFailed       = "model_tool_use_failed"
	CodeMaterialTooLarge         = "material_too_large"
	CodeMaterialValidationError  = "material_validation_error"
	CodeWorksheetValidationError = "worksheet_validation_error"
	CodeProcessingError          = "processing_error"
)

// MapErrorCode associe une erreur de traitement à son code.
// Un échec d'appel d'outil du modèle l'emporte sur le type de l'erreur.
func MapErrorCode(err error) string {
	if err == nil {
		return CodeProcessingError
	}
	if strings.Contains(strings.ToLower(err.Error()), "tool_use_failed") {
		return CodeModelToolUseFailed
	}
	if errors.Is(err, extract.ErrMaterialTooLarge) {
		return CodeMaterialTooLarge
	}

	var verr *generation.ValidationError
	if errors.As(err, &verr) {
		if verr.Kind == generation.KindWorksheet {
			return CodeWorksheetValidationError
		}
		return CodeMaterialValidationError
	}
	return CodeProcessingError
}
