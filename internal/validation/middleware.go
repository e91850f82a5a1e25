// internal/validation/middleware.go
package validation

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"github.com/gin-gonic/gin"
)

// Clés du contexte gin renseignées par les validators
const (
	validatorKey          = "validator"
	ValidatedSubmission   = "validated_submission"
	ValidatedJobIDKey     = "validated_job_id"
	formFileField         = "file"
	formGenerateTypeField = "generate_types"
)

// Submission est une soumission validée, prête à être lue puis enfilée
type Submission struct {
	UserID      string
	CallbackURL string
	Filename    string
	ContentType string
	File        *multipart.FileHeader
	Material    *models.MaterialRequest
	Worksheet   *models.WorksheetRequest
}

// RequestValidator définit une fonction de validation pour une requête
type RequestValidator func(*gin.Context, *APIValidator) *ValidationResult

// InjectValidator place le validator dans le contexte de la requête
func InjectValidator(v *APIValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(validatorKey, v)
		c.Next()
	}
}

// ValidateRequest est le middleware principal qui exécute une liste de validators.
// Une erreur de paramètre donne 422, un fichier trop volumineux seul donne 413.
func ValidateRequest(validators ...RequestValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		validator := GetValidator(c)
		if validator == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Validation service unavailable"})
			c.Abort()
			return
		}

		// Exécuter toutes les validations dans l'ordre
		for _, validate := range validators {
			if result := validate(c, validator); !result.Valid {
				status := http.StatusUnprocessableEntity
				if result.OnlyFileTooLarge() {
					status = http.StatusRequestEntityTooLarge
				}
				c.JSON(status, gin.H{
					"error":             "Validation failed",
					"detail":            result.Message(),
					"validation_errors": result.Errors,
				})
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// GetValidator récupère le validator du contexte
func GetValidator(c *gin.Context) *APIValidator {
	if validator, exists := c.Get(validatorKey); exists {
		if apiValidator, ok := validator.(*APIValidator); ok {
			return apiValidator
		}
	}
	return nil
}

// GetSubmission retourne la soumission validée par ValidateMaterialSubmission
// ou ValidateWorksheetSubmission
func GetSubmission(c *gin.Context) (*Submission, bool) {
	value, ok := c.Get(ValidatedSubmission)
	if !ok {
		return nil, false
	}
	sub, ok := value.(*Submission)
	return sub, ok
}

// ValidateJobIDParam valide un paramètre d'URL contenant un id de job
func ValidateJobIDParam(paramName string) RequestValidator {
	return func(c *gin.Context, v *APIValidator) *ValidationResult {
		jobID := c.Param(paramName)
		result := v.ValidateJobIDParam(jobID)

		if result.Valid {
			c.Set(ValidatedJobIDKey, jobID)
		}

		return result
	}
}

// ValidateMaterialSubmission valide le formulaire multipart d'une soumission material
func ValidateMaterialSubmission(c *gin.Context, v *APIValidator) *ValidationResult {
	header, fileResult := formFile(c, v)

	req, result := v.ValidateMaterialForm(MaterialForm{
		UserID:          c.PostForm("user_id"),
		CallbackURL:     c.PostForm("callback_url"),
		GenerateTypes:   c.PostFormArray(formGenerateTypeField),
		MCQCount:        c.PostForm("mcq_count"),
		EssayCount:      c.PostForm("essay_count"),
		SummaryMaxWords: c.PostForm("summary_max_words"),
		MCPEnabled:      c.PostForm("mcp_enabled"),
	})
	result.Merge(fileResult)

	if result.Valid {
		c.Set(ValidatedSubmission, newSubmission(c, v, header, req, nil))
	}
	return result
}

// ValidateWorksheetSubmission valide le formulaire multipart d'une soumission worksheet
func ValidateWorksheetSubmission(c *gin.Context, v *APIValidator) *ValidationResult {
	header, fileResult := formFile(c, v)

	req, result := v.ValidateWorksheetForm(WorksheetForm{
		UserID:        c.PostForm("user_id"),
		CallbackURL:   c.PostForm("callback_url"),
		ActivityCount: c.PostForm("activity_count"),
	})
	result.Merge(fileResult)

	if result.Valid {
		c.Set(ValidatedSubmission, newSubmission(c, v, header, nil, req))
	}
	return result
}

func formFile(c *gin.Context, v *APIValidator) (*multipart.FileHeader, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	header, err := c.FormFile(formFileField)
	if err != nil {
		msg := "file is required"
		if !errors.Is(err, http.ErrMissingFile) {
			msg = "Failed to parse multipart form: " + err.Error()
		}
		result.AddError(formFileField, "", msg, CodeRequired)
		return nil, result
	}
	return header, v.validationService.ValidateFileHeader(header)
}

func newSubmission(c *gin.Context, v *APIValidator, header *multipart.FileHeader, material *models.MaterialRequest, worksheet *models.WorksheetRequest) *Submission {
	return &Submission{
		UserID:      c.PostForm("user_id"),
		CallbackURL: c.PostForm("callback_url"),
		Filename:    v.SanitizeFilename(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		File:        header,
		Material:    material,
		Worksheet:   worksheet,
	}
}

// CombineValidators combine plusieurs validators (tous doivent passer)
func CombineValidators(validators ...RequestValidator) RequestValidator {
	return func(c *gin.Context, v *APIValidator) *ValidationResult {
		for _, validator := range validators {
			if result := validator(c, v); !result.Valid {
				return result // Arrêter à la première erreur
			}
		}
		return &ValidationResult{Valid: true}
	}
}
