// internal/validation/api_validation.go - Validation spécifique à l'API

package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

var jobIDPattern = regexp.MustCompile(`^job-[0-9a-f]{32}$`)

// DefaultUploadFilename remplace un nom de fichier absent
const DefaultUploadFilename = "uploaded_material"

// APIValidator gère la validation des requêtes API
type APIValidator struct {
	validationService *ValidationService
	config            *ValidationConfig
}

// MaterialForm contient les champs bruts d'une soumission material
type MaterialForm struct {
	UserID          string
	CallbackURL     string
	GenerateTypes   []string
	MCQCount        string
	EssayCount      string
	SummaryMaxWords string
	MCPEnabled      string
}

// WorksheetForm contient les champs bruts d'une soumission worksheet
type WorksheetForm struct {
	UserID        string
	CallbackURL   string
	ActivityCount string
}

// NewAPIValidator crée un nouveau validateur d'API
func NewAPIValidator(config *ValidationConfig) *APIValidator {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &APIValidator{
		validationService: NewValidationService(config),
		config:            config,
	}
}

// Service retourne le service de validation sous-jacent
func (av *APIValidator) Service() *ValidationService {
	return av.validationService
}

// ValidateMaterialForm valide les paramètres material et applique les valeurs par défaut
func (av *APIValidator) ValidateMaterialForm(form MaterialForm) (*models.MaterialRequest, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	result.Merge(av.validationService.ValidateUserID(form.UserID))
	result.Merge(av.validationService.ValidateCallbackURL(form.CallbackURL))

	req := &models.MaterialRequest{MCPEnabled: true}

	req.GenerateTypes = av.parseGenerateTypes(form.GenerateTypes, result)

	req.MCQCount = av.parseInt(result, "mcq_count", form.MCQCount, models.DefaultMCQCount)
	result.Merge(av.validationService.ValidateRange("mcq_count", req.MCQCount, models.MinMCQCount, models.MaxMCQCount))

	req.EssayCount = av.parseInt(result, "essay_count", form.EssayCount, models.DefaultEssayCount)
	result.Merge(av.validationService.ValidateRange("essay_count", req.EssayCount, models.MinEssayCount, models.MaxEssayCount))

	req.SummaryMaxWords = av.parseInt(result, "summary_max_words", form.SummaryMaxWords, models.DefaultSummaryMaxWords)
	result.Merge(av.validationService.ValidateRange("summary_max_words", req.SummaryMaxWords, models.MinSummaryMaxWords, models.MaxSummaryMaxWords))

	if raw := strings.TrimSpace(form.MCPEnabled); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			result.AddError("mcp_enabled", raw, "mcp_enabled must be a boolean", CodeInvalidValue)
		} else {
			req.MCPEnabled = enabled
		}
	}

	return req, result
}

// parseGenerateTypes accepte des champs répétés ou une liste séparée par des virgules
func (av *APIValidator) parseGenerateTypes(values []string, result *ValidationResult) []models.GenerateType {
	var types []models.GenerateType
	seen := make(map[models.GenerateType]bool)
	rejected := false

	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			gt := models.GenerateType(part)
			if !gt.IsValid() {
				result.AddError("generate_types", part,
					"generate_types must contain only mcq, essay or summary", CodeInvalidValue)
				rejected = true
				continue
			}
			if seen[gt] {
				result.AddError("generate_types", part, "generate_types must not contain duplicates", CodeDuplicate)
				rejected = true
				continue
			}
			seen[gt] = true
			types = append(types, gt)
		}
	}

	if len(types) == 0 && !rejected {
		result.AddError("generate_types", "", "generate_types must contain at least one type", CodeRequired)
	}
	return types
}

// ValidateWorksheetForm valide les paramètres worksheet
func (av *APIValidator) ValidateWorksheetForm(form WorksheetForm) (*models.WorksheetRequest, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	result.Merge(av.validationService.ValidateUserID(form.UserID))
	result.Merge(av.validationService.ValidateCallbackURL(form.CallbackURL))

	req := &models.WorksheetRequest{
		ActivityCount: av.parseInt(result, "activity_count", form.ActivityCount, av.config.DefaultActivities),
	}
	result.Merge(av.validationService.ValidateRange("activity_count", req.ActivityCount, av.config.MinActivities, av.config.MaxActivities))

	return req, result
}

func (av *APIValidator) parseInt(result *ValidationResult, field, raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		result.AddError(field, raw, fmt.Sprintf("%s must be a valid integer", field), CodeInvalidValue)
		return def
	}
	return value
}

// ValidateJobIDParam valide un identifiant de job job-<32 hex>
func (av *APIValidator) ValidateJobIDParam(jobID string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if jobID == "" {
		result.AddError("job_id", "", "job ID is required", CodeRequired)
		return result
	}

	if !jobIDPattern.MatchString(jobID) {
		result.AddError("job_id", jobID, "job ID must match job-<32 hex characters>", CodeInvalidJobID)
	}

	return result
}

// SanitizeFilename nettoie un nom de fichier en supprimant les caractères dangereux
func (av *APIValidator) SanitizeFilename(filename string) string {
	// Ne garder que le dernier segment d'un chemin client
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	if strings.TrimSpace(filename) == "" {
		return DefaultUploadFilename
	}

	// Séparer l'extension du nom de base pour la protéger
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// 1. Remplacer les caractères dangereux et de contrôle
	base = regexp.MustCompile(`[:*?"<>|\x00-\x1f]+`).ReplaceAllString(base, "_")

	// 2. Remplacer les points du nom de base
	base = regexp.MustCompile(`\.+`).ReplaceAllString(base, "_")

	base = regexp.MustCompile(`_+`).ReplaceAllString(base, "_")

	// 3. Supprimer les underscores et espaces en début et fin
	base = strings.Trim(base, "_ ")

	ext = strings.ToLower(strings.Trim(ext, "_ "))
	if len(ext) < 2 || regexp.MustCompile(`[^a-z0-9.]`).MatchString(ext) {
		ext = ""
	}

	if base == "" {
		base = DefaultUploadFilename
	}

	// Limiter la longueur totale
	maxLen := av.config.MaxFilenameLength
	if maxLen <= 0 {
		maxLen = 255
	}
	if len(base)+len(ext) > maxLen {
		keep := maxLen - len(ext)
		if keep < 1 {
			return DefaultUploadFilename
		}
		base = truncateUTF8(base, keep)
	}

	return base + ext
}

// truncateUTF8 coupe s à n octets sans couper un caractère
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
