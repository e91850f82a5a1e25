// internal/validation/validation.go - Service de validation des soumissions

package validation

import (
	"fmt"
	"mime/multipart"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Codes d'erreur de validation
const (
	CodeRequired        = "REQUIRED"
	CodeTooLong         = "TOO_LONG"
	CodeInvalidEncoding = "INVALID_ENCODING"
	CodeInvalidURL      = "INVALID_URL"
	CodeLocalhostURL    = "LOCALHOST_NOT_ALLOWED"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeEmptyFile       = "EMPTY_FILE"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodeDuplicate       = "DUPLICATE_VALUE"
	CodeInvalidJobID    = "INVALID_JOB_ID"
)

// ValidationConfig contient la configuration de validation
type ValidationConfig struct {
	MaxFileSize       int64 // Taille max du fichier (bytes)
	MaxFilenameLength int   // Longueur max du nom de fichier
	MaxUserIDLength   int
	MaxURLLength      int

	DefaultActivities int
	MinActivities     int
	MaxActivities     int

	// RejectLocalCallbacks interdit les callbacks vers localhost (production)
	RejectLocalCallbacks bool
}

// DefaultValidationConfig retourne une configuration par défaut
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxFileSize:       20 * 1024 * 1024, // 20MB
		MaxFilenameLength: 255,
		MaxUserIDLength:   128,
		MaxURLLength:      2048,
		DefaultActivities: 5,
		MinActivities:     1,
		MaxActivities:     10,
	}
}

// ValidationService gère la validation des entrées
type ValidationService struct {
	config *ValidationConfig
}

// NewValidationService crée un nouveau service de validation
func NewValidationService(config *ValidationConfig) *ValidationService {
	if config == nil {
		config = DefaultValidationConfig()
	}

	return &ValidationService{
		config: config,
	}
}

// ValidationError représente une erreur de validation avec détails
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidationResult contient le résultat de validation
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

// AddError ajoute une erreur de validation
func (vr *ValidationResult) AddError(field, value, message, code string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// Merge ajoute les erreurs d'un autre résultat
func (vr *ValidationResult) Merge(other *ValidationResult) {
	if other == nil || other.Valid {
		return
	}
	vr.Valid = false
	vr.Errors = append(vr.Errors, other.Errors...)
}

// HasCode indique si une erreur porte le code donné
func (vr *ValidationResult) HasCode(code string) bool {
	for _, err := range vr.Errors {
		if err.Code == code {
			return true
		}
	}
	return false
}

// OnlyFileTooLarge indique que la seule erreur est la taille du fichier.
// Les erreurs de paramètres sont signalées avant celle de taille.
func (vr *ValidationResult) OnlyFileTooLarge() bool {
	if vr.Valid || len(vr.Errors) == 0 {
		return false
	}
	for _, err := range vr.Errors {
		if err.Code != CodeFileTooLarge {
			return false
		}
	}
	return true
}

// Message retourne les messages d'erreur concaténés
func (vr *ValidationResult) Message() string {
	msgs := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		msgs = append(msgs, err.Message)
	}
	return strings.Join(msgs, "; ")
}

// ValidateUserID vérifie la présence et la longueur de user_id
func (vs *ValidationService) ValidateUserID(userID string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(userID) == "" {
		result.AddError("user_id", "", "user_id is required", CodeRequired)
		return result
	}

	if !utf8.ValidString(userID) {
		result.AddError("user_id", userID, "user_id must be valid UTF-8", CodeInvalidEncoding)
	}

	if len(userID) > vs.config.MaxUserIDLength {
		result.AddError("user_id", userID,
			fmt.Sprintf("user_id too long (max %d characters)", vs.config.MaxUserIDLength),
			CodeTooLong)
	}

	return result
}

// ValidateCallbackURL exige une URL http(s) absolue
func (vs *ValidationService) ValidateCallbackURL(raw string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(raw) == "" {
		result.AddError("callback_url", "", "callback_url is required", CodeRequired)
		return result
	}

	if len(raw) > vs.config.MaxURLLength {
		result.AddError("callback_url", raw,
			fmt.Sprintf("URL too long (max %d characters)", vs.config.MaxURLLength),
			CodeTooLong)
		return result
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		result.AddError("callback_url", raw, "callback_url must be an absolute http(s) URL", CodeInvalidURL)
		return result
	}

	if vs.config.RejectLocalCallbacks && isLocalHost(u.Hostname()) {
		result.AddError("callback_url", raw, "localhost URLs not allowed", CodeLocalhostURL)
	}

	return result
}

func isLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// ValidateFilename vérifie la longueur et l'encodage; le nom est ensuite assaini
func (vs *ValidationService) ValidateFilename(filename string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if filename == "" {
		return result
	}

	if len(filename) > vs.config.MaxFilenameLength {
		result.AddError("filename", filename,
			fmt.Sprintf("filename too long (max %d characters)", vs.config.MaxFilenameLength),
			CodeTooLong)
	}

	if !utf8.ValidString(filename) {
		result.AddError("filename", filename, "filename must be valid UTF-8", CodeInvalidEncoding)
	}

	return result
}

// ValidateFileHeader valide un header de fichier multipart
func (vs *ValidationService) ValidateFileHeader(header *multipart.FileHeader) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if header == nil {
		result.AddError("file", "", "file is required", CodeRequired)
		return result
	}

	result.Merge(vs.ValidateFilename(header.Filename))

	if header.Size == 0 {
		result.AddError("file", "0", "file is empty", CodeEmptyFile)
	}

	// Vérifier la taille
	if vs.config.MaxFileSize > 0 && header.Size > vs.config.MaxFileSize {
		result.AddError("file", fmt.Sprintf("%d", header.Size),
			fmt.Sprintf("File exceeds maximum size of %d MB.", vs.config.MaxFileSize/(1024*1024)),
			CodeFileTooLarge)
	}

	return result
}

// ValidateRange vérifie qu'un entier est dans [min, max]
func (vs *ValidationService) ValidateRange(field string, value, min, max int) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if value < min || value > max {
		result.AddError(field, fmt.Sprintf("%d", value),
			fmt.Sprintf("%s must be between %d and %d", field, min, max),
			CodeOutOfRange)
	}

	return result
}
