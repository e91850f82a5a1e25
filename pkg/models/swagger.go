// pkg/models/swagger.go
package models

import (
	"time"
)

// ErrorResponse représente une réponse d'erreur standard
// @Description Réponse d'erreur standard de l'API
type ErrorResponse struct {
	Error            string            `json:"error" example:"Validation failed"`
	Message          string            `json:"message,omitempty" example:"Detailed error message"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
} // @name ErrorResponse

// ValidationError représente une erreur de validation spécifique
// @Description Détail d'une erreur de validation
type ValidationError struct {
	Field   string `json:"field" example:"mcq_count"`
	Value   string `json:"value" example:"42"`
	Message string `json:"message" example:"mcq_count must be between 1 and 20"`
	Code    string `json:"code" example:"OUT_OF_RANGE"`
} // @name ValidationError

// HealthResponse représente la réponse du health check
// @Description Statut de santé du service
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy" enums:"healthy,degraded"`
	Service   string    `json:"service" example:"ocf-material-worker"`
	Timestamp time.Time `json:"timestamp" example:"2026-01-17T10:30:00Z"`
	Warnings  []string  `json:"warnings,omitempty"`
} // @name HealthResponse

