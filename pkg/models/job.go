package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobKind détermine le pipeline exécuté par le worker
type JobKind string

const (
	KindMaterial  JobKind = "material"
	KindWorksheet JobKind = "worksheet"
)

// IsValid vérifie que le kind est connu
func (k JobKind) IsValid() bool {
	return k == KindMaterial || k == KindWorksheet
}

// Event retourne le nom d'événement envoyé dans le callback
func (k JobKind) Event() string {
	return string(k) + ".generated"
}

type JobStatus string

const (
	StatusAccepted         JobStatus = "accepted"
	StatusProcessing       JobStatus = "processing"
	StatusSucceeded        JobStatus = "succeeded"
	StatusFailedProcessing JobStatus = "failed_processing"
	StatusFailedDelivery   JobStatus = "failed_delivery"
)

// AllStatuses liste les statuts dans l'ordre du cycle de vie
var AllStatuses = []JobStatus{
	StatusAccepted,
	StatusProcessing,
	StatusSucceeded,
	StatusFailedProcessing,
	StatusFailedDelivery,
}

// IsTerminal indique que le traitement du job est terminé
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailedProcessing, StatusFailedDelivery:
		return true
	}
	return false
}

// CanTransitionTo vérifie qu'une transition respecte la monotonie du cycle de vie.
// failed_delivery se superpose au résultat de traitement déjà fixé.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusAccepted:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusSucceeded || next == StatusFailedProcessing
	case StatusSucceeded, StatusFailedProcessing:
		return next == StatusFailedDelivery
	}
	return false
}

// Job est l'enregistrement persisté dans le job store
type Job struct {
	ID               string            `json:"id"`
	Kind             JobKind           `json:"kind"`
	Status           JobStatus         `json:"status"`
	UserID           string            `json:"user_id"`
	CallbackURL      string            `json:"callback_url"`
	Material         *MaterialRequest  `json:"material_request,omitempty"`
	Worksheet        *WorksheetRequest `json:"worksheet_request,omitempty"`
	Filename         string            `json:"filename"`
	ContentType      string            `json:"content_type,omitempty"`
	FileBase64       string            `json:"file_b64"`
	CallbackAttempts int               `json:"callback_attempts"`
	LastError        *string           `json:"last_error"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewJobID génère un identifiant opaque de la forme job-<hex>
func NewJobID() string {
	return "job-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewJob construit un job accepté à partir d'une soumission
func NewJob(kind JobKind, sub *Submission, now time.Time) *Job {
	return &Job{
		ID:          NewJobID(),
		Kind:        kind,
		Status:      StatusAccepted,
		UserID:      sub.UserID,
		CallbackURL: sub.CallbackURL,
		Material:    sub.Material,
		Worksheet:   sub.Worksheet,
		Filename:    sub.Filename,
		ContentType: sub.ContentType,
		FileBase64:  base64.StdEncoding.EncodeToString(sub.File),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FileBytes décode le fichier embarqué dans l'enregistrement
func (j *Job) FileBytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(j.FileBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file payload for job %s: %w", j.ID, err)
	}
	return data, nil
}

// JobResponse est la vue exposée par l'API (sans le fichier)
type JobResponse struct {
	ID               string    `json:"id"`
	Kind             JobKind   `json:"kind"`
	Status           JobStatus `json:"status"`
	UserID           string    `json:"user_id"`
	Filename         string    `json:"filename"`
	CallbackAttempts int       `json:"callback_attempts"`
	LastError        *string   `json:"last_error"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ToResponse convertit un Job en JobResponse
func (j *Job) ToResponse() *JobResponse {
	return &JobResponse{
		ID:               j.ID,
		Kind:             j.Kind,
		Status:           j.Status,
		UserID:           j.UserID,
		Filename:         j.Filename,
		CallbackAttempts: j.CallbackAttempts,
		LastError:        j.LastError,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}
