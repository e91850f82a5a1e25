package models

import "time"

// WorkerStats représente l'état et les compteurs du worker
// @Description État courant et compteurs cumulés du worker
type WorkerStats struct {
	Status               string `json:"status" example:"busy" enums:"idle,busy,stopped"`
	CurrentJobID         string `json:"current_job_id,omitempty" example:"job-4f1c2a9b8e7d4c3b9a0f1e2d3c4b5a69"`
	Running              bool   `json:"running" example:"true"`
	JobsTotal            int64  `json:"jobs_total" example:"150"`
	JobsSucceeded        int64  `json:"jobs_succeeded" example:"142"`
	JobsFailedProcessing int64  `json:"jobs_failed_processing" example:"6"`
	JobsFailedDelivery   int64  `json:"jobs_failed_delivery" example:"2"`
} // @name WorkerStats

// WorkerStatsResponse est la réponse de l'endpoint de statistiques
// @Description Statistiques du worker horodatées
type WorkerStatsResponse struct {
	Worker    WorkerStats `json:"worker"`
	Timestamp time.Time   `json:"timestamp" example:"2025-01-17T10:30:00Z"`
} // @name WorkerStatsResponse
