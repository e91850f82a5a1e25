package callback

import (
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

// ErrorInfo décrit l'échec de traitement transmis à l'appelant
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Payload est le corps JSON posté sur l'URL de callback.
// Result est renseigné si Status vaut succeeded, Error si failed_processing.
type Payload struct {
	Event      string           `json:"event"`
	JobID      string           `json:"job_id"`
	Status     models.JobStatus `json:"status"`
	UserID     string           `json:"user_id"`
	Result     any              `json:"result,omitempty"`
	Error      *ErrorInfo       `json:"error,omitempty"`
	Attempt    int              `json:"attempt"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Succeeded construit le payload d'un job traité avec succès
func Succeeded(job *models.Job, result any, finishedAt time.Time) *Payload {
	return &Payload{
		Event:      job.Kind.Event(),
		JobID:      job.ID,
		Status:     models.StatusSucceeded,
		UserID:     job.UserID,
		Result:     result,
		Attempt:    1,
		FinishedAt: finishedAt,
	}
}

// Failed construit le payload d'un job en échec de traitement
func Failed(job *models.Job, code, message string, finishedAt time.Time) *Payload {
	return &Payload{
		Event:      job.Kind.Event(),
		JobID:      job.ID,
		Status:     models.StatusFailedProcessing,
		UserID:     job.UserID,
		Error:      &ErrorInfo{Code: code, Message: message},
		Attempt:    1,
		FinishedAt: finishedAt,
	}
}
