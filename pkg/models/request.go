package models

// GenerateType identifie un bloc de contenu demandé pour un job material
type GenerateType string

const (
	GenerateMCQ     GenerateType = "mcq"
	GenerateEssay   GenerateType = "essay"
	GenerateSummary GenerateType = "summary"
)

// IsValid vérifie que le type de génération est connu
func (g GenerateType) IsValid() bool {
	switch g {
	case GenerateMCQ, GenerateEssay, GenerateSummary:
		return true
	}
	return false
}

// Valeurs par défaut et bornes des paramètres material
const (
	DefaultMCQCount        = 10
	MinMCQCount            = 1
	MaxMCQCount            = 20
	DefaultEssayCount      = 3
	MinEssayCount          = 1
	MaxEssayCount          = 10
	DefaultSummaryMaxWords = 200
	MinSummaryMaxWords     = 80
	MaxSummaryMaxWords     = 400
)

// MaterialRequest contient les paramètres d'un job material
type MaterialRequest struct {
	GenerateTypes   []GenerateType `json:"generate_types"`
	MCQCount        int            `json:"mcq_count"`
	EssayCount      int            `json:"essay_count"`
	SummaryMaxWords int            `json:"summary_max_words"`
	MCPEnabled      bool           `json:"mcp_enabled"`
}

// Requests indique si un type de contenu a été demandé
func (r *MaterialRequest) Requests(t GenerateType) bool {
	for _, g := range r.GenerateTypes {
		if g == t {
			return true
		}
	}
	return false
}

// WorksheetRequest contient les paramètres d'un job worksheet
type WorksheetRequest struct {
	ActivityCount int `json:"activity_count"`
}

// Submission regroupe ce que la frontière de soumission transmet au job store
type Submission struct {
	UserID      string
	CallbackURL string
	Filename    string
	ContentType string
	File        []byte
	Material    *MaterialRequest
	Worksheet   *WorksheetRequest
}

// SubmissionAccepted est la réponse 202 de l'API de soumission
// @Description Accusé de réception d'un job asynchrone
type SubmissionAccepted struct {
	JobID   string `json:"job_id" example:"job-4f1c2a9b8e7d4c3b9a0f1e2d3c4b5a69"`
	Status  string `json:"status" example:"accepted"`
	Message string `json:"message" example:"Material queued for async processing."`
} // @name SubmissionAccepted
