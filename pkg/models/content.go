package models

import "time"

// McqQuestion est une question à choix multiples
type McqQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type McqQuiz struct {
	Questions []McqQuestion `json:"questions"`
}

type EssayQuestion struct {
	Question       string `json:"question"`
	ExpectedPoints string `json:"expected_points"`
}

type EssayQuiz struct {
	Questions []EssayQuestion `json:"questions"`
}

type SummaryContent struct {
	Title     string   `json:"title"`
	Overview  string   `json:"overview"`
	KeyPoints []string `json:"key_points"`
}

// MaterialArtifact est la sortie validée du modèle pour un job material
type MaterialArtifact struct {
	McqQuiz   *McqQuiz        `json:"mcq_quiz,omitempty"`
	EssayQuiz *EssayQuiz      `json:"essay_quiz,omitempty"`
	Summary   *SummaryContent `json:"summary,omitempty"`
}

type WorksheetActivity struct {
	ActivityNo     int    `json:"activity_no"`
	Task           string `json:"task"`
	ExpectedOutput string `json:"expected_output"`
	AssessmentHint string `json:"assessment_hint"`
}

type RubricItem struct {
	Aspect     string `json:"aspect"`
	Criteria   string `json:"criteria"`
	ScoreRange string `json:"score_range"`
}

// WorksheetContent est la fiche d'activités générée
type WorksheetContent struct {
	Title              string              `json:"title"`
	LearningObjectives []string            `json:"learning_objectives"`
	Instructions       []string            `json:"instructions"`
	Activities         []WorksheetActivity `json:"activities"`
	WorksheetTemplate  string              `json:"worksheet_template"`
	AssessmentRubric   []RubricItem        `json:"assessment_rubric"`
}

// WorksheetArtifact est la sortie validée du modèle pour un job worksheet
type WorksheetArtifact struct {
	Worksheet *WorksheetContent `json:"worksheet"`
}

// MaterialInfo décrit le document source
type MaterialInfo struct {
	Filename       string `json:"filename"`
	FileType       string `json:"file_type"`
	ExtractedChars int    `json:"extracted_chars"`
}

// SourceRef référence un chunk utilisé comme contexte
type SourceRef struct {
	ChunkID  string `json:"chunk_id,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Excerpt  string `json:"excerpt"`
}

// MaterialResult est le résultat livré pour un job material
type MaterialResult struct {
	UserID     string          `json:"user_id"`
	DocumentID string          `json:"document_id"`
	Material   MaterialInfo    `json:"material"`
	McqQuiz    *McqQuiz        `json:"mcq_quiz,omitempty"`
	EssayQuiz  *EssayQuiz      `json:"essay_quiz,omitempty"`
	Summary    *SummaryContent `json:"summary,omitempty"`
	Sources    []SourceRef     `json:"sources"`
	Warnings   []string        `json:"warnings"`
}

// WorksheetResult est le résultat livré pour un job worksheet
type WorksheetResult struct {
	DocumentID    string           `json:"document_id"`
	Material      MaterialInfo     `json:"material"`
	Worksheet     WorksheetContent `json:"worksheet"`
	Sources       []SourceRef      `json:"sources"`
	Warnings      []string         `json:"warnings"`
	FileURL       string           `json:"file_url"`
	FileExpiresAt time.Time        `json:"file_expires_at"`
}
