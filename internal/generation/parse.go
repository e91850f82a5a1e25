package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

var errNoJSON = errors.New("reply does not contain a JSON object")

// ExtractJSONCandidate isole l'objet JSON d'une réponse du modèle.
// Les lignes de clôture d'un bloc de code sont retirées, puis on garde
// l'intervalle entre la première accolade ouvrante et la dernière fermante.
func ExtractJSONCandidate(reply string) string {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) >= 3 {
			text = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// ParseMaterial décode et valide la réponse d'un job material
func ParseMaterial(reply string) (*models.MaterialArtifact, error) {
	candidate := ExtractJSONCandidate(reply)
	if candidate == "" {
		return nil, errNoJSON
	}

	var artifact models.MaterialArtifact
	if err := json.Unmarshal([]byte(candidate), &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode material JSON: %w", err)
	}
	if err := validateMaterial(&artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ParseWorksheet décode et valide la réponse d'un job worksheet
func ParseWorksheet(reply string) (*models.WorksheetArtifact, error) {
	candidate := ExtractJSONCandidate(reply)
	if candidate == "" {
		return nil, errNoJSON
	}

	var artifact models.WorksheetArtifact
	if err := json.Unmarshal([]byte(candidate), &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode worksheet JSON: %w", err)
	}
	if artifact.Worksheet == nil {
		return nil, errors.New("worksheet block is missing")
	}
	if err := validateWorksheet(artifact.Worksheet); err != nil {
		return nil, err
	}
	return &artifact, nil
}

func validateMaterial(a *models.MaterialArtifact) error {
	if a.McqQuiz != nil {
		for i, q := range a.McqQuiz.Questions {
			if err := validateMCQ(q); err != nil {
				return fmt.Errorf("mcq_quiz.questions[%d]: %w", i, err)
			}
		}
	}
	if a.EssayQuiz != nil {
		for i, q := range a.EssayQuiz.Questions {
			if blank(q.Question) || blank(q.ExpectedPoints) {
				return fmt.Errorf("essay_quiz.questions[%d]: question and expected_points are required", i)
			}
		}
	}
	if a.Summary != nil && (blank(a.Summary.Title) || blank(a.Summary.Overview)) {
		return errors.New("summary: title and overview are required")
	}
	return nil
}

func validateMCQ(q models.McqQuestion) error {
	if blank(q.Question) || blank(q.CorrectAnswer) || blank(q.Explanation) {
		return errors.New("question, correct_answer and explanation are required")
	}
	if len(q.Options) != 4 {
		return errors.New("MCQ options must contain exactly 4 items")
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, dup := seen[opt]; dup {
			return errors.New("MCQ options must be unique")
		}
		seen[opt] = struct{}{}
	}
	if _, ok := seen[q.CorrectAnswer]; !ok {
		return errors.New("MCQ correct_answer must match one option")
	}
	return nil
}

// validateWorksheet contrôle les champs obligatoires; la présence des listes
// est vérifiée par le contrat pour produire un message explicite.
func validateWorksheet(w *models.WorksheetContent) error {
	if blank(w.Title) || blank(w.WorksheetTemplate) {
		return errors.New("worksheet: title and worksheet_template are required")
	}
	for i, act := range w.Activities {
		if blank(act.Task) || blank(act.ExpectedOutput) || blank(act.AssessmentHint) {
			return fmt.Errorf("worksheet.activities[%d]: task, expected_output and assessment_hint are required", i)
		}
	}
	for i, item := range w.AssessmentRubric {
		if blank(item.Aspect) || blank(item.Criteria) || blank(item.ScoreRange) {
			return fmt.Errorf("worksheet.assessment_rubric[%d]: aspect, criteria and score_range are required", i)
		}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
