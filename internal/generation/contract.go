package generation

import (
	"fmt"
	"strings"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

// ValidationKind distingue les erreurs de validation material et worksheet
type ValidationKind string

const (
	KindMaterial  ValidationKind = "material"
	KindWorksheet ValidationKind = "worksheet"
)

// ValidationError signale une sortie du modèle inutilisable après réparation
// ou non conforme à la demande.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func materialError(format string, args ...any) error {
	return &ValidationError{Kind: KindMaterial, Message: fmt.Sprintf(format, args...)}
}

func worksheetError(format string, args ...any) error {
	return &ValidationError{Kind: KindWorksheet, Message: fmt.Sprintf(format, args...)}
}

// EnforceMaterialContract aligne l'artefact sur la demande: blocs requis
// présents, listes tronquées au nombre demandé, blocs non demandés retirés.
// L'artefact est modifié en place; les avertissements sont retournés.
func EnforceMaterialContract(a *models.MaterialArtifact, req *models.MaterialRequest) ([]string, error) {
	var warnings []string

	if req.Requests(models.GenerateMCQ) {
		if a.McqQuiz == nil {
			return nil, materialError("Model did not return mcq_quiz.")
		}
		n := len(a.McqQuiz.Questions)
		if n < req.MCQCount {
			return nil, materialError("Model generated too few multiple-choice questions (%d < %d).", n, req.MCQCount)
		}
		if n > req.MCQCount {
			a.McqQuiz.Questions = a.McqQuiz.Questions[:req.MCQCount]
			warnings = append(warnings, fmt.Sprintf("MCQ questions trimmed from %d to %d.", n, req.MCQCount))
		}
	} else if a.McqQuiz != nil {
		a.McqQuiz = nil
		warnings = append(warnings, "Model returned mcq_quiz even though it was not requested.")
	}

	if req.Requests(models.GenerateEssay) {
		if a.EssayQuiz == nil {
			return nil, materialError("Model did not return essay_quiz.")
		}
		n := len(a.EssayQuiz.Questions)
		if n < req.EssayCount {
			return nil, materialError("Model generated too few essay questions (%d < %d).", n, req.EssayCount)
		}
		if n > req.EssayCount {
			a.EssayQuiz.Questions = a.EssayQuiz.Questions[:req.EssayCount]
			warnings = append(warnings, fmt.Sprintf("Essay questions trimmed from %d to %d.", n, req.EssayCount))
		}
	} else if a.EssayQuiz != nil {
		a.EssayQuiz = nil
		warnings = append(warnings, "Model returned essay_quiz even though it was not requested.")
	}

	if req.Requests(models.GenerateSummary) {
		if a.Summary == nil {
			return nil, materialError("Model did not return summary.")
		}
		words := strings.Fields(a.Summary.Overview)
		if len(words) > req.SummaryMaxWords {
			a.Summary.Overview = strings.Join(words[:req.SummaryMaxWords], " ")
			warnings = append(warnings, fmt.Sprintf("Summary overview trimmed from %d to %d words.", len(words), req.SummaryMaxWords))
		}
	} else if a.Summary != nil {
		a.Summary = nil
		warnings = append(warnings, "Model returned summary even though it was not requested.")
	}

	return warnings, nil
}

// EnforceWorksheetContract vérifie les listes obligatoires, tronque les
// activités au nombre demandé et les renumérote à partir de 1.
func EnforceWorksheetContract(a *models.WorksheetArtifact, activityCount int) ([]string, error) {
	var warnings []string

	w := a.Worksheet
	if w == nil {
		return nil, worksheetError("Model did not return worksheet.")
	}
	if len(w.LearningObjectives) == 0 {
		return nil, worksheetError("Worksheet must contain learning objectives.")
	}
	if len(w.Instructions) == 0 {
		return nil, worksheetError("Worksheet must contain instructions.")
	}
	if len(w.AssessmentRubric) == 0 {
		return nil, worksheetError("Worksheet must contain assessment rubric.")
	}

	n := len(w.Activities)
	if n < activityCount {
		return nil, worksheetError("Model generated too few worksheet activities (%d < %d).", n, activityCount)
	}
	if n > activityCount {
		w.Activities = w.Activities[:activityCount]
		warnings = append(warnings, fmt.Sprintf("Worksheet activities trimmed from %d to %d.", n, activityCount))
	}
	for i := range w.Activities {
		w.Activities[i].ActivityNo = i + 1
	}

	return warnings, nil
}

// DedupeWarnings retire les avertissements vides ou répétés en gardant l'ordre de première apparition
func DedupeWarnings(warnings []string) []string {
	seen := make(map[string]struct{}, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
