package generation

import (
	"fmt"
	"strings"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

const promptHeader = "You are an education assistant. Read the material and return valid JSON only.\n" +
	"Do not use markdown and do not use code blocks.\n"

const repairSuffix = "\n\nYour previous answer was invalid. Return only valid JSON that matches the required schema."

const topicHintWords = 40

var schemaLines = map[models.GenerateType]string{
	models.GenerateMCQ:     `  "mcq_quiz": {"questions": [{"question": "...", "options": ["...", "...", "...", "..."], "correct_answer": "...", "explanation": "..."}]}`,
	models.GenerateEssay:   `  "essay_quiz": {"questions": [{"question": "...", "expected_points": "..."}]}`,
	models.GenerateSummary: `  "summary": {"title": "...", "overview": "...", "key_points": ["...", "..."]}`,
}

// BuildMaterialPrompt construit le prompt déterministe d'un job material.
// Seuls les blocs demandés apparaissent dans le schéma.
func BuildMaterialPrompt(materialText string, req *models.MaterialRequest) (string, error) {
	if req == nil || len(req.GenerateTypes) == 0 {
		return "", fmt.Errorf("generate_types must contain at least one item")
	}

	var (
		schema       []string
		requirements []string
		blocks       []string
	)
	for _, gt := range req.GenerateTypes {
		line, ok := schemaLines[gt]
		if !ok {
			return "", fmt.Errorf("unknown generate type %q", gt)
		}
		schema = append(schema, line)
		blocks = append(blocks, string(gt))
		switch gt {
		case models.GenerateMCQ:
			requirements = append(requirements, fmt.Sprintf("Create exactly %d multiple-choice questions, each with exactly 4 distinct options.", req.MCQCount))
		case models.GenerateEssay:
			requirements = append(requirements, fmt.Sprintf("Create exactly %d essay questions.", req.EssayCount))
		case models.GenerateSummary:
			requirements = append(requirements, fmt.Sprintf("The summary overview must be at most %d words.", req.SummaryMaxWords))
		}
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	fmt.Fprintf(&b, "Generate only the following blocks: %s.\n", strings.Join(blocks, ", "))
	b.WriteString("The output schema MUST be:\n{\n")
	b.WriteString(strings.Join(schema, ",\n"))
	b.WriteString("\n}\n")
	b.WriteString(strings.Join(requirements, "\n"))
	b.WriteString("\n\nMaterial:\n")
	b.WriteString(materialText)
	return b.String(), nil
}

// BuildWorksheetPrompt construit le prompt déterministe d'un job worksheet
func BuildWorksheetPrompt(materialText string, activityCount int) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("The output schema MUST be:\n")
	b.WriteString(`{
  "worksheet": {
    "title": "...",
    "learning_objectives": ["...", "..."],
    "instructions": ["...", "..."],
    "activities": [
      {"activity_no": 1, "task": "...", "expected_output": "...", "assessment_hint": "..."}
    ],
    "worksheet_template": "...",
    "assessment_rubric": [
      {"aspect": "...", "criteria": "...", "score_range": "1-4"}
    ]
  }
}
`)
	fmt.Fprintf(&b, "Create exactly %d activities in the activities field.\n", activityCount)
	b.WriteString("\nMaterial:\n")
	b.WriteString(materialText)
	return b.String()
}

// RepairPrompt ajoute au prompt initial la consigne de correction
func RepairPrompt(prompt string) string {
	return prompt + repairSuffix
}

// TopicHint retourne les 40 premiers mots du texte
func TopicHint(text string) string {
	words := strings.Fields(text)
	if len(words) > topicHintWords {
		words = words[:topicHintWords]
	}
	return strings.Join(words, " ")
}

// MaterialQueries construit les requêtes de recherche: une requête générale
// puis une par bloc demandé, dans un ordre fixe.
func MaterialQueries(text string, req *models.MaterialRequest) []string {
	hint := TopicHint(text)
	queries := []string{withHint("main concepts of the material", hint)}
	if req.Requests(models.GenerateSummary) {
		queries = append(queries, withHint("summary of main concepts", hint))
	}
	if req.Requests(models.GenerateMCQ) {
		queries = append(queries, withHint("important facts and concepts for multiple-choice quiz", hint))
	}
	if req.Requests(models.GenerateEssay) {
		queries = append(queries, withHint("deep understanding for essay questions", hint))
	}
	return queries
}

// WorksheetQueries construit les requêtes de recherche d'un job worksheet
func WorksheetQueries(text string) []string {
	hint := TopicHint(text)
	return []string{
		withHint("main concepts and learning objectives", hint),
		withHint("practical steps or learning activities", hint),
		withHint("assessment indicators and rubric", hint),
	}
}

func withHint(query, hint string) string {
	if hint == "" {
		return query
	}
	return query + " " + hint
}
