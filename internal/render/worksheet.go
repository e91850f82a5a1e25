// Package render met en forme une fiche d'activités en document Markdown téléchargeable.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

// Extension et type MIME du document produit
const (
	Extension   = ".md"
	ContentType = "text/markdown; charset=utf-8"
)

const worksheetTemplate = `# {{ .Worksheet.Title | line }}

Document ID: {{ .DocumentID }}
Source: {{ .Material.Filename | line }} ({{ .Material.FileType }})

## Learning objectives

{{ range $i, $o := .Worksheet.LearningObjectives }}{{ inc $i }}. {{ $o | line }}
{{ end }}
## Instructions

{{ range $i, $s := .Worksheet.Instructions }}{{ inc $i }}. {{ $s | line }}
{{ end }}
## Activities
{{ range .Worksheet.Activities }}
### {{ .ActivityNo }}. {{ .Task | line }}

- Expected output: {{ .ExpectedOutput | line }}
- Assessment hint: {{ .AssessmentHint | line }}
{{ end }}
## Answer sheet template

{{ .Worksheet.WorksheetTemplate }}

## Assessment rubric

| # | Aspect | Criteria | Score |
|---|--------|----------|-------|
{{ range $i, $r := .Worksheet.AssessmentRubric }}| {{ inc $i }} | {{ $r.Aspect | cell }} | {{ $r.Criteria | cell }} | {{ $r.ScoreRange | cell }} |
{{ end }}`

var tmpl = template.Must(template.New("worksheet").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"line": line,
	"cell": func(s string) string { return strings.ReplaceAll(line(s), "|", `\|`) },
}).Parse(worksheetTemplate))

type worksheetView struct {
	Worksheet  *models.WorksheetContent
	Material   models.MaterialInfo
	DocumentID string
}

// Worksheet rend la fiche en Markdown
func Worksheet(w *models.WorksheetContent, material models.MaterialInfo, documentID string) ([]byte, error) {
	if w == nil {
		return nil, fmt.Errorf("worksheet is nil")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, worksheetView{Worksheet: w, Material: material, DocumentID: documentID}); err != nil {
		return nil, fmt.Errorf("failed to render worksheet: %w", err)
	}
	return buf.Bytes(), nil
}

// line ramène un texte sur une seule ligne
func line(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
