// Package generation transforme un contexte documentaire en contenu pédagogique
// structuré: prompt, appel au modèle, analyse JSON, une réparation au plus,
// puis application du contrat de la demande.
package generation

import (
	"context"
	"fmt"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxAttempts couvre l'appel initial et l'unique réparation
const maxAttempts = 2

// Model est le backend de génération de texte
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Engine pilote la génération et la validation des artefacts
type Engine struct {
	model   Model
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewEngine(model Model, m *metrics.Metrics, log *zap.Logger) *Engine {
	return &Engine{
		model:   model,
		metrics: m,
		logger:  logger.OrNop(log).Named("generation"),
		tracer:  otel.Tracer("ocf-material-worker/generation"),
	}
}

// GenerateMaterial produit les blocs demandés à partir du contexte
func (e *Engine) GenerateMaterial(ctx context.Context, materialText string, req *models.MaterialRequest) (*models.MaterialArtifact, []string, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.GenerateMaterial")
	defer span.End()

	prompt, err := BuildMaterialPrompt(materialText, req)
	if err != nil {
		span.RecordError(err)
		return nil, nil, &ValidationError{Kind: KindMaterial, Message: err.Error()}
	}

	var artifact *models.MaterialArtifact
	err = e.completeWithRepair(ctx, span, string(models.KindMaterial), prompt, func(reply string) error {
		parsed, perr := ParseMaterial(reply)
		if perr == nil {
			artifact = parsed
		}
		return perr
	})
	if err != nil {
		return nil, nil, err
	}
	if artifact == nil {
		err := materialError("Model failed to produce valid JSON output after one retry.")
		span.RecordError(err)
		return nil, nil, err
	}

	warnings, err := EnforceMaterialContract(artifact, req)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return artifact, warnings, nil
}

// GenerateWorksheet produit une fiche d'activités à partir du contexte
func (e *Engine) GenerateWorksheet(ctx context.Context, materialText string, req *models.WorksheetRequest) (*models.WorksheetArtifact, []string, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.GenerateWorksheet")
	defer span.End()

	prompt := BuildWorksheetPrompt(materialText, req.ActivityCount)

	var artifact *models.WorksheetArtifact
	err := e.completeWithRepair(ctx, span, string(models.KindWorksheet), prompt, func(reply string) error {
		parsed, perr := ParseWorksheet(reply)
		if perr == nil {
			artifact = parsed
		}
		return perr
	})
	if err != nil {
		return nil, nil, err
	}
	if artifact == nil {
		err := worksheetError("Model failed to produce valid worksheet JSON output after one retry.")
		span.RecordError(err)
		return nil, nil, err
	}

	warnings, err := EnforceWorksheetContract(artifact, req.ActivityCount)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return artifact, warnings, nil
}

// completeWithRepair appelle le modèle au plus deux fois. Seule une erreur du
// modèle est retournée; un échec d'analyse après réparation laisse l'appelant
// sans artefact.
func (e *Engine) completeWithRepair(ctx context.Context, span trace.Span, kind, prompt string, parse func(string) error) error {
	current := prompt
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			e.metrics.GenerationRepair(kind)
			current = RepairPrompt(prompt)
		}
		span.SetAttributes(attribute.Int("generation.attempt", attempt))

		reply, err := e.model.Complete(ctx, current)
		if err != nil {
			span.RecordError(err)
			e.logger.Error("Engine.Generate: model call failed",
				zap.String("kind", kind), zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("failed to generate %s: %w", kind, err)
		}

		perr := parse(reply)
		if perr == nil {
			return nil
		}
		e.logger.Warn("Engine.Generate: invalid model output",
			zap.String("kind", kind), zap.Int("attempt", attempt), zap.Error(perr))
	}
	return nil
}
