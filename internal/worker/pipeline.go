package worker

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/extract"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/generation"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/rag"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/render"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/storage"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const excerptRunes = 200

// Generator produit les artefacts à partir du contexte documentaire
type Generator interface {
	GenerateMaterial(ctx context.Context, text string, req *models.MaterialRequest) (*models.MaterialArtifact, []string, error)
	GenerateWorksheet(ctx context.Context, text string, req *models.WorksheetRequest) (*models.WorksheetArtifact, []string, error)
}

// ArtifactStore conserve les documents rendus avec une durée de vie
type ArtifactStore interface {
	Save(ctx context.Context, content []byte, ext, contentType string) (*storage.ArtifactMeta, error)
}

// PipelineConfig contient les paramètres des pipelines
type PipelineConfig struct {
	MaxFileMB     int
	PublicBaseURL string
}

// Pipeline exécute le traitement d'un job: extraction, indexation,
// récupération du contexte, génération puis rendu pour les worksheets.
type Pipeline struct {
	retrieval *rag.Store
	generator Generator
	artifacts ArtifactStore
	cfg       PipelineConfig
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewPipeline(retrieval *rag.Store, generator Generator, artifacts ArtifactStore, cfg PipelineConfig, log *zap.Logger) *Pipeline {
	return &Pipeline{
		retrieval: retrieval,
		generator: generator,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    logger.OrNop(log).Named("pipeline"),
		tracer:    otel.Tracer("ocf-material-worker/worker"),
	}
}

// material est le texte extrait d'un job avec son contexte de récupération
type material struct {
	info       models.MaterialInfo
	documentID string
	context    string
	sources    []models.SourceRef
	warnings   []string
}

// prepare décode le fichier, extrait le texte puis construit le contexte
func (p *Pipeline) prepare(ctx context.Context, job *models.Job, queries func(text string) []string) (*material, error) {
	payload, err := job.FileBytes()
	if err != nil {
		return nil, err
	}
	if err := extract.CheckSize(int64(len(payload)), p.cfg.MaxFileMB); err != nil {
		return nil, err
	}

	var warnings []string
	if w := p.retrieval.InitWarning(); w != "" {
		warnings = append(warnings, w)
	}

	extracted, err := extract.Extract(job.Filename, job.ContentType, payload)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, extracted.Warnings...)

	m := &material{
		info: models.MaterialInfo{
			Filename:       job.Filename,
			FileType:       extracted.FileType,
			ExtractedChars: utf8.RuneCountInString(extracted.Text),
		},
		documentID: p.retrieval.NewDocumentID(),
	}
	m.context, m.sources, m.warnings = p.buildContext(ctx, job.UserID, m.documentID, m.info, extracted.Text, queries(extracted.Text))
	m.warnings = append(warnings, m.warnings...)
	return m, nil
}

// buildContext indexe le texte et récupère les chunks pertinents.
// Le texte extrait complet sert de contexte si rien n'est récupéré.
func (p *Pipeline) buildContext(ctx context.Context, userID, documentID string, info models.MaterialInfo, text string, queries []string) (string, []models.SourceRef, []string) {
	var warnings []string

	count, indexWarnings, err := p.retrieval.Index(ctx, userID, documentID, info.Filename, info.FileType, text)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("RAG indexing failed; using extracted text fallback: %v", err))
		return text, nil, warnings
	}
	warnings = append(warnings, indexWarnings...)
	if count <= 0 {
		warnings = append(warnings, "RAG indexing produced no chunks; using extracted text fallback.")
		return text, nil, warnings
	}

	chunks, retrieveWarnings := p.retrieval.Retrieve(ctx, userID, documentID, queries)
	warnings = append(warnings, retrieveWarnings...)
	if len(chunks) == 0 {
		warnings = append(warnings, "RAG retrieval returned no chunks; using extracted text fallback.")
		return text, nil, warnings
	}

	texts := make([]string, len(chunks))
	sources := make([]models.SourceRef, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		sources[i] = models.SourceRef{
			ChunkID:  c.ID,
			SourceID: c.DocumentID,
			Excerpt:  truncateRunes(c.Text, excerptRunes),
		}
	}
	return strings.Join(texts, "\n\n"), sources, warnings
}

// ProcessMaterial exécute le pipeline d'un job material
func (p *Pipeline) ProcessMaterial(ctx context.Context, job *models.Job) (*models.MaterialResult, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.ProcessMaterial")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", job.ID))

	req := job.Material
	if req == nil {
		return nil, fmt.Errorf("job %s has no material request", job.ID)
	}

	m, err := p.prepare(ctx, job, func(text string) []string {
		return generation.MaterialQueries(text, req)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	artifact, genWarnings, err := p.generator.GenerateMaterial(ctx, m.context, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p.logger.Debug("Pipeline.ProcessMaterial: content generated",
		zap.String("job_id", job.ID), zap.String("document_id", m.documentID), zap.Int("sources", len(m.sources)))

	return &models.MaterialResult{
		UserID:     job.UserID,
		DocumentID: m.documentID,
		Material:   m.info,
		McqQuiz:    artifact.McqQuiz,
		EssayQuiz:  artifact.EssayQuiz,
		Summary:    artifact.Summary,
		Sources:    nonNilSources(m.sources),
		Warnings:   generation.DedupeWarnings(append(m.warnings, genWarnings...)),
	}, nil
}

// ProcessWorksheet exécute le pipeline d'un job worksheet et publie le document rendu
func (p *Pipeline) ProcessWorksheet(ctx context.Context, job *models.Job) (*models.WorksheetResult, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.ProcessWorksheet")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", job.ID))

	req := job.Worksheet
	if req == nil {
		return nil, fmt.Errorf("job %s has no worksheet request", job.ID)
	}

	m, err := p.prepare(ctx, job, generation.WorksheetQueries)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	artifact, genWarnings, err := p.generator.GenerateWorksheet(ctx, m.context, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	doc, err := render.Worksheet(artifact.Worksheet, m.info, m.documentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stored, err := p.artifacts.Save(ctx, doc, render.Extension, render.ContentType)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &models.WorksheetResult{
		DocumentID:    m.documentID,
		Material:      m.info,
		Worksheet:     *artifact.Worksheet,
		Sources:       nonNilSources(m.sources),
		Warnings:      generation.DedupeWarnings(append(m.warnings, genWarnings...)),
		FileURL:       storage.PublicURL(p.cfg.PublicBaseURL, stored.FileID),
		FileExpiresAt: stored.ExpiresAt.Truncate(time.Second),
	}, nil
}

func nonNilSources(sources []models.SourceRef) []models.SourceRef {
	if sources == nil {
		return []models.SourceRef{}
	}
	return sources
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
