package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/callback"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/extract"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/generation"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/jobs"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/rag"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/storage"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/storage/filesystem"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubProcessor retourne un résultat fixe ou une erreur
type stubProcessor struct {
	err   error
	panic bool
	calls int
}

func (p *stubProcessor) ProcessMaterial(_ context.Context, job *models.Job) (*models.MaterialResult, error) {
	p.calls++
	if p.panic {
		panic("boom")
	}
	if p.err != nil {
		return nil, p.err
	}
	return &models.MaterialResult{UserID: job.UserID, DocumentID: "doc-1", Sources: []models.SourceRef{}}, nil
}

func (p *stubProcessor) ProcessWorksheet(_ context.Context, job *models.Job) (*models.WorksheetResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &models.WorksheetResult{DocumentID: "doc-1", Sources: []models.SourceRef{}}, nil
}

// recordingDeliverer échoue sur les failures premières tentatives
type recordingDeliverer struct {
	mu       sync.Mutex
	failures int
	attempts []int
	statuses []models.JobStatus
	codes    []string
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ string, payload *callback.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts = append(d.attempts, payload.Attempt)
	d.statuses = append(d.statuses, payload.Status)
	if payload.Error != nil {
		d.codes = append(d.codes, payload.Error.Code)
	}
	if len(d.attempts) <= d.failures {
		return &callback.StatusError{StatusCode: http.StatusServiceUnavailable, URL: "http://callback.test"}
	}
	return nil
}

func (d *recordingDeliverer) posts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attempts)
}

func testStoreConfig() jobs.StoreConfig {
	return jobs.StoreConfig{
		RecordPrefix: "material_jobs:",
		QueueKeys: map[models.JobKind]string{
			models.KindMaterial:  "material_jobs:queue:material",
			models.KindWorksheet: "material_jobs:queue:worksheet",
		},
		TTL: 24 * time.Hour,
	}
}

func testConfig() Config {
	return Config{
		DequeueTimeout: 10 * time.Millisecond,
		ErrorSleep:     10 * time.Millisecond,
		MaxRetries:     3,
		Backoffs:       []time.Duration{time.Second, 5 * time.Second},
		MaxJitter:      500 * time.Millisecond,
	}
}

// newTestWorker crée un worker dont les attentes sont enregistrées au lieu d'être dormies
func newTestWorker(t *testing.T, processor Processor, deliverer Deliverer) (*Worker, jobs.JobStore, *[]time.Duration) {
	t.Helper()
	store := jobs.NewJobStore(jobs.NewMemoryQueue(), testStoreConfig(), nil, nil, zap.NewNop())
	w := NewWorker(store, processor, deliverer, nil, testConfig(), nil, zap.NewNop())

	var mu sync.Mutex
	delays := &[]time.Duration{}
	w.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*delays = append(*delays, d)
		return nil
	}
	w.jitter = func() time.Duration { return 100 * time.Millisecond }
	return w, store, delays
}

func testSubmission() *models.Submission {
	return &models.Submission{
		UserID:      "u-1",
		CallbackURL: "http://callback.test/hook",
		Filename:    "notes.txt",
		ContentType: "text/plain",
		File:        []byte("Photosynthesis converts light energy into chemical energy."),
		Material:    &models.MaterialRequest{GenerateTypes: []models.GenerateType{models.GenerateSummary}, SummaryMaxWords: 80},
	}
}

// runOne enfile un job et le traite directement
func runOne(t *testing.T, w *Worker, store jobs.JobStore, kind models.JobKind) *models.Job {
	t.Helper()
	ctx := context.Background()

	sub := testSubmission()
	if kind == models.KindWorksheet {
		sub.Material = nil
		sub.Worksheet = &models.WorksheetRequest{ActivityCount: 3}
	}
	id, err := store.Enqueue(ctx, kind, sub)
	require.NoError(t, err)

	job, err := store.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	w.handleJob(ctx, job)

	final, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, final)
	return final
}

func TestWorkerDelivery(t *testing.T) {
	t.Run("Delivered on first attempt", func(t *testing.T) {
		deliverer := &recordingDeliverer{}
		w, store, delays := newTestWorker(t, &stubProcessor{}, deliverer)

		job := runOne(t, w, store, models.KindMaterial)

		assert.Equal(t, models.StatusSucceeded, job.Status)
		assert.Equal(t, 1, job.CallbackAttempts)
		assert.Nil(t, job.LastError)
		assert.Equal(t, []int{1}, deliverer.attempts)
		assert.Empty(t, *delays)
	})

	t.Run("Success after two failed attempts", func(t *testing.T) {
		deliverer := &recordingDeliverer{failures: 2}
		w, store, delays := newTestWorker(t, &stubProcessor{}, deliverer)

		job := runOne(t, w, store, models.KindMaterial)

		assert.Equal(t, models.StatusSucceeded, job.Status)
		assert.Equal(t, 3, job.CallbackAttempts)
		assert.Nil(t, job.LastError)
		assert.Equal(t, []int{1, 2, 3}, deliverer.attempts)
		assert.Equal(t, []time.Duration{1100 * time.Millisecond, 5100 * time.Millisecond}, *delays)
	})

	t.Run("Retries exhausted", func(t *testing.T) {
		deliverer := &recordingDeliverer{failures: 100}
		w, store, delays := newTestWorker(t, &stubProcessor{}, deliverer)

		job := runOne(t, w, store, models.KindWorksheet)

		assert.Equal(t, models.StatusFailedDelivery, job.Status)
		assert.Equal(t, 4, job.CallbackAttempts)
		require.NotNil(t, job.LastError)
		assert.Equal(t, DeliveryFailedMessage, *job.LastError)
		assert.Equal(t, []int{1, 2, 3, 4}, deliverer.attempts)
		// L'index de backoff est borné au dernier élément
		assert.Equal(t, []time.Duration{
			1100 * time.Millisecond,
			5100 * time.Millisecond,
			5100 * time.Millisecond,
		}, *delays)

		stats := w.GetStats()
		assert.Equal(t, int64(1), stats.JobsTotal)
		assert.Equal(t, int64(1), stats.JobsSucceeded)
		assert.Equal(t, int64(1), stats.JobsFailedDelivery)
	})

	t.Run("Zero retries means a single attempt", func(t *testing.T) {
		deliverer := &recordingDeliverer{failures: 100}
		w, store, delays := newTestWorker(t, &stubProcessor{}, deliverer)
		w.cfg.MaxRetries = 0

		job := runOne(t, w, store, models.KindMaterial)

		assert.Equal(t, models.StatusFailedDelivery, job.Status)
		assert.Equal(t, 1, deliverer.posts())
		assert.Empty(t, *delays)
	})
}

func TestWorkerProcessingFailure(t *testing.T) {
	t.Run("Validation error is reported with its code", func(t *testing.T) {
		deliverer := &recordingDeliverer{}
		processor := &stubProcessor{err: &generation.ValidationError{Kind: generation.KindMaterial, Message: "Model did not return summary."}}
		w, store, _ := newTestWorker(t, processor, deliverer)

		job := runOne(t, w, store, models.KindMaterial)

		assert.Equal(t, models.StatusFailedProcessing, job.Status)
		assert.Equal(t, 1, job.CallbackAttempts)
		require.NotNil(t, job.LastError)
		assert.Equal(t, "Model did not return summary.", *job.LastError)
		assert.Equal(t, []models.JobStatus{models.StatusFailedProcessing}, deliverer.statuses)
		assert.Equal(t, []string{CodeMaterialValidationError}, deliverer.codes)
	})

	t.Run("Failed processing and failed delivery", func(t *testing.T) {
		deliverer := &recordingDeliverer{failures: 100}
		w, store, _ := newTestWorker(t, &stubProcessor{err: errors.New("boom")}, deliverer)

		job := runOne(t, w, store, models.KindWorksheet)

		assert.Equal(t, models.StatusFailedDelivery, job.Status)
		assert.Equal(t, 4, job.CallbackAttempts)
		require.NotNil(t, job.LastError)
		assert.Equal(t, DeliveryFailedMessage, *job.LastError)
		assert.Equal(t, []string{CodeProcessingError, CodeProcessingError, CodeProcessingError, CodeProcessingError}, deliverer.codes)
	})

	t.Run("Panic does not stop the worker", func(t *testing.T) {
		deliverer := &recordingDeliverer{}
		w, store, _ := newTestWorker(t, &stubProcessor{panic: true}, deliverer)

		job := runOne(t, w, store, models.KindMaterial)

		assert.Equal(t, models.StatusProcessing, job.Status)
		assert.Equal(t, 0, deliverer.posts())

		status, current := w.getState()
		assert.Equal(t, "idle", status)
		assert.Empty(t, current)
	})
}

func TestWorkerRun(t *testing.T) {
	t.Run("Processes queued jobs then stops", func(t *testing.T) {
		deliverer := &recordingDeliverer{}
		w, store, _ := newTestWorker(t, &stubProcessor{}, deliverer)

		ctx := context.Background()
		ids := make([]string, 3)
		for i := range ids {
			id, err := store.Enqueue(ctx, models.KindMaterial, testSubmission())
			require.NoError(t, err)
			ids[i] = id
		}

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, func() bool { return deliverer.posts() == 3 }, 2*time.Second, 5*time.Millisecond)
		assert.True(t, w.IsRunning())

		w.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
		assert.False(t, w.IsRunning())

		for _, id := range ids {
			job, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.StatusSucceeded, job.Status)
		}
	})

	t.Run("Context cancellation stops the loop", func(t *testing.T) {
		w, _, _ := newTestWorker(t, &stubProcessor{}, &recordingDeliverer{})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, w.IsRunning, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
		status, _ := w.getState()
		assert.Equal(t, "stopped", status)
	})

	t.Run("Housekeeping runs before dequeue", func(t *testing.T) {
		var runs int
		var mu sync.Mutex
		cleanup := jobs.NewCleanupService(time.Minute, zap.NewNop(), jobs.CleanupTask{
			Name: "count",
			Run: func(context.Context) (int64, error) {
				mu.Lock()
				defer mu.Unlock()
				runs++
				return 0, nil
			},
		})

		w, _, _ := newTestWorker(t, &stubProcessor{}, &recordingDeliverer{})
		w.cleanup = cleanup

		ctx := context.Background()
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		// Plusieurs itérations à vide, une seule exécution dans la minute
		time.Sleep(100 * time.Millisecond)
		w.Stop()
		<-done

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, runs)
	})

	t.Run("Second Run is rejected", func(t *testing.T) {
		w, _, _ := newTestWorker(t, &stubProcessor{}, &recordingDeliverer{})

		ctx := context.Background()
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		require.Eventually(t, w.IsRunning, time.Second, 5*time.Millisecond)

		assert.Error(t, w.Run(ctx))

		w.Stop()
		<-done
	})
}

func TestMapErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Tool use failure", errors.New("model API error: tool_use_failed"), CodeModelToolUseFailed},
		{"Tool use wins over validation", &generation.ValidationError{Kind: generation.KindWorksheet, Message: "tool_use_failed"}, CodeModelToolUseFailed},
		{"Too large", extract.CheckSize(3*1024*1024, 1), CodeMaterialTooLarge},
		{"Material validation", fmt.Errorf("wrapped: %w", &generation.ValidationError{Kind: generation.KindMaterial, Message: "x"}), CodeMaterialValidationError},
		{"Worksheet validation", &generation.ValidationError{Kind: generation.KindWorksheet, Message: "x"}, CodeWorksheetValidationError},
		{"Other", errors.New("connection refused"), CodeProcessingError},
		{"Unsupported type", extract.ErrUnsupportedType, CodeProcessingError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCode(tt.err))
		})
	}
}

// scriptedModel rejoue une réponse fixe
type scriptedModel struct {
	reply string
}

func (m *scriptedModel) Complete(context.Context, string) (string, error) {
	return m.reply, nil
}

// callbackRecorder est un serveur de callback enregistrant les payloads reçus
type callbackRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (c *callbackRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload map[string]any
	_ = json.Unmarshal(body, &payload)

	c.mu.Lock()
	c.payloads = append(c.payloads, payload)
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (c *callbackRecorder) last() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

func activitiesJSON(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"activity_no":     i + 1,
			"task":            fmt.Sprintf("Task %d", i+1),
			"expected_output": "A labelled diagram",
			"assessment_hint": "Check the labels",
		}
	}
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

// newEndToEnd assemble le pipeline réel avec un modèle scripté
func newEndToEnd(t *testing.T, reply string) (*Worker, jobs.JobStore, *callbackRecorder, *storage.ArtifactService, string) {
	t.Helper()

	retrieval, err := rag.NewStore(nil, rag.DefaultConfig(), "", nil, zap.NewNop())
	require.NoError(t, err)

	backend, err := filesystem.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	artifacts := storage.NewArtifactService(backend, 24*time.Hour, nil, zap.NewNop())

	engine := generation.NewEngine(&scriptedModel{reply: reply}, nil, zap.NewNop())
	pipeline := NewPipeline(retrieval, engine, artifacts, PipelineConfig{MaxFileMB: 5, PublicBaseURL: "http://worker.test"}, zap.NewNop())

	recorder := &callbackRecorder{}
	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)

	store := jobs.NewJobStore(jobs.NewMemoryQueue(), testStoreConfig(), nil, nil, zap.NewNop())
	w := NewWorker(store, pipeline, callback.NewClient(5*time.Second), nil, testConfig(), nil, zap.NewNop())
	return w, store, recorder, artifacts, server.URL
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	text := strings.Repeat("Photosynthesis converts light energy into chemical energy in chloroplasts. ", 20)

	t.Run("Worksheet trimmed to the requested activity count", func(t *testing.T) {
		reply := mustJSON(t, map[string]any{
			"worksheet": map[string]any{
				"title":               "Photosynthesis",
				"learning_objectives": []string{"Explain light reactions"},
				"instructions":        []string{"Work in pairs"},
				"activities":          activitiesJSON(7),
				"worksheet_template":  "Name: ____",
				"assessment_rubric": []map[string]any{
					{"aspect": "Accuracy", "criteria": "Correct terms", "score_range": "1-4"},
				},
			},
		})
		w, store, recorder, artifacts, callbackURL := newEndToEnd(t, reply)

		id, err := store.Enqueue(ctx, models.KindWorksheet, &models.Submission{
			UserID:      "u-1",
			CallbackURL: callbackURL,
			Filename:    "notes.txt",
			ContentType: "text/plain",
			File:        []byte(text),
			Worksheet:   &models.WorksheetRequest{ActivityCount: 5},
		})
		require.NoError(t, err)

		job, err := store.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		w.handleJob(ctx, job)

		final, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSucceeded, final.Status)
		assert.Equal(t, 1, final.CallbackAttempts)

		payload := recorder.last()
		require.NotNil(t, payload)
		assert.Equal(t, "worksheet.generated", payload["event"])
		assert.Equal(t, id, payload["job_id"])
		assert.Equal(t, "succeeded", payload["status"])

		result := payload["result"].(map[string]any)
		worksheet := result["worksheet"].(map[string]any)
		activities := worksheet["activities"].([]any)
		require.Len(t, activities, 5)
		for i, a := range activities {
			assert.EqualValues(t, i+1, a.(map[string]any)["activity_no"])
		}
		assert.Contains(t, result["warnings"], "Worksheet activities trimmed from 7 to 5.")
		assert.Contains(t, result["warnings"], "RAG vectorstore unavailable; using in-memory fallback.")
		assert.NotEmpty(t, result["sources"])

		fileURL := result["file_url"].(string)
		prefix := "http://worker.test/api/v1/worksheet/files/"
		require.True(t, strings.HasPrefix(fileURL, prefix), fileURL)

		reader, meta, err := artifacts.Open(ctx, strings.TrimPrefix(fileURL, prefix))
		require.NoError(t, err)
		defer reader.Close()
		doc, _ := io.ReadAll(reader)
		assert.Contains(t, string(doc), "Photosynthesis")
		assert.Equal(t, ".md", meta.Extension)
	})

	t.Run("Unrequested block is dropped with a warning", func(t *testing.T) {
		reply := mustJSON(t, map[string]any{
			"mcq_quiz": map[string]any{"questions": []map[string]any{{
				"question":       "What does photosynthesis produce?",
				"options":        []string{"Glucose", "Salt", "Iron", "Sand"},
				"correct_answer": "Glucose",
				"explanation":    "Plants store energy as glucose.",
			}}},
			"summary": map[string]any{
				"title":      "Photosynthesis",
				"overview":   "Plants turn light into chemical energy.",
				"key_points": []string{"Chloroplasts"},
			},
		})
		w, store, recorder, _, callbackURL := newEndToEnd(t, reply)

		id, err := store.Enqueue(ctx, models.KindMaterial, &models.Submission{
			UserID:      "u-1",
			CallbackURL: callbackURL,
			Filename:    "notes.txt",
			ContentType: "text/plain",
			File:        []byte(text),
			Material: &models.MaterialRequest{
				GenerateTypes:   []models.GenerateType{models.GenerateSummary},
				SummaryMaxWords: 80,
			},
		})
		require.NoError(t, err)

		job, err := store.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		w.handleJob(ctx, job)

		final, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSucceeded, final.Status)

		payload := recorder.last()
		require.NotNil(t, payload)
		assert.Equal(t, "material.generated", payload["event"])

		result := payload["result"].(map[string]any)
		assert.NotContains(t, result, "mcq_quiz")
		assert.Contains(t, result, "summary")
		assert.Equal(t, "u-1", result["user_id"])
		assert.Contains(t, result["warnings"], "Model returned mcq_quiz even though it was not requested.")
		material := result["material"].(map[string]any)
		assert.Equal(t, "txt", material["file_type"])
	})

	t.Run("Oversized file fails processing", func(t *testing.T) {
		w, store, recorder, _, callbackURL := newEndToEnd(t, "{}")
		w.processor.(*Pipeline).cfg.MaxFileMB = 1

		id, err := store.Enqueue(ctx, models.KindMaterial, &models.Submission{
			UserID:      "u-1",
			CallbackURL: callbackURL,
			Filename:    "notes.txt",
			File:        []byte(strings.Repeat("a", 2*1024*1024)),
			Material:    &models.MaterialRequest{GenerateTypes: []models.GenerateType{models.GenerateSummary}, SummaryMaxWords: 80},
		})
		require.NoError(t, err)

		job, err := store.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		w.handleJob(ctx, job)

		final, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailedProcessing, final.Status)

		payload := recorder.last()
		require.NotNil(t, payload)
		assert.Equal(t, "failed_processing", payload["status"])
		assert.NotContains(t, payload, "result")
		errInfo := payload["error"].(map[string]any)
		assert.Equal(t, CodeMaterialTooLarge, errInfo["code"])
		assert.Equal(t, "File exceeds maximum size of 1 MB.", errInfo["message"])
	})
}
