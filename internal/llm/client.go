// Package llm implémente un client pour les API compatibles OpenAI
// (chat completions et embeddings).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"

	"go.uber.org/zap"
)

// Config paramètre le client
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	Temperature    float64
	// MaxIterations borne les itérations d'appels d'outils côté fournisseur;
	// le client n'expose pas d'outils et transmet seulement la valeur.
	MaxIterations int
}

// Client appelle /chat/completions et /embeddings.
// Les réponses 429 et 5xx sont réessayées jusqu'à MaxRetries fois.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	sleep      func(time.Duration)
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.OrNop(log).Named("llm"),
		sleep:      time.Sleep,
	}
}

// APIError est une réponse non-2xx du fournisseur; le corps est conservé
// pour que l'appelant puisse reconnaître les codes d'erreur (ex: tool_use_failed).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete envoie un prompt utilisateur unique et retourne le texte de la réponse
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDocuments retourne un vecteur par texte, dans l'ordre des entrées
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.cfg.EmbeddingModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("llm provider returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode llm request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(attempt) * time.Second)
		}

		lastErr = c.do(ctx, url, payload, out)
		if lastErr == nil {
			return nil
		}
		var apiErr *APIError
		if ctx.Err() != nil || (errors.As(lastErr, &apiErr) && !apiErr.retryable()) {
			return lastErr
		}
		c.logger.Warn("Client.post: retrying llm call",
			zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read llm response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode llm response: %w", err)
	}
	return nil
}
