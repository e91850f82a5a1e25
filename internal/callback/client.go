// Package callback livre le résultat d'un job par un POST JSON sur l'URL fournie par l'appelant.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StatusError signale une réponse hors 2xx
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback %s returned HTTP %d", e.URL, e.StatusCode)
}

// Client effectue une tentative de livraison par appel; les nouvelles
// tentatives sont à la charge du worker.
type Client struct {
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// Une redirection n'est pas un accusé de réception
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		tracer: otel.Tracer("ocf-material-worker/callback"),
	}
}

// Deliver poste le payload; seul un statut 2xx vaut succès
func (c *Client) Deliver(ctx context.Context, url string, payload *Payload) error {
	ctx, span := c.tracer.Start(ctx, "Callback.Deliver")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", payload.JobID), attribute.Int("callback.attempt", payload.Attempt))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{StatusCode: resp.StatusCode, URL: url}
		span.RecordError(err)
		return err
	}
	return nil
}
