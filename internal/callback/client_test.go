package callback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob() *models.Job {
	return &models.Job{ID: "job-1", Kind: models.KindWorksheet, UserID: "user-1"}
}

func TestDeliver(t *testing.T) {
	finished := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Any 2xx is success", func(t *testing.T) {
		var received map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		payload := Succeeded(testJob(), map[string]string{"file_url": "http://x"}, finished)
		payload.Attempt = 2

		err := NewClient(time.Second).Deliver(context.Background(), server.URL, payload)
		require.NoError(t, err)
		assert.Equal(t, "worksheet.generated", received["event"])
		assert.Equal(t, "succeeded", received["status"])
		assert.Equal(t, float64(2), received["attempt"])
		assert.NotContains(t, received, "error")
		assert.Equal(t, "2026-03-01T10:00:00Z", received["finished_at"])
	})

	t.Run("Failure payload carries the error", func(t *testing.T) {
		var received map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&received)
		}))
		defer server.Close()

		payload := Failed(testJob(), "processing_error", "boom", finished)
		require.NoError(t, NewClient(time.Second).Deliver(context.Background(), server.URL, payload))
		assert.NotContains(t, received, "result")
		assert.Equal(t, map[string]any{"code": "processing_error", "message": "boom"}, received["error"])
	})

	t.Run("Non-2xx is failure", func(t *testing.T) {
		for _, code := range []int{http.StatusFound, http.StatusBadRequest, http.StatusInternalServerError} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if code == http.StatusFound {
					http.Redirect(w, r, "/elsewhere", code)
					return
				}
				w.WriteHeader(code)
			}))

			err := NewClient(time.Second).Deliver(context.Background(), server.URL, Failed(testJob(), "c", "m", finished))
			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr), "status %d", code)
			assert.Equal(t, code, statusErr.StatusCode)
			server.Close()
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		err := NewClient(50*time.Millisecond).Deliver(context.Background(), server.URL, Failed(testJob(), "c", "m", finished))
		assert.Error(t, err)
	})
}
