package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StatsFunc fournit un instantané JSON exposé sur /stats
type StatsFunc func() any

// Server sert /metrics et /stats sur un port séparé de l'API
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer construit le serveur de métriques
func NewServer(port string, m *Metrics, stats StatsFunc, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var payload any = map[string]string{}
		if stats != nil {
			payload = stats()
		}
		_ = json.NewEncoder(w).Encode(payload)
	}).Methods(http.MethodGet)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Material Worker Metrics</h1><p><a href="/metrics">/metrics</a> <a href="/stats">/stats</a></p></body></html>`)
	})

	return &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler expose le routeur (tests)
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run bloque jusqu'à l'annulation du contexte
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
