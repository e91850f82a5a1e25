package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger journalise chaque requête; les erreurs de validation sont en Warn
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request failed", fields...)
		case status == http.StatusUnprocessableEntity || status == http.StatusRequestEntityTooLarge:
			logger.Warn("HTTP request rejected", fields...)
		default:
			logger.Debug("HTTP request", fields...)
		}
	}
}

// MetricsMiddleware enregistre la durée des requêtes par route
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// StandardErrorResponse middleware pour standardiser les réponses d'erreur
func StandardErrorResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Si c'est une erreur et qu'aucune réponse n'a été envoyée
		if c.Writer.Status() >= 400 && !c.Writer.Written() {
			c.JSON(c.Writer.Status(), gin.H{
				"error":     http.StatusText(c.Writer.Status()),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"path":      c.Request.URL.Path,
			})
		}
	}
}

// RateLimitMiddleware - Rate limiting basique par IP sur une fenêtre glissante d'une minute
func RateLimitMiddleware(requestsPerMinute int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string][]time.Time)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		now := time.Now()

		mu.Lock()
		// Nettoyer les anciens timestamps (> 1 minute)
		var validTimestamps []time.Time
		for _, timestamp := range clients[clientIP] {
			if now.Sub(timestamp) < time.Minute {
				validTimestamps = append(validTimestamps, timestamp)
			}
		}

		// Vérifier le nombre de requêtes
		if len(validTimestamps) >= requestsPerMinute {
			clients[clientIP] = validTimestamps
			mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "60 seconds",
			})
			c.Abort()
			return
		}

		// Ajouter la requête actuelle
		clients[clientIP] = append(validTimestamps, now)
		mu.Unlock()
		c.Next()
	}
}

// SecurityHeadersMiddleware ajoute des headers de sécurité
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
