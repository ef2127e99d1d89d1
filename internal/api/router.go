package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/api/handlers"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

// Pinger reports whether the backing database answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes bundles what the router serves. Nil optional fields disable their routes.
type Routes struct {
	Quality *handlers.QualityHandler
	Monitor *handlers.MonitorHandler

	// Stream serves /ws/quality (optional)
	Stream http.Handler

	// Metrics serves /metrics (optional)
	Metrics http.Handler

	// DB is pinged by /health (optional)
	DB Pinger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(routes.DB)).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods("GET")
	}
	if routes.Stream != nil {
		r.Handle("/ws/quality", routes.Stream).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1/quality").Subrouter()

	// Scores
	q := routes.Quality
	api.HandleFunc("/metrics", q.GetMetrics).Methods("GET")
	api.HandleFunc("/metrics/{table}/{metric}/history", q.GetHistory).Methods("GET")
	api.HandleFunc("/metrics/{table}/{metric}/trend", q.GetTrend).Methods("GET")
	api.HandleFunc("/summary", q.GetSummary).Methods("GET")
	api.HandleFunc("/dashboard", q.GetDashboard).Methods("GET")

	// Issues
	api.HandleFunc("/issues", q.ListIssues).Methods("GET")
	api.HandleFunc("/issues/{id}", q.GetIssue).Methods("GET")
	api.HandleFunc("/issues/{id}/resolve", q.ResolveIssue).Methods("PUT")
	api.HandleFunc("/issues/{id}/ignore", q.IgnoreIssue).Methods("PUT")

	// Scheduler control
	m := routes.Monitor
	api.HandleFunc("/run-check", m.RunCheck).Methods("POST")
	api.HandleFunc("/monitoring/immediate-check", m.RunCheck).Methods("POST")
	api.HandleFunc("/monitoring/status", m.GetStatus).Methods("GET")
	api.HandleFunc("/monitoring/start", m.Start).Methods("POST")
	api.HandleFunc("/monitoring/stop", m.Stop).Methods("POST")
	api.HandleFunc("/monitoring/config", m.UpdateConfig).Methods("PUT")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "energy-quality-api",
		}
		status := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				body["database"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
