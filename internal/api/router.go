package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/imran59059/company-analytics/internal/llm"
	"github.com/imran59059/company-analytics/internal/metrics"
	"github.com/imran59059/company-analytics/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Analyzer  *Analyzer
	Store     AnalysisStore
	Providers *llm.Registry
	RateLimit RateLimit
	// Heartbeat is the SSE keep-alive interval; zero uses 15s.
	Heartbeat time.Duration
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// NewHandler returns the service's HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth(deps))
	r.Get("/api/models", handleModels(deps))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(newClientLimiter(deps.RateLimit).middleware)
		r.Post("/tri-step-analysis-stream", handleAnalysisStream(deps, pipeline.TriStep))
		r.Post("/dual-step-analysis-stream", handleAnalysisStream(deps, pipeline.DualStep))
	})

	r.Get("/api/company-analytics", handleListAnalyses(deps))
	r.Get("/api/company-analytics/{uuid}", handleGetAnalysis(deps))
	r.Delete("/api/company-analytics/{uuid}", handleDeleteAnalysis(deps))
	r.Get("/api/company-sources/{uuid}", handleGetSources(deps))

	if deps.MCP != nil {
		r.Handle("/mcp", deps.MCP)
	}
	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		providers := map[string]bool{}
		if deps.Providers != nil {
			for _, p := range deps.Providers.Status(ctx) {
				providers[p.Name] = p.Available
			}
		}
		database := "ok"
		if deps.Store == nil {
			database = "unavailable"
		} else if err := deps.Store.Ping(ctx); err != nil {
			database = "unavailable"
		}
		search := deps.Analyzer != nil && deps.Analyzer.SearchEnabled()

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"providers": providers,
			"search":    search,
			"database":  database,
		})
	}
}

func handleModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		var providers []llm.ProviderStatus
		if deps.Providers != nil {
			providers = deps.Providers.Catalog(ctx)
		}
		if providers == nil {
			providers = []llm.ProviderStatus{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"providers": providers,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
}
