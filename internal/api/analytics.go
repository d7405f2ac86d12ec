package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/imran59059/company-analytics/internal/sources"
	"github.com/imran59059/company-analytics/internal/storage"
)

// analysisView is a stored row plus its decoded sources.
type analysisView struct {
	storage.Analysis
	SourcesParsed json.RawMessage `json:"sources_parsed,omitempty"`
}

func newAnalysisView(a storage.Analysis) analysisView {
	v := analysisView{Analysis: a}
	if a.Sources != nil {
		if json.Valid([]byte(*a.Sources)) {
			v.SourcesParsed = json.RawMessage(*a.Sources)
		} else {
			v.SourcesParsed = json.RawMessage("null")
		}
	}
	return v
}

type sourceEntry struct {
	Platform      string  `json:"platform"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Domain        string  `json:"domain"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

func handleListAnalyses(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", storage.DefaultPageSize)
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = storage.DefaultPageSize
		}
		if limit > storage.MaxPageSize {
			limit = storage.MaxPageSize
		}

		items, total, err := deps.Store.ListAnalyses(r.Context(), page, limit)
		if err != nil {
			slog.Error("listing analyses", "error", err)
			httpError(w, http.StatusInternalServerError, "Failed to fetch company analytics")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    items,
			"pagination": map[string]int{
				"page":  page,
				"limit": limit,
				"total": total,
				"pages": (total + limit - 1) / limit,
			},
		})
	}
}

func handleGetAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := deps.Store.GetAnalysis(r.Context(), chi.URLParam(r, "uuid"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Company analysis not found")
			return
		}
		if err != nil {
			slog.Error("fetching analysis", "error", err)
			httpError(w, http.StatusInternalServerError, "Failed to fetch company analysis")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    newAnalysisView(a),
		})
	}
}

func handleDeleteAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteAnalysis(r.Context(), chi.URLParam(r, "uuid"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Company analysis not found")
			return
		}
		if err != nil {
			slog.Error("deleting analysis", "error", err)
			httpError(w, http.StatusInternalServerError, "Failed to delete company analysis")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Company analysis deleted successfully",
		})
	}
}

func handleGetSources(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := deps.Store.GetAnalysis(r.Context(), chi.URLParam(r, "uuid"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		if err != nil {
			slog.Error("fetching sources", "error", err)
			httpError(w, http.StatusInternalServerError, "Failed to fetch sources")
			return
		}

		all := []sources.Source{}
		if a.Sources != nil {
			if err := json.Unmarshal([]byte(*a.Sources), &all); err != nil {
				slog.Warn("stored sources are not valid JSON", "uuid", a.UUID, "error", err)
				all = []sources.Source{}
			}
		}

		byCategory := map[string][]sourceEntry{}
		for _, s := range all {
			byCategory[s.Category] = append(byCategory[s.Category], sourceEntry{
				Platform:      s.Platform,
				Title:         s.Title,
				URL:           s.URL,
				Domain:        s.Domain,
				Score:         s.Score,
				PublishedDate: s.PublishedDate,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":             true,
			"company_name":        a.CompanyName,
			"sources_by_category": byCategory,
			"all_sources":         all,
			"total_sources":       len(all),
			"created_at":          a.CreatedAt.Format(time.RFC3339),
		})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
