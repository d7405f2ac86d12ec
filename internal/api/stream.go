package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imran59059/company-analytics/internal/composer"
	"github.com/imran59059/company-analytics/internal/pipeline"
)

// AnalysisRequest is the body of the streaming analysis endpoints.
type AnalysisRequest struct {
	Prompt            string     `json:"prompt"`
	NumberOfEmployees flexString `json:"numberOfEmployees"`
	CompanyGSTIN      string     `json:"companyGstin"`
	Model             string     `json:"model"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func (req AnalysisRequest) pipelineRequest(v pipeline.Variant) pipeline.Request {
	return pipeline.Request{
		Company: req.Prompt,
		Hints: composer.Hints{
			Employees: strings.TrimSpace(string(req.NumberOfEmployees)),
			GSTIN:     strings.TrimSpace(req.CompanyGSTIN),
		},
		Model:   req.Model,
		Variant: v,
	}
}

func handleAnalysisStream(deps Deps, variant pipeline.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			httpError(w, http.StatusBadRequest, "Missing 'prompt' (company name) in request body.")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		run, err := deps.Analyzer.Start(r.Context(), req.pipelineRequest(variant))
		if err != nil {
			if errors.Is(err, pipeline.ErrInvalidRequest) {
				httpError(w, http.StatusBadRequest, "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "starting analysis: %v", err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sse := &sseWriter{w: w, f: flusher}
		tr := pipeline.NewTranscript()

		ticker := time.NewTicker(deps.Heartbeat)
		defer ticker.Stop()

	loop:
		for {
			select {
			case ev, ok := <-run.Events:
				if !ok {
					break loop
				}
				tr.Apply(ev)
				for _, frame := range wireFrames(run, tr, ev) {
					sse.data(frame)
				}
			case <-ticker.C:
				sse.comment("ping")
			}
		}

		if _, err := deps.Analyzer.Finish(r.Context(), run, tr); err != nil && r.Context().Err() == nil {
			sse.data(map[string]any{"error": fmt.Sprintf("Failed to save analysis: %v", err)})
		}
	}
}

// wireFrames maps one pipeline event to the JSON frames clients expect.
func wireFrames(run *pipeline.Run, tr *pipeline.Transcript, ev pipeline.Event) []map[string]any {
	switch ev.Kind {
	case pipeline.EventFragment:
		return []map[string]any{{
			"text":     ev.Text,
			"step":     int(ev.Stage),
			"stepName": pipeline.StageName(ev.Stage),
			"uuid":     run.ID,
		}}
	case pipeline.EventSources:
		return []map[string]any{{
			"type":            "sources",
			"sourcesMetadata": ev.Search.Metadata,
		}}
	case pipeline.EventTransition:
		return []map[string]any{{
			"transition": ev.Message,
			"step":       "transition-" + strconv.Itoa(int(ev.From)) + "-" + strconv.Itoa(int(ev.To)),
			"message":    ev.Message,
		}}
	case pipeline.EventStageDone:
		return []map[string]any{{
			"stepComplete": ev.Label,
			"step":         int(ev.Stage),
			"finalStep":    ev.Final,
		}}
	case pipeline.EventNotFound:
		return []map[string]any{
			{
				"notFound":  true,
				"message":   ev.Message,
				"step":      int(ev.Stage),
				"stepName":  pipeline.StageName(ev.Stage),
				"finalStep": true,
			},
			doneFrame(run, tr),
		}
	case pipeline.EventError:
		return []map[string]any{{"error": ev.Message}}
	case pipeline.EventDone:
		return []map[string]any{doneFrame(run, tr)}
	}
	return nil
}

func doneFrame(run *pipeline.Run, tr *pipeline.Transcript) map[string]any {
	var meta any
	if tr.Search != nil {
		meta = tr.Search.Metadata
	}
	return map[string]any{
		"done":             true,
		"allStepsComplete": true,
		"analysisUuid":     run.ID,
		"sourcesMetadata":  meta,
	}
}

// sseWriter writes text/event-stream frames. Write errors mean the client is
// gone; later writes become no-ops and the run is stopped by the request
// context.
type sseWriter struct {
	w      http.ResponseWriter
	f      http.Flusher
	broken bool
}

func (s *sseWriter) data(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding sse frame", "error", err)
		return
	}
	s.write("data: " + string(b) + "\n\n")
}

func (s *sseWriter) comment(text string) {
	s.write(": " + text + "\n\n")
}

func (s *sseWriter) write(frame string) {
	if s.broken {
		return
	}
	if _, err := s.w.Write([]byte(frame)); err != nil {
		s.broken = true
		return
	}
	s.f.Flush()
}
