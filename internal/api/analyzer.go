package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/imran59059/company-analytics/internal/metrics"
	"github.com/imran59059/company-analytics/internal/pipeline"
	"github.com/imran59059/company-analytics/internal/storage"
)

// Placeholders stored for stages that produced no text.
const (
	noAnalysis      = "No analysis generated."
	noDetails       = "No details available."
	noReviews       = "No reviews summary available."
	skippedAnalysis = "Analysis skipped. Company information could not be found."
)

// persistTimeout bounds the final write, which outlives a cancelled request.
const persistTimeout = 10 * time.Second

// AnalysisStore is the persistence surface the API needs.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, a *storage.Analysis) error
	GetAnalysis(ctx context.Context, uuid string) (storage.Analysis, error)
	ListAnalyses(ctx context.Context, page, limit int) ([]storage.AnalysisSummary, int, error)
	RecentAnalyses(ctx context.Context, n int) ([]storage.AnalysisSummary, error)
	DeleteAnalysis(ctx context.Context, uuid string) error
	Ping(ctx context.Context) error
}

// Analyzer starts pipeline runs and writes exactly one row per run.
type Analyzer struct {
	orch  *pipeline.Orchestrator
	store AnalysisStore
	now   func() time.Time
}

// NewAnalyzer creates an Analyzer. now may be nil.
func NewAnalyzer(orch *pipeline.Orchestrator, store AnalysisStore, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{orch: orch, store: store, now: now}
}

// Start launches a run bound to ctx.
func (a *Analyzer) Start(ctx context.Context, req pipeline.Request) (*pipeline.Run, error) {
	return a.orch.Start(ctx, req)
}

// SearchEnabled reports whether runs include web search.
func (a *Analyzer) SearchEnabled() bool {
	return a.orch.SearchEnabled()
}

// Finish persists the run's accumulated state. It runs on every exit path,
// including cancellation, so the write uses a context detached from ctx.
func (a *Analyzer) Finish(ctx context.Context, run *pipeline.Run, tr *pipeline.Transcript) (*storage.Analysis, error) {
	elapsed := a.now().Sub(run.StartedAt)
	row := buildAnalysis(run, tr, elapsed)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err := a.store.SaveAnalysis(wctx, row)

	status := runStatus(tr)
	metrics.RecordRun(string(run.Request.Variant), status, elapsed)
	log := slog.With("uuid", run.ID, "company", run.Request.Company, "status", status, "latency_ms", row.LatencyMs)
	if err != nil {
		metrics.PersistFailuresTotal.Inc()
		log.Error("persisting analysis failed", "error", err)
		return row, err
	}
	log.Info("analysis persisted")
	return row, nil
}

// Collect drains a run to completion and persists it.
func (a *Analyzer) Collect(ctx context.Context, req pipeline.Request) (*pipeline.Run, *pipeline.Transcript, error) {
	run, err := a.Start(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	tr := pipeline.NewTranscript()
	for ev := range run.Events {
		tr.Apply(ev)
	}
	_, err = a.Finish(ctx, run, tr)
	return run, tr, err
}

func runStatus(tr *pipeline.Transcript) string {
	if !tr.Terminal() {
		return "cancelled"
	}
	return string(tr.Status)
}

func buildAnalysis(run *pipeline.Run, tr *pipeline.Transcript, elapsed time.Duration) *storage.Analysis {
	latency := elapsed.Milliseconds()
	if latency < 1 {
		latency = 1
	}

	analysis := tr.Text(pipeline.StageAnalysis)
	switch {
	case tr.Status == pipeline.StatusNotFound:
		analysis = skippedAnalysis
	case analysis == "":
		analysis = noAnalysis
	}

	var reviews *string
	if run.Request.Variant == pipeline.TriStep {
		reviews = ptr(orDefault(tr.Text(pipeline.StageVoice), noReviews))
	}

	var sourcesJSON *string
	if tr.Search != nil {
		if b, err := json.Marshal(tr.Search.Metadata.Sources); err == nil {
			sourcesJSON = ptr(string(b))
		}
	}

	return &storage.Analysis{
		AnalysisSummary: storage.AnalysisSummary{
			UUID:              run.ID,
			CompanyName:       run.Request.Company,
			NumberOfEmployees: optional(run.Request.Hints.Employees),
			CompanyGSTIN:      optional(run.Request.Hints.GSTIN),
			Model:             run.ModelTag,
			LatencyMs:         latency,
		},
		Analysis:       analysis,
		CompanyDetails: orDefault(tr.Text(pipeline.StageDetails), noDetails),
		Reviews:        reviews,
		Sources:        sourcesJSON,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr(s string) *string { return &s }
