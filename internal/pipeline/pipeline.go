// Package pipeline drives the staged company analysis and reports progress
// as a stream of events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imran59059/company-analytics/internal/composer"
	"github.com/imran59059/company-analytics/internal/llm"
	"github.com/imran59059/company-analytics/internal/metrics"
	"github.com/imran59059/company-analytics/internal/search"
	"github.com/imran59059/company-analytics/internal/sources"
)

// Variant selects which stages a run executes.
type Variant string

const (
	// TriStep runs search, details, summary and solution mapping.
	TriStep Variant = "tri-step"
	// DualStep runs search, details and a comprehensive analysis.
	DualStep Variant = "dual-step"
)

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool {
	return v == TriStep || v == DualStep
}

// ErrInvalidRequest wraps every error Start returns.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Request is one analysis request.
type Request struct {
	Company string
	Hints   composer.Hints
	// Model is a "provider" or "provider:model" selector; empty uses the default.
	Model   string
	Variant Variant
}

// Options configure an Orchestrator.
type Options struct {
	// StageTimeout bounds each stage; zero disables the bound.
	StageTimeout time.Duration
	Policy       Policy
	// Now is the clock used for timestamps; nil uses time.Now.
	Now func() time.Time
}

// Orchestrator runs analysis pipelines. It is safe for concurrent use; each
// run owns its own state.
type Orchestrator struct {
	generators *llm.Registry
	searcher   search.Searcher
	composer   *composer.Composer
	opts       Options
}

// New creates an Orchestrator. searcher may be nil, in which case runs skip
// the search stage.
func New(generators *llm.Registry, searcher search.Searcher, comp *composer.Composer, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		generators: generators,
		searcher:   searcher,
		composer:   comp,
		opts:       opts,
	}
}

// SearchEnabled reports whether runs include the web search stage.
func (o *Orchestrator) SearchEnabled() bool {
	return o.searcher != nil
}

// Run is a started pipeline execution.
type Run struct {
	ID        string
	Request   Request
	Provider  string
	Model     string
	// ModelTag identifies the generation pipeline for persistence,
	// e.g. "gpt-4o-tri-step-with-search".
	ModelTag  string
	StartedAt time.Time
	// Events is closed when the run ends. After the run's context is
	// cancelled no further events are sent.
	Events <-chan Event
}

// Start validates req, resolves its model and launches the run. The run
// stops when ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Run, error) {
	req.Company = strings.TrimSpace(req.Company)
	if req.Company == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidRequest)
	}
	if req.Variant == "" {
		req.Variant = TriStep
	}
	if !req.Variant.Valid() {
		return nil, fmt.Errorf("%w: unknown pipeline variant %q", ErrInvalidRequest, req.Variant)
	}
	gen, model, err := o.generators.Resolve(req.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	tag := fmt.Sprintf("%s-%s", model, req.Variant)
	if o.searcher != nil {
		tag += "-with-search"
	}

	events := make(chan Event)
	run := &Run{
		ID:        uuid.NewString(),
		Request:   req,
		Provider:  gen.Name(),
		Model:     model,
		ModelTag:  tag,
		StartedAt: o.opts.Now(),
		Events:    events,
	}

	st := &runState{
		o:     o,
		run:   run,
		gen:   gen,
		out:   events,
		plan:  o.plan(req.Variant),
		texts: make(map[Stage]string),
	}
	go st.execute(ctx)
	return run, nil
}

// stageSpec describes one generation stage.
type stageSpec struct {
	stage       Stage
	complete    string
	transition  string
	temperature float32
	maxTokens   int
	prompt      func(st *runState) string
}

// StageName returns the display name of a stage.
func StageName(s Stage) string {
	switch s {
	case StageSearch:
		return "Live Web Search"
	case StageDetails:
		return "Company Research"
	case StageAnalysis:
		return "Strategic Analysis"
	case StageVoice:
		return "Solution Mapping"
	default:
		return s.Key()
	}
}

func (o *Orchestrator) plan(v Variant) []stageSpec {
	details := stageSpec{
		stage:       StageDetails,
		complete:    "Company details completed",
		transition:  "Analyzing gathered data with AI...",
		temperature: 0.7,
		maxTokens:   1500,
		prompt: func(st *runState) string {
			return st.o.composer.Details(st.run.Request.Company, st.searchText(), st.run.Request.Hints)
		},
	}

	if v == DualStep {
		details.complete = "Company details gathered successfully"
		return []stageSpec{
			details,
			{
				stage:       StageAnalysis,
				complete:    "Comprehensive analysis completed",
				transition:  "Processing company details for comprehensive analysis...",
				temperature: 0.7,
				maxTokens:   4000,
				prompt: func(st *runState) string {
					return st.o.composer.Analysis(st.run.Request.Company, st.texts[StageDetails], st.run.Request.Hints)
				},
			},
		}
	}

	return []stageSpec{
		details,
		{
			stage:       StageAnalysis,
			complete:    "Analysis completed",
			transition:  "Creating strategic analysis...",
			temperature: 0.7,
			maxTokens:   300,
			prompt: func(st *runState) string {
				return st.o.composer.Summary(st.run.Request.Company, st.texts[StageDetails])
			},
		},
		{
			stage:       StageVoice,
			complete:    "Solution mapping completed",
			transition:  fmt.Sprintf("Mapping to %s solutions...", o.composer.Product.Name),
			temperature: 0.8,
			maxTokens:   800,
			prompt: func(st *runState) string {
				return st.o.composer.Voice(st.run.Request.Company, st.searchText())
			},
		},
	}
}

// runState is owned by the run goroutine.
type runState struct {
	o      *Orchestrator
	run    *Run
	gen    llm.Generator
	out    chan<- Event
	plan   []stageSpec
	search *SearchOutcome
	texts  map[Stage]string
}

func (st *runState) searchText() string {
	if st.search == nil {
		return ""
	}
	return st.search.Text
}

// emit sends ev unless ctx is done. It reports whether the run may continue.
func (st *runState) emit(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case st.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (st *runState) execute(ctx context.Context) {
	defer close(st.out)

	log := slog.With("uuid", st.run.ID, "company", st.run.Request.Company, "variant", st.run.Request.Variant)
	log.Info("analysis started", "provider", st.run.Provider, "model", st.run.Model)

	prev := StageSearch
	if st.o.searcher != nil {
		if !st.runSearch(ctx) {
			return
		}
	}

	for i, spec := range st.plan {
		if st.o.searcher != nil || i > 0 {
			if !st.emit(ctx, Event{Kind: EventTransition, From: prev, To: spec.stage, Message: spec.transition}) {
				return
			}
		}

		final := i == len(st.plan)-1
		text, err := st.generate(ctx, spec)
		if ctx.Err() != nil {
			log.Info("analysis cancelled", "stage", spec.stage.Key())
			return
		}
		if err != nil {
			log.Error("stage failed", "stage", spec.stage.Key(), "error", err)
			st.emit(ctx, Event{Kind: EventError, Stage: spec.stage, Message: err.Error()})
			return
		}
		st.texts[spec.stage] = text

		if spec.stage == StageDetails {
			verdict := st.o.opts.Policy.Check(text, st.o.searcher != nil)
			log.Debug("details verdict", "verdict", verdict.String(), "evidence", st.search.HasEvidence())
			if verdict == NotFound {
				log.Info("company not found")
				st.emit(ctx, Event{
					Kind:    EventNotFound,
					Stage:   StageDetails,
					Final:   true,
					Message: "Company information could not be verified. Please verify the company name.",
				})
				return
			}
		}

		if !st.emit(ctx, Event{Kind: EventStageDone, Stage: spec.stage, Label: spec.complete, Final: final}) {
			return
		}
		prev = spec.stage
	}

	log.Info("analysis completed")
	st.emit(ctx, Event{Kind: EventDone, Final: true})
}

// runSearch executes stage 0. Search failures degrade to placeholder text and
// never end the run.
func (st *runState) runSearch(ctx context.Context) bool {
	if !st.emit(ctx, Event{Kind: EventFragment, Stage: StageSearch, Text: "🔍 Searching the web for live company data...\n\n"}) {
		return false
	}

	sctx, cancel := st.stageContext(ctx)
	start := time.Now()
	results := search.Company(sctx, st.o.searcher, st.run.Request.Company)
	cancel()
	metrics.ObserveStage(StageSearch.Key(), time.Since(start))
	if ctx.Err() != nil {
		return false
	}

	for _, r := range results {
		outcome := "ok"
		switch {
		case r.Err != nil:
			outcome = "error"
			slog.Warn("search category failed", "uuid", st.run.ID, "category", r.Category.Key, "error", r.Err)
		case r.Count() == 0:
			outcome = "empty"
		}
		metrics.RecordSearch(r.Category.Key, outcome)
	}

	f := sources.Format(st.run.Request.Company, results, st.o.opts.Now())
	st.search = &SearchOutcome{Text: f.Text, Metadata: f.Metadata, Results: results}
	st.texts[StageSearch] = f.Text

	return st.emit(ctx, Event{Kind: EventFragment, Stage: StageSearch, Text: sources.Summary(results)}) &&
		st.emit(ctx, Event{Kind: EventSources, Stage: StageSearch, Search: st.search}) &&
		st.emit(ctx, Event{Kind: EventStageDone, Stage: StageSearch, Label: "Web search completed"})
}

func (st *runState) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if st.o.opts.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, st.o.opts.StageTimeout)
}

// generate streams one stage, forwarding fragments as they arrive, and
// returns the accumulated text.
func (st *runState) generate(ctx context.Context, spec stageSpec) (string, error) {
	sctx, cancel := st.stageContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.ObserveStage(spec.stage.Key(), time.Since(start)) }()

	stream, err := st.gen.Stream(sctx, llm.Request{
		Model:       st.run.Model,
		Prompt:      spec.prompt(st),
		Temperature: spec.temperature,
		MaxTokens:   spec.maxTokens,
	})
	if err != nil {
		return "", st.stageError(ctx, sctx, spec, err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), st.stageError(ctx, sctx, spec, err)
		}
		sb.WriteString(frag)
		if !st.emit(ctx, Event{Kind: EventFragment, Stage: spec.stage, Text: frag}) {
			return sb.String(), ctx.Err()
		}
	}
}

// stageError turns a generation failure into the message shown to clients.
func (st *runState) stageError(ctx, sctx context.Context, spec stageSpec, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ce *llm.ConfigError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", StageName(spec.stage), st.o.opts.StageTimeout)
	}
	return fmt.Errorf("%s API Error (Step %d): %w", providerLabel(st.gen.Name()), int(spec.stage), err)
}

func providerLabel(name string) string {
	switch name {
	case "openai":
		return "OpenAI"
	case "openrouter":
		return "OpenRouter"
	case "ollama":
		return "Ollama"
	default:
		return name
	}
}
