package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imran59059/company-analytics/internal/composer"
	"github.com/imran59059/company-analytics/internal/llm"
	"github.com/imran59059/company-analytics/internal/pipeline"
	"github.com/imran59059/company-analytics/internal/search"
	"github.com/imran59059/company-analytics/internal/storage"
)

// --- mocks ---

type script struct {
	fragments []string
	err       error
	delay     time.Duration
	block     bool
	blocked   chan struct{} // closed when the stream starts blocking
}

type mockGenerator struct {
	mu      sync.Mutex
	scripts []script
}

func (m *mockGenerator) Name() string { return "openai" }

func (m *mockGenerator) Stream(ctx context.Context, _ llm.Request) (llm.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scripts) == 0 {
		return &mockStream{ctx: ctx}, nil
	}
	s := m.scripts[0]
	m.scripts = m.scripts[1:]
	return &mockStream{ctx: ctx, s: s}, nil
}

type mockStream struct {
	ctx     context.Context
	s       script
	pos     int
	delayed bool
}

func (m *mockStream) Recv() (string, error) {
	if !m.delayed && m.s.delay > 0 {
		m.delayed = true
		select {
		case <-time.After(m.s.delay):
		case <-m.ctx.Done():
			return "", m.ctx.Err()
		}
	}
	if err := m.ctx.Err(); err != nil {
		return "", err
	}
	if m.pos < len(m.s.fragments) {
		f := m.s.fragments[m.pos]
		m.pos++
		return f, nil
	}
	if m.s.block {
		if m.s.blocked != nil {
			close(m.s.blocked)
			m.s.blocked = nil
		}
		<-m.ctx.Done()
		return "", m.ctx.Err()
	}
	if m.s.err != nil {
		return "", m.s.err
	}
	return "", io.EOF
}

func (m *mockStream) Close() error { return nil }

type mockSearcher struct {
	results []search.Result
}

func (m *mockSearcher) Search(_ context.Context, query string, _ search.Options) (*search.Response, error) {
	if strings.Contains(query, "headquarters") {
		return &search.Response{Query: query, Results: m.results}, nil
	}
	return &search.Response{Query: query}, nil
}

func evidenceSearcher() *mockSearcher {
	return &mockSearcher{results: []search.Result{
		{Title: "Acme Corp | LinkedIn", URL: "https://www.linkedin.com/company/acme", Content: "Acme builds anvils.", Score: 0.9},
		{Title: "Acme Corp - Crunchbase", URL: "https://www.crunchbase.com/organization/acme", Content: "Founded 1949.", Score: 0.8},
	}}
}

type memStore struct {
	mu      sync.Mutex
	rows    map[string]storage.Analysis
	nextID  int64
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]storage.Analysis)}
}

func (m *memStore) SaveAnalysis(_ context.Context, a *storage.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.rows[a.UUID]; ok {
		return errors.New("duplicate uuid")
	}
	m.nextID++
	a.ID = m.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.nextID) * time.Minute)
	}
	m.rows[a.UUID] = *a
	return nil
}

func (m *memStore) GetAnalysis(_ context.Context, uuid string) (storage.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[uuid]
	if !ok {
		return storage.Analysis{}, storage.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAnalyses(_ context.Context, page, limit int) ([]storage.AnalysisSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]storage.AnalysisSummary, 0, len(m.rows))
	for _, a := range m.rows {
		all = append(all, a.AnalysisSummary)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memStore) RecentAnalyses(ctx context.Context, n int) ([]storage.AnalysisSummary, error) {
	items, _, err := m.ListAnalyses(ctx, 1, n)
	return items, err
}

func (m *memStore) DeleteAnalysis(_ context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[uuid]; !ok {
		return storage.ErrNotFound
	}
	delete(m.rows, uuid)
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) only(t *testing.T) storage.Analysis {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) != 1 {
		t.Fatalf("stored rows = %d, want 1", len(m.rows))
	}
	for _, a := range m.rows {
		return a
	}
	return storage.Analysis{}
}

// --- helpers ---

func newTestRegistry(gen llm.Generator) *llm.Registry {
	reg := llm.NewRegistry("openai")
	reg.Register(gen, "gpt-4o")
	return reg
}

func newTestAnalyzer(gen llm.Generator, s search.Searcher, store AnalysisStore) *Analyzer {
	orch := pipeline.New(
		newTestRegistry(gen),
		s,
		composer.New(composer.Product{Name: "Wazo Pulse", URL: "https://wazopulse.com"}, 0),
		pipeline.Options{Policy: pipeline.DefaultPolicy},
	)
	return NewAnalyzer(orch, store, nil)
}

// sseFrames splits an event-stream body into decoded data frames.
func sseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			t.Fatalf("decoding frame %q: %v", line, err)
		}
		frames = append(frames, f)
	}
	return frames
}

// frameKind names a frame by its distinguishing key.
func frameKind(f map[string]any) string {
	switch {
	case f["error"] != nil:
		return "error"
	case f["type"] == "sources":
		return "sources"
	case f["notFound"] == true:
		return "notFound"
	case f["done"] == true:
		return "done"
	case f["transition"] != nil:
		return "transition"
	case f["stepComplete"] != nil:
		return "stepComplete"
	case f["text"] != nil:
		return "text"
	}
	return "unknown"
}

// stepText concatenates the text frames of one step.
func stepText(frames []map[string]any, step int) string {
	var b strings.Builder
	for _, f := range frames {
		if frameKind(f) == "text" && f["step"] == float64(step) {
			b.WriteString(f["text"].(string))
		}
	}
	return b.String()
}
