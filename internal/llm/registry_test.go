package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imran59059/company-analytics/internal/openrouter"
)

func newTestRegistry() *Registry {
	r := NewRegistry("openai")
	r.Register(NewOpenAI("sk-test", ""), "gpt-4o")
	r.Register(NewOpenRouter(nil), "openai/gpt-4o")
	r.Register(NewOllama("http://127.0.0.1:1", "llama3.1"), "llama3.1")
	return r
}

func TestResolve(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		selector  string
		wantName  string
		wantModel string
	}{
		{"", "openai", "gpt-4o"},
		{"openai", "openai", "gpt-4o"},
		{"openai:gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"OpenRouter", "openrouter", "openai/gpt-4o"},
		{"openrouter:anthropic/claude-3.5-sonnet", "openrouter", "anthropic/claude-3.5-sonnet"},
		{"ollama:qwen2.5:7b", "ollama", "qwen2.5:7b"},
	}
	for _, tt := range tests {
		g, model, err := r.Resolve(tt.selector)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.selector, err)
			continue
		}
		if g.Name() != tt.wantName {
			t.Errorf("Resolve(%q) provider = %q, want %q", tt.selector, g.Name(), tt.wantName)
		}
		if model != tt.wantModel {
			t.Errorf("Resolve(%q) model = %q, want %q", tt.selector, model, tt.wantModel)
		}
	}
}

func TestResolve_Unknown(t *testing.T) {
	r := newTestRegistry()
	if _, _, err := r.Resolve("gemini"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestUnconfiguredProviderReturnsConfigError(t *testing.T) {
	tests := []struct {
		gen  Generator
		want string
	}{
		{NewOpenAI("", ""), "OpenAI client not initialized"},
		{NewOpenRouter(nil), "OpenRouter client not initialized"},
	}
	for _, tt := range tests {
		_, err := tt.gen.Stream(context.Background(), Request{Prompt: "hi"})
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: err = %v, want ConfigError", tt.gen.Name(), err)
		}
		if err.Error() != tt.want {
			t.Errorf("%s: err = %q, want %q", tt.gen.Name(), err, tt.want)
		}
	}
}

func TestStatus(t *testing.T) {
	r := NewRegistry("openrouter")
	r.Register(NewOpenAI("", ""), "gpt-4o")
	r.Register(NewOpenRouter(openrouter.NewClient("k")), "openai/gpt-4o")

	st := r.Status(context.Background())
	if len(st) != 2 {
		t.Fatalf("len(Status) = %d, want 2", len(st))
	}
	if st[0].Name != "openai" || st[0].Available || st[0].Default {
		t.Errorf("openai status = %+v", st[0])
	}
	if st[1].Name != "openrouter" || !st[1].Available || !st[1].Default {
		t.Errorf("openrouter status = %+v", st[1])
	}
}

func newOllamaServer(t *testing.T, names ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		type entry struct {
			Name string `json:"name"`
		}
		var resp struct {
			Models []entry `json:"models"`
		}
		for _, n := range names {
			resp.Models = append(resp.Models, entry{Name: n})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaReady_RequiresDefaultModel(t *testing.T) {
	srv := newOllamaServer(t, "qwen2.5:7b")

	if NewOllama(srv.URL, "llama3.1").Ready(context.Background()) {
		t.Error("Ready() = true with the default model missing, want false")
	}
	if !NewOllama(srv.URL, "qwen2.5").Ready(context.Background()) {
		t.Error("Ready() = false with the default model pulled, want true")
	}
	if !NewOllama(srv.URL, "").Ready(context.Background()) {
		t.Error("Ready() = false for a running server without a default model, want true")
	}
}

func TestCatalog(t *testing.T) {
	ollamaSrv := newOllamaServer(t, "llama3.1:latest", "qwen2.5:7b")
	orSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(openrouter.ModelList{
			Object: "list",
			Data:   []openrouter.Model{{ID: "openai/gpt-4o"}, {ID: "anthropic/claude-3.5-sonnet"}},
		})
	}))
	defer orSrv.Close()

	r := NewRegistry("openai")
	r.Register(NewOpenAI("", ""), "gpt-4o")
	r.Register(NewOpenRouter(openrouter.NewClientWithBaseURL("k", orSrv.URL)), "openai/gpt-4o")
	r.Register(NewOllama(ollamaSrv.URL, "llama3.1"), "llama3.1")

	cat := r.Catalog(context.Background())
	if len(cat) != 3 {
		t.Fatalf("len(Catalog) = %d, want 3", len(cat))
	}
	byName := map[string]ProviderStatus{}
	for _, p := range cat {
		byName[p.Name] = p
	}

	if got := byName["ollama"]; !got.Available || len(got.Models) != 2 || got.Models[0] != "llama3.1:latest" {
		t.Errorf("ollama = %+v", got)
	}
	if got := byName["openrouter"]; !got.Available || len(got.Models) != 2 || got.Models[1] != "anthropic/claude-3.5-sonnet" {
		t.Errorf("openrouter = %+v", got)
	}
	if got := byName["openai"]; got.Available || got.Models != nil {
		t.Errorf("openai = %+v, want unavailable without models", got)
	}
}

func TestCatalog_ListingFailureKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRegistry("openrouter")
	r.Register(NewOpenRouter(openrouter.NewClientWithBaseURL("k", srv.URL)), "openai/gpt-4o")

	cat := r.Catalog(context.Background())
	if len(cat) != 1 || !cat[0].Available || cat[0].Models != nil {
		t.Errorf("Catalog = %+v, want available with no models", cat)
	}
}

func TestOpenRouterModels_Unconfigured(t *testing.T) {
	_, err := NewOpenRouter(nil).Models(context.Background())
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("err = %v, want ConfigError", err)
	}
}
