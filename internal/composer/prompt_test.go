package composer

import (
	"strings"
	"testing"
)

func newTestComposer() *Composer {
	return New(Product{Name: "Wazo Pulse", URL: "https://wazopulse.com"}, 0)
}

func TestDetails_WithSearchContext(t *testing.T) {
	c := newTestComposer()
	p := c.Details("Acme Corp", "=== LIVE WEB SEARCH RESULTS ===\nLinkedIn: Acme", Hints{Employees: "250", GSTIN: "27AAAPL1234C1ZV"})

	for _, want := range []string{
		"Acme Corp",
		"=== LIVE WEB SEARCH RESULTS ===\nLinkedIn: Acme",
		NotFoundSentinel,
		"Reported employee count: 250",
		"GSTIN: 27AAAPL1234C1ZV",
		"Wazo Pulse (https://wazopulse.com)",
		"ALWAYS cite sources",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("details prompt missing %q", want)
		}
	}
}

func TestDetails_WithoutSearchContext(t *testing.T) {
	c := newTestComposer()
	p := c.Details("Acme Corp", "", Hints{})

	if strings.Contains(p, "LIVE DATA FROM WEB SEARCH") {
		t.Error("prompt references search data that was not supplied")
	}
	if !strings.Contains(p, NotFoundSentinel) {
		t.Error("prompt lacks not-found instruction")
	}
	if strings.Contains(p, "employee count:") || strings.Contains(p, "GSTIN") {
		t.Error("empty hints rendered")
	}
}

func TestDetails_Deterministic(t *testing.T) {
	c := newTestComposer()
	h := Hints{Employees: "10"}
	if c.Details("Acme", "ctx", h) != c.Details("Acme", "ctx", h) {
		t.Error("Details is not deterministic")
	}
}

func TestSummary(t *testing.T) {
	p := newTestComposer().Summary("Acme Corp", "- Industry: anvils")
	if !strings.Contains(p, "**Acme Corp**") || !strings.Contains(p, "- Industry: anvils") {
		t.Errorf("summary prompt = %q", p)
	}
}

func TestAnalysis(t *testing.T) {
	p := newTestComposer().Analysis("Acme Corp", "details text", Hints{GSTIN: "X1"})
	for _, want := range []string{"Acme Corp", "details text", "GSTIN: X1", "Wazo Pulse roadmap", "8. Technology Integration"} {
		if !strings.Contains(p, want) {
			t.Errorf("analysis prompt missing %q", want)
		}
	}
}

func TestVoice(t *testing.T) {
	c := newTestComposer()
	p := c.Voice("Acme Corp", "reviews context")
	for _, want := range []string{"Acme Corp", "reviews context", "1. Recognition", "8. Public feed page", "✅"} {
		if !strings.Contains(p, want) {
			t.Errorf("voice prompt missing %q", want)
		}
	}
	if !strings.Contains(c.Voice("Acme", ""), "Limited review data available.") {
		t.Error("empty context placeholder missing")
	}
}

func TestCustomProductSolutions(t *testing.T) {
	c := New(Product{Name: "Pulse", Solutions: []string{"Kudos", "Surveys"}}, 0)
	p := c.Voice("Acme", "ctx")
	if !strings.Contains(p, "1. Kudos, 2. Surveys") {
		t.Errorf("custom solutions not rendered: %q", p)
	}
	if strings.Contains(c.Details("Acme", "ctx", Hints{}), "()") {
		t.Error("empty product URL rendered")
	}
}

func TestContextBudget(t *testing.T) {
	c := New(Product{Name: "Pulse"}, 10)
	long := strings.Repeat("a", 200)
	p := c.Details("Acme", long, Hints{})
	if strings.Contains(p, long) {
		t.Error("context not truncated")
	}
	if !strings.Contains(p, strings.Repeat("a", 40)+truncatedNote) {
		t.Error("truncated context should keep the first 40 chars")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
