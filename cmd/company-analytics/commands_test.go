package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			if strings.HasPrefix(resp, "data: ") {
				w.Header().Set("Content-Type", "text/event-stream")
			} else {
				w.Header().Set("Content-Type", "application/json")
			}
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"success":false,"error":"Company analysis not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:      ts.server.URL,
		httpClient:   ts.server.Client(),
		streamClient: ts.server.Client(),
	}
}

func useTestClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

var ctx = context.Background()

const completeStream = `data: {"text":"🔍 Searching...","step":0,"stepName":"Live Web Search","uuid":"u-1"}

data: {"type":"sources","sourcesMetadata":{"sources":[],"sourcesList":"x","sourcesDisplay":"📊 DATA SOURCES","totalSources":1}}

data: {"stepComplete":"Web search completed","step":0,"finalStep":false}

: ping

data: {"transition":"Analyzing gathered data with AI...","step":"transition-0-1","message":"Analyzing gathered data with AI..."}

data: {"text":"Acme ","step":1,"stepName":"Company Research","uuid":"u-1"}

data: {"text":"makes anvils.","step":1,"stepName":"Company Research","uuid":"u-1"}

data: {"stepComplete":"Company details gathered successfully","step":1,"finalStep":false}

data: {"text":"Deep dive.","step":2,"stepName":"Strategic Analysis","uuid":"u-1"}

data: {"stepComplete":"Comprehensive analysis completed","step":2,"finalStep":true}

data: {"done":true,"allStepsComplete":true,"analysisUuid":"u-1","sourcesMetadata":{"sources":[],"sourcesList":"x","sourcesDisplay":"📊 DATA SOURCES","totalSources":1}}

`

func TestReadAnalysisStream_Complete(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	var out bytes.Buffer
	res, err := readAnalysisStream(strings.NewReader(completeStream), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UUID != "u-1" || !res.Done {
		t.Errorf("result = %+v", res)
	}
	if res.Sources == nil || res.Sources.TotalSources != 1 {
		t.Errorf("sources = %+v", res.Sources)
	}

	text := out.String()
	for _, want := range []string{"## Company Research\nAcme makes anvils.", "## Strategic Analysis\nDeep dive."} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "## Company Research") != 1 {
		t.Errorf("section header repeated:\n%s", text)
	}
}

func TestReadAnalysisStream_NotFound(t *testing.T) {
	stream := `data: {"text":"COMPANY_NOT_FOUND","step":1,"stepName":"Company Research","uuid":"u-2"}

data: {"notFound":true,"message":"Company information could not be verified. Please verify the company name.","step":1,"stepName":"Company Research","finalStep":true}

data: {"done":true,"allStepsComplete":true,"analysisUuid":"u-2","sourcesMetadata":null}

`
	res, err := readAnalysisStream(strings.NewReader(stream), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.NotFound, "could not be verified") {
		t.Errorf("notFound = %q", res.NotFound)
	}
	if res.Sources != nil {
		t.Errorf("sources = %+v, want nil", res.Sources)
	}
}

func TestReadAnalysisStream_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "upstream error",
			stream: "data: {\"text\":\"x\",\"step\":1,\"stepName\":\"Company Research\"}\n\ndata: {\"error\":\"OpenAI API Error (Step 2): boom\"}\n\n",
			want:   "OpenAI API Error (Step 2): boom",
		},
		{
			name:   "persist failure after done",
			stream: "data: {\"done\":true,\"analysisUuid\":\"u\"}\n\ndata: {\"error\":\"Failed to save analysis: disk full\"}\n\n",
			want:   "Failed to save analysis",
		},
		{
			name:   "truncated",
			stream: "data: {\"text\":\"x\",\"step\":1,\"stepName\":\"Company Research\"}\n\n",
			want:   "ended before",
		},
		{
			name:   "garbage frame",
			stream: "data: {not json\n\n",
			want:   "decoding frame",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readAnalysisStream(strings.NewReader(tt.stream), &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestAnalyzeCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /dual-step-analysis-stream": completeStream,
	})
	useTestClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyze", "Acme", "Corp", "--dual", "--employees", "250", "--model", "ollama"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["prompt"] != "Acme Corp" || body["numberOfEmployees"] != "250" || body["model"] != "ollama" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["companyGstin"]; ok {
		t.Error("empty gstin should be omitted")
	}
}

func TestAnalyzeCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyze"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention args", err.Error())
	}
}

func TestStream_BadRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Missing 'prompt' (company name) in request body."}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	_, err := client.stream(ctx, "/tri-step-analysis-stream", map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "Missing 'prompt'") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestAnalysesList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/company-analytics": `{"success":true,"data":[{"id":2,"uuid":"u-2","company_name":"Acme","model":"gpt-4o-tri-step","latency_ms":1500,"created_at":"2025-03-01T10:00:00Z"}],"pagination":{"page":2,"limit":5,"total":6,"pages":2}}`,
	})
	useTestClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyses", "list", "--page", "2", "--limit", "5"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ts.requests[0].Path; got != "/api/company-analytics?page=2&limit=5" {
		t.Errorf("path = %q", got)
	}
}

func TestAnalysesShow_NotFound(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	useTestClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyses", "show", "missing"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Company analysis not found") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestAnalysesDelete(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /api/company-analytics/u-9": `{"success":true,"message":"Company analysis deleted successfully"}`,
	})
	useTestClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyses", "delete", "u-9"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := ts.requests[0]; r.Method != "DELETE" || r.Path != "/api/company-analytics/u-9" {
		t.Errorf("request = %+v", r)
	}
}

func TestAnalysesSources(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/company-sources/u-3": `{"success":true,"company_name":"Acme","sources_by_category":{"Financial Information":[{"platform":"Crunchbase","title":"Acme","url":"https://crunchbase.com/acme","score":0.8}]},"total_sources":1}`,
	})
	useTestClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyses", "sources", "u-3"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPrintAnalysis(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	var buf bytes.Buffer
	printAnalysis(&buf, analysisSummary{UUID: "u-1", CompanyName: "Acme", Model: "m", LatencyMs: 2500}, "d", "a", nil)
	out := buf.String()
	if !strings.Contains(out, "## Company Details\nd") || !strings.Contains(out, "## Analysis\na") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "## Reviews") {
		t.Error("reviews section printed for dual-step record")
	}
	if !strings.Contains(out, "2.5s") {
		t.Errorf("latency not formatted: %q", out)
	}
}

func TestResponseError_PlainBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteString("upstream down")
	err := responseError(rec.Result())
	if err == nil || err.Error() != "server returned 502: upstream down" {
		t.Errorf("error = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"Tata Consultancy Services Limited", 10, "Tata Co..."},
		{"ÄÖÜäöüßÄÖÜäöü", 8, "ÄÖÜäö..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorRed, "hello")
	if result != "hello" {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	result = colorize(colorRed, "hello")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"serve", "mcp", "status", "analyze", "analyses", "config"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
