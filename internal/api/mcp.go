package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/imran59059/company-analytics/internal/pipeline"
	"github.com/imran59059/company-analytics/internal/sources"
	"github.com/imran59059/company-analytics/internal/storage"
)

const recentLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Analyzer *Analyzer
	Store    AnalysisStore
	Version  string
}

// NewMCPServer creates an MCP server exposing the analysis tools and the
// recent-analyses resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"company-analytics",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Company business analysis backed by live web search and LLM research."),
		server.WithRecovery(),
	)

	analysisArgs := []mcp.ToolOption{
		mcp.WithString("prompt", mcp.Description("Company name to analyze"), mcp.Required()),
		mcp.WithString("numberOfEmployees", mcp.Description("Reported employee count, if known")),
		mcp.WithString("companyGstin", mcp.Description("Company GSTIN, if known")),
		mcp.WithString("model", mcp.Description(`Model selector, "provider" or "provider:model"`)),
	}

	s.AddTool(
		mcp.NewTool("analyzeTriStepCompanyBusiness", append([]mcp.ToolOption{
			mcp.WithDescription("Research a company, summarize it, and map workplace challenges to product solutions. Returns all stages as one text."),
		}, analysisArgs...)...),
		mcpAnalyze(deps, pipeline.TriStep),
	)

	s.AddTool(
		mcp.NewTool("analyzeDualStepCompanyBusiness", append([]mcp.ToolOption{
			mcp.WithDescription("Research a company and produce a comprehensive strategic analysis. Returns both stages as one text."),
		}, analysisArgs...)...),
		mcpAnalyze(deps, pipeline.DualStep),
	)

	s.AddTool(
		mcp.NewTool("getCompanyAnalysis",
			mcp.WithDescription("Fetch a stored company analysis by its run id."),
			mcp.WithString("uuid", mcp.Description("Analysis run id"), mcp.Required()),
		),
		mcpGetAnalysis(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"analytics://recent",
			"Recent Analyses",
			mcp.WithResourceDescription("The 10 most recent company analyses (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAnalyze(deps MCPDeps, variant pipeline.Variant) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company, err := req.RequireString("prompt")
		if err != nil || strings.TrimSpace(company) == "" {
			return mcpError("prompt (company name) is required"), nil
		}

		ar := AnalysisRequest{
			Prompt:            company,
			NumberOfEmployees: flexString(argString(req, "numberOfEmployees")),
			CompanyGSTIN:      argString(req, "companyGstin"),
			Model:             argString(req, "model"),
		}

		run, tr, err := deps.Analyzer.Collect(ctx, ar.pipelineRequest(variant))
		if run == nil {
			return mcpError(err.Error()), nil
		}
		if tr.Status == pipeline.StatusFailed {
			return mcpError(tr.Err), nil
		}
		text := renderTranscript(run, tr)
		if err != nil {
			text += fmt.Sprintf("\n\n⚠️ Failed to save analysis: %v", err)
		}
		return mcpText(text), nil
	}
}

// renderTranscript labels each stage's text for clients without streaming.
func renderTranscript(run *pipeline.Run, tr *pipeline.Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**STEP 1: COMPANY DETAILS**\n%s\n\n", tr.Text(pipeline.StageDetails))

	if tr.Status == pipeline.StatusNotFound {
		fmt.Fprintf(&b, "❌ Unable to proceed. %s\n\n", tr.NotFound)
	} else {
		fmt.Fprintf(&b, "**STEP 2: COMPREHENSIVE ANALYSIS**\n%s\n\n", tr.Text(pipeline.StageAnalysis))
		if run.Request.Variant == pipeline.TriStep {
			fmt.Fprintf(&b, "**STEP 3: COMPANY VOICE REVIEWS**\n%s\n\n", tr.Text(pipeline.StageVoice))
		}
	}

	display := sources.NoSources
	if tr.Search != nil && tr.Search.Metadata.Display != "" {
		display = tr.Search.Metadata.Display
	}
	b.WriteString(display)
	fmt.Fprintf(&b, "\n\nAnalysis ID: %s", run.ID)
	return b.String()
}

func mcpGetAnalysis(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("uuid")
		if err != nil {
			return mcpError("uuid is required"), nil
		}

		a, err := deps.Store.GetAnalysis(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("no analysis with id %s", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to fetch analysis: %v", err)), nil
		}

		b, err := json.Marshal(newAnalysisView(a))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal analysis: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items, err := deps.Store.RecentAnalyses(ctx, recentLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent analyses: %w", err)
		}
		if items == nil {
			items = []storage.AnalysisSummary{}
		}

		b, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal analyses: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// argString reads an optional argument that clients may send as a string or
// a number.
func argString(req mcp.CallToolRequest, key string) string {
	switch v := req.GetArguments()[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
