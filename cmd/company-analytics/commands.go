package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imran59059/company-analytics/internal/config"
	"github.com/imran59059/company-analytics/internal/sources"
)

const requestTimeout = 30 * time.Second

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company name>",
	Short: "Run a streaming analysis against the server",
	Long: `Run a streaming analysis against a running server and print stage output
as it arrives.

Examples:
  company-analytics analyze "Acme Corp"
  company-analytics analyze "Acme Corp" --employees 250 --gstin 29ABCDE1234F1Z5
  company-analytics analyze "Acme Corp" --dual --model openrouter:anthropic/claude-3.5-sonnet`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		company := strings.TrimSpace(strings.Join(args, " "))
		if company == "" {
			return fmt.Errorf("company name is required")
		}
		dual, _ := cmd.Flags().GetBool("dual")
		employees, _ := cmd.Flags().GetString("employees")
		gstin, _ := cmd.Flags().GetString("gstin")
		model, _ := cmd.Flags().GetString("model")
		showSources, _ := cmd.Flags().GetBool("sources")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/tri-step-analysis-stream"
		if dual {
			path = "/dual-step-analysis-stream"
		}
		body := map[string]any{"prompt": company}
		if employees != "" {
			body["numberOfEmployees"] = employees
		}
		if gstin != "" {
			body["companyGstin"] = gstin
		}
		if model != "" {
			body["model"] = model
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		resp, err := client.stream(ctx, path, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		res, err := readAnalysisStream(resp.Body, os.Stdout)
		if showSources && res.Sources != nil {
			fmt.Fprintf(os.Stdout, "\n%s\n", res.Sources.Display)
		}
		if err != nil {
			return err
		}
		printRunSummary(res)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("dual", false, "run the dual-step comprehensive analysis")
	analyzeCmd.Flags().String("employees", "", "reported number of employees")
	analyzeCmd.Flags().String("gstin", "", "company GSTIN")
	analyzeCmd.Flags().String("model", "", `model selector, "provider" or "provider:model"`)
	analyzeCmd.Flags().Bool("sources", false, "print the data sources after the analysis")
}

// streamFrame is the union of all event-stream frame shapes.
type streamFrame struct {
	Text            *string           `json:"text"`
	Step            json.RawMessage   `json:"step"`
	StepName        string            `json:"stepName"`
	Type            string            `json:"type"`
	SourcesMetadata *sources.Metadata `json:"sourcesMetadata"`
	Transition      string            `json:"transition"`
	StepComplete    string            `json:"stepComplete"`
	NotFound        bool              `json:"notFound"`
	Message         string            `json:"message"`
	Error           string            `json:"error"`
	Done            bool              `json:"done"`
	AnalysisUUID    string            `json:"analysisUuid"`
}

type streamResult struct {
	UUID     string
	NotFound string
	Sources  *sources.Metadata
	Done     bool
}

// readAnalysisStream prints stage text to out and progress to stderr. It
// reads until the server closes the stream.
func readAnalysisStream(r io.Reader, out io.Writer) (streamResult, error) {
	var (
		res       streamResult
		streamErr error
		section   string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f streamFrame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			return res, fmt.Errorf("decoding frame: %w", err)
		}

		switch {
		case f.Error != "":
			streamErr = errors.New(f.Error)
		case f.Type == "sources":
			res.Sources = f.SourcesMetadata
		case f.NotFound:
			res.NotFound = f.Message
		case f.Done:
			res.Done = true
			res.UUID = f.AnalysisUUID
			if f.SourcesMetadata != nil {
				res.Sources = f.SourcesMetadata
			}
		case f.Transition != "":
			printStep("%s", f.Transition)
		case f.StepComplete != "":
			fmt.Fprintln(out)
			printSuccess("%s", f.StepComplete)
		case f.Text != nil:
			if f.StepName != section {
				section = f.StepName
				printSection(out, section)
			}
			fmt.Fprint(out, *f.Text)
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading stream: %w", err)
	}
	if streamErr != nil {
		return res, streamErr
	}
	if !res.Done {
		return res, fmt.Errorf("stream ended before the analysis completed")
	}
	return res, nil
}

// --- analyses ---

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Browse stored analyses",
}

type analysisSummary struct {
	UUID        string    `json:"uuid"`
	CompanyName string    `json:"company_name"`
	Model       string    `json:"model"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := client.get(ctx, fmt.Sprintf("/api/company-analytics?page=%d&limit=%d", page, limit))
		if err != nil {
			return err
		}

		var result struct {
			Data       []analysisSummary `json:"data"`
			Pagination struct {
				Page  int `json:"page"`
				Pages int `json:"pages"`
				Total int `json:"total"`
			} `json:"pagination"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Data) == 0 {
			fmt.Println("No analyses found.")
			return nil
		}

		for _, a := range result.Data {
			fmt.Printf("%s  %s  %-32s  %s  %s\n",
				colorize(colorCyan, a.UUID),
				a.CreatedAt.Local().Format("2006-01-02 15:04"),
				truncate(a.CompanyName, 32),
				a.Model,
				formatLatency(a.LatencyMs),
			)
		}
		fmt.Printf("\nPage %d of %d (%d total)\n", result.Pagination.Page, result.Pagination.Pages, result.Pagination.Total)
		return nil
	},
}

var analysesShowCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Show a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := client.get(ctx, "/api/company-analytics/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result struct {
			Data json.RawMessage `json:"data"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if asJSON {
			var v any
			if err := json.Unmarshal(result.Data, &v); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}

		var a struct {
			analysisSummary
			Analysis       string  `json:"analysis"`
			CompanyDetails string  `json:"company_details"`
			Reviews        *string `json:"reviews"`
		}
		if err := json.Unmarshal(result.Data, &a); err != nil {
			return err
		}
		printAnalysis(os.Stdout, a.analysisSummary, a.CompanyDetails, a.Analysis, a.Reviews)
		return nil
	},
}

func printAnalysis(w io.Writer, s analysisSummary, details, analysis string, reviews *string) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, s.CompanyName), colorize(colorCyan, s.UUID))
	fmt.Fprintf(w, "%s, %s, %s\n", s.Model, formatLatency(s.LatencyMs), s.CreatedAt.Local().Format(time.RFC1123))
	printSection(w, "Company Details")
	fmt.Fprintln(w, details)
	printSection(w, "Analysis")
	fmt.Fprintln(w, analysis)
	if reviews != nil {
		printSection(w, "Reviews")
		fmt.Fprintln(w, *reviews)
	}
}

var analysesDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := client.delete(ctx, "/api/company-analytics/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted analysis %s", args[0])
		return nil
	},
}

var analysesSourcesCmd = &cobra.Command{
	Use:   "sources <uuid>",
	Short: "Show the web sources an analysis used, grouped by category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := client.get(ctx, "/api/company-sources/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result struct {
			CompanyName string `json:"company_name"`
			ByCategory  map[string][]struct {
				Platform string  `json:"platform"`
				Title    string  `json:"title"`
				URL      string  `json:"url"`
				Score    float64 `json:"score"`
			} `json:"sources_by_category"`
			Total int `json:"total_sources"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Total == 0 {
			fmt.Println(sources.NoSources)
			return nil
		}

		categories := make([]string, 0, len(result.ByCategory))
		for c := range result.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		fmt.Printf("%s (%d sources)\n", colorize(colorBold, result.CompanyName), result.Total)
		for _, c := range categories {
			fmt.Printf("\n%s\n", colorize(colorBold, c))
			for i, s := range result.ByCategory[c] {
				fmt.Printf("  %d. %s [%.0f%%] %s\n     %s\n", i+1, s.Platform, s.Score*100, s.Title, s.URL)
			}
		}
		return nil
	},
}

func init() {
	analysesListCmd.Flags().Int("page", 1, "page number")
	analysesListCmd.Flags().Int("limit", 10, "analyses per page (max 100)")
	analysesShowCmd.Flags().Bool("json", false, "print the raw JSON record")
	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesShowCmd)
	analysesCmd.AddCommand(analysesDeleteCmd)
	analysesCmd.AddCommand(analysesSourcesCmd)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(cfg.Server.BaseURL() + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			Providers map[string]bool `json:"providers"`
			Search    bool            `json:"search"`
			Database  string          `json:"database"`
		}
		derr := decodeJSON(resp, &health)
		switch {
		case derr != nil:
			printStatus("Server", "error (%v)", derr)
		default:
			printStatus("Server", "running at %s", cfg.Server.BaseURL())
			printStatus("Database", "%s", health.Database)
			printStatus("Web search", "%s", enabledLabel(health.Search))
			names := make([]string, 0, len(health.Providers))
			for n := range health.Providers {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				state := "unavailable"
				if health.Providers[n] {
					state = "available"
				}
				printStatus("Provider "+n, "%s", state)
			}
		}
	}

	printStatus("Default provider", "%s", cfg.LLM.DefaultProvider)
	printStatus("Storage", "%s", cfg.Storage.Driver)
	for _, w := range cfg.Warnings() {
		printWarning("%s", w)
	}
	return nil
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
