// Package search runs topic-scoped web searches for a company.
package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Result is one ranked search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// Response is the outcome of one query.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Options tune a single query.
type Options struct {
	MaxResults    int
	Depth         string
	IncludeAnswer bool
}

// Searcher runs one web query.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) (*Response, error)
}

// Category is one topic-scoped query run for every company.
type Category struct {
	Key     string
	Title   string // section heading in the formatted text
	Label   string // category name in sources metadata
	Short   string // label in progress summaries
	Icon    string
	// Preview caps platforms listed in progress summaries; 0 lists all.
	Preview int
	query   string
	Options Options
}

// Query returns the search string for a company.
func (c Category) Query(company string) string {
	return fmt.Sprintf(c.query, company)
}

// Categories are searched concurrently, and their order is the order used
// everywhere results are presented.
var Categories = []Category{
	{
		Key:     "basicInfo",
		Title:   "COMPANY OVERVIEW & BASIC INFORMATION",
		Label:   "Company Overview & Basic Information",
		Short:   "Company Info",
		Icon:    "🔍",
		Preview: 3,
		query:   "%s company information headquarters website",
		Options: Options{MaxResults: 5, Depth: "advanced", IncludeAnswer: true},
	},
	{
		Key:     "financialInfo",
		Title:   "FINANCIAL INFORMATION",
		Label:   "Financial Information",
		Short:   "Financial Data",
		Icon:    "💰",
		Preview: 3,
		query:   "%s revenue profit employees annual report financial",
		Options: Options{MaxResults: 5, Depth: "advanced", IncludeAnswer: true},
	},
	{
		Key:     "employeeReviews",
		Title:   "EMPLOYEE REVIEWS & FEEDBACK",
		Label:   "Employee Reviews & Feedback",
		Short:   "Employee Reviews",
		Icon:    "⭐",
		Preview: 3,
		query:   "%s employee reviews complaints feedback rating",
		Options: Options{MaxResults: 5, Depth: "basic", IncludeAnswer: true},
	},
	{
		Key:     "indiaInfo",
		Title:   "INDIAN COMPANY REGISTRATION DATA",
		Label:   "Indian Company Registration",
		Short:   "India Registration",
		Icon:    "🇮🇳",
		query:   "%s India MCA company registration details",
		Options: Options{MaxResults: 3, Depth: "basic", IncludeAnswer: true},
	},
}

// CategoryResult holds one category's outcome. Response is nil when Err is set.
type CategoryResult struct {
	Category Category
	Response *Response
	Err      error
}

// Count returns the number of results, zero on failure.
func (r CategoryResult) Count() int {
	if r.Response == nil {
		return 0
	}
	return len(r.Response.Results)
}

// Company searches every category concurrently. A failing query never
// cancels the others; each outcome is reported in its own slot, in
// Categories order.
func Company(ctx context.Context, s Searcher, company string) []CategoryResult {
	company = strings.TrimSpace(company)
	out := make([]CategoryResult, len(Categories))

	var g errgroup.Group
	for i, cat := range Categories {
		out[i].Category = cat
		g.Go(func() error {
			resp, err := s.Search(ctx, cat.Query(company), cat.Options)
			if err != nil {
				out[i].Err = fmt.Errorf("%s search: %w", cat.Key, err)
				return nil
			}
			out[i].Response = resp
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Total sums result counts across categories.
func Total(results []CategoryResult) int {
	n := 0
	for _, r := range results {
		n += r.Count()
	}
	return n
}
