// Package sources turns company search results into prompt context and
// display metadata.
package sources

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/imran59059/company-analytics/internal/search"
)

const (
	// NoLiveData is the search context used when no category returned results.
	NoLiveData = "No live data available from web search."

	// NoDataMarker is rendered for a category with zero results.
	NoDataMarker = "❌ No data found in this category."

	// NoSources is the display text when there is nothing to list.
	NoSources = "No sources available"

	excerptLimit = 300
)

// Source is one attributed search result.
type Source struct {
	Category      string  `json:"category"`
	Platform      string  `json:"platform"`
	Domain        string  `json:"domain"`
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// Metadata describes the sources behind a run.
type Metadata struct {
	Sources      []Source `json:"sources"`
	List         string   `json:"sourcesList"`
	Display      string   `json:"sourcesDisplay"`
	TotalSources int      `json:"totalSources"`
}

// Formatted is the output of Format.
type Formatted struct {
	// Text is injected into generation prompts.
	Text     string
	Metadata Metadata
}

// Format renders search results. Failed categories are treated as empty.
// Output depends only on its arguments.
func Format(company string, results []search.CategoryResult, at time.Time) Formatted {
	if search.Total(results) == 0 {
		return Formatted{
			Text: NoLiveData,
			Metadata: Metadata{
				Sources: []Source{},
				List:    NoSources,
				Display: NoSources,
			},
		}
	}

	stamp := at.UTC().Format(time.RFC3339)
	return Formatted{
		Text:     formatText(company, results, stamp),
		Metadata: buildMetadata(results, stamp),
	}
}

func formatText(company string, results []search.CategoryResult, stamp string) string {
	var b strings.Builder
	b.WriteString("=== LIVE WEB SEARCH RESULTS ===\n\n")
	fmt.Fprintf(&b, "Company Searched: %s\n", strings.TrimSpace(company))
	fmt.Fprintf(&b, "Search Timestamp: %s\n\n", stamp)

	for _, r := range results {
		fmt.Fprintf(&b, "%s %s\n\n", r.Category.Icon, r.Category.Title)

		if r.Response != nil && r.Response.Answer != "" {
			fmt.Fprintf(&b, "💡 AI Summary:\n%s\n\n", r.Response.Answer)
		}

		if r.Count() == 0 {
			b.WriteString(NoDataMarker + "\n\n")
		} else {
			fmt.Fprintf(&b, "📚 %d Source(s) Found:\n\n", r.Count())
			for i, res := range r.Response.Results {
				fmt.Fprintf(&b, "  %d. %s%s\n", i+1, Platform(Domain(res.URL)), relevance(res.Score, " (Relevance: %.0f%%)"))
				fmt.Fprintf(&b, "     📄 %s\n", res.Title)
				fmt.Fprintf(&b, "     🔗 %s\n", res.URL)
				fmt.Fprintf(&b, "     📝 %s...\n", excerpt(res.Content, excerptLimit))
				if res.PublishedDate != "" {
					fmt.Fprintf(&b, "     📅 Published: %s\n", res.PublishedDate)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString(strings.Repeat("─", 80) + "\n\n")
	}

	b.WriteString("\n=== END OF SEARCH RESULTS ===\n")
	return b.String()
}

func buildMetadata(results []search.CategoryResult, stamp string) Metadata {
	all := []Source{}

	var display, list strings.Builder
	display.WriteString("📊 DATA SOURCES\n\n")
	display.WriteString("All information below was gathered from the following verified sources:\n\n")
	display.WriteString(strings.Repeat("═", 80) + "\n\n")
	list.WriteString("Data Sources:\n\n")

	for _, r := range results {
		n := r.Count()
		if n == 0 {
			continue
		}
		plural := ""
		if n > 1 {
			plural = "s"
		}
		fmt.Fprintf(&display, "%s %s (%d source%s):\n\n", r.Category.Icon, r.Category.Label, n, plural)
		fmt.Fprintf(&list, "%s:\n", r.Category.Label)

		for i, res := range r.Response.Results {
			domain := Domain(res.URL)
			platform := Platform(domain)
			all = append(all, Source{
				Category:      r.Category.Label,
				Platform:      platform,
				Domain:        domain,
				URL:           res.URL,
				Title:         res.Title,
				Score:         res.Score,
				PublishedDate: res.PublishedDate,
			})

			fmt.Fprintf(&display, "  %d. %s%s\n", i+1, platform, relevance(res.Score, " - Relevance: %.0f%%"))
			fmt.Fprintf(&display, "     %s\n", res.Title)
			fmt.Fprintf(&display, "     🔗 %s\n\n", res.URL)

			fmt.Fprintf(&list, "  %d. %s - %s\n", i+1, platform, res.Title)
			fmt.Fprintf(&list, "     %s\n", res.URL)
		}
		display.WriteString("\n")
		list.WriteString("\n")
	}

	display.WriteString(strings.Repeat("═", 80) + "\n")
	fmt.Fprintf(&display, "Total Sources: %d\n", len(all))
	fmt.Fprintf(&display, "Search Timestamp: %s\n", stamp)

	return Metadata{
		Sources:      all,
		List:         list.String(),
		Display:      display.String(),
		TotalSources: len(all),
	}
}

// Summary renders the short per-category progress text shown while the
// search stage completes.
func Summary(results []search.CategoryResult) string {
	total := search.Total(results)
	if total == 0 {
		return "⚠️ Limited search results. Proceeding with available data...\n\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Found %d verified sources!\n\n", total)
	b.WriteString("📊 Sources by category:\n")
	for i, r := range results {
		if r.Count() == 0 {
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %s %s: %d sources\n", r.Category.Icon, r.Category.Short, r.Count())
		shown := r.Response.Results
		if p := r.Category.Preview; p > 0 && len(shown) > p {
			shown = shown[:p]
		}
		for j, res := range shown {
			fmt.Fprintf(&b, "     %d. %s\n", j+1, Platform(Domain(res.URL)))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func relevance(score float64, format string) string {
	if score == 0 {
		return ""
	}
	return fmt.Sprintf(format, score*100)
}

func excerpt(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

// Domain returns the URL host without a leading "www.". Unparseable input is
// returned unchanged.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.Replace(u.Hostname(), "www.", "", 1)
}

var platforms = []struct {
	domain string
	name   string
}{
	{"linkedin.com", "LinkedIn"},
	{"crunchbase.com", "Crunchbase"},
	{"wikipedia.org", "Wikipedia"},
	{"glassdoor.com", "Glassdoor"},
	{"glassdoor.co.in", "Glassdoor India"},
	{"ambitionbox.com", "AmbitionBox"},
	{"indeed.com", "Indeed"},
	{"economictimes.indiatimes.com", "Economic Times"},
	{"tofler.in", "Tofler"},
	{"zaubacorp.com", "Zaubacorp"},
	{"mca.gov.in", "Ministry of Corporate Affairs (MCA)"},
	{"reuters.com", "Reuters"},
	{"bloomberg.com", "Bloomberg"},
	{"moneycontrol.com", "MoneyControl"},
}

// Platform maps a domain to a display name, falling back to the capitalized
// first DNS label.
func Platform(domain string) string {
	lower := strings.ToLower(domain)
	for _, p := range platforms {
		if strings.Contains(lower, p.domain) {
			return p.name
		}
	}
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return domain
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}
