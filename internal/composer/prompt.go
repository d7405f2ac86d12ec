// Package composer builds the prompts sent at each analysis stage.
package composer

import (
	"fmt"
	"strings"
)

// NotFoundSentinel is the marker the details prompt asks the model to emit
// when the search data holds nothing about the company.
const NotFoundSentinel = "COMPANY_NOT_FOUND:"

const (
	defaultMaxContextTokens = 12000
	truncatedNote           = "\n\n[... search context truncated ...]\n"
)

// Product is the offering that analyses map company challenges onto.
type Product struct {
	Name      string
	URL       string
	Solutions []string
}

// DefaultSolutions is the feature list used when a Product has none.
var DefaultSolutions = []string{
	"Recognition",
	"Badges",
	"Award",
	"Anonymous feedback",
	"Growth conversation",
	"OKR and Goals",
	"360 Feedback",
	"Public feed page",
}

// Hints are optional caller-supplied facts folded into prompts.
type Hints struct {
	Employees string
	GSTIN     string
}

// Composer renders stage prompts. Injected search context is capped at
// MaxContextTokens.
type Composer struct {
	Product          Product
	MaxContextTokens int
}

// New creates a Composer. If maxContextTokens <= 0, the default (12000) is used.
func New(p Product, maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	if len(p.Solutions) == 0 {
		p.Solutions = DefaultSolutions
	}
	return &Composer{Product: p, MaxContextTokens: maxContextTokens}
}

func (c *Composer) productRef() string {
	if c.Product.URL == "" {
		return c.Product.Name
	}
	return fmt.Sprintf("%s (%s)", c.Product.Name, c.Product.URL)
}

// Details builds the company-research prompt. searchContext is empty when no
// search stage ran.
func (c *Composer) Details(company, searchContext string, h Hints) string {
	var b strings.Builder
	if searchContext == "" {
		fmt.Fprintf(&b, "You are a business research analyst. Provide comprehensive details of this company: %s\n\n", company)
		b.WriteString("**CRITICAL INSTRUCTIONS:**\n")
		b.WriteString("- No live web data is available; rely on what you reliably know\n")
		b.WriteString("- Do not speculate or invent figures\n")
		fmt.Fprintf(&b, "- If you have no reliable information that this company exists, respond with a single line starting with \"%s\" followed by a short reason, and nothing else\n", NotFoundSentinel)
	} else {
		fmt.Fprintf(&b, "You are a business research analyst. Analyze the LIVE WEB SEARCH DATA below about: %s\n\n", company)
		b.WriteString("**CRITICAL INSTRUCTIONS:**\n")
		b.WriteString("- The data below comes from REAL-TIME web search with SOURCE ATTRIBUTION\n")
		b.WriteString("- You MUST use this data to provide analysis\n")
		b.WriteString("- When citing information, reference the source by platform name (e.g., \"According to LinkedIn\", \"As reported on Glassdoor\")\n")
		b.WriteString("- If search results show the company exists, provide analysis based on available information\n")
		fmt.Fprintf(&b, "- Only if the search results contain NO information about this company, respond with a single line starting with \"%s\" followed by a short reason, and nothing else\n\n", NotFoundSentinel)
		b.WriteString("**LIVE DATA FROM WEB SEARCH:**\n")
		b.WriteString(c.fitContext(searchContext))
		b.WriteString("\n")
	}
	writeHints(&b, h)

	b.WriteString("\n**Your Task:**\nProvide factual information")
	if searchContext != "" {
		b.WriteString(" with SOURCE CITATIONS")
	}
	b.WriteString(":\n\n")
	b.WriteString("1. **Business Nature**: Industry, sector, operations\n")
	b.WriteString("2. **Company Status**: Active/Inactive, registration\n")
	b.WriteString("3. **Financial Metrics**:\n")
	b.WriteString("   - Annual revenue\n")
	b.WriteString("   - Profit After Tax (PAT)\n")
	b.WriteString("   - If unavailable: \"Financial data not publicly disclosed\"\n")
	b.WriteString("4. **Employee Information**:\n")
	b.WriteString("   - Employee count\n")
	b.WriteString("   - Revenue per employee (if calculable)\n")
	b.WriteString("   - Profit per employee (if calculable)\n")
	b.WriteString("5. **Employee Sentiment**: Complaints/feedback\n")
	b.WriteString("6. **Market Position**: Industry benchmark\n")
	b.WriteString("7. **Engagement Level**: Employee engagement indicators\n")
	fmt.Fprintf(&b, "8. **Growth Opportunities**: How %s can help\n\n", c.productRef())

	b.WriteString("**Output Format:**\n")
	b.WriteString("- Use bullet points with headers\n")
	if searchContext != "" {
		b.WriteString("- ALWAYS cite sources: \"According to [Platform Name]\" or \"[Platform Name] reports that...\"\n")
	}
	b.WriteString("- If a single data point is unavailable: \"Data not publicly available\"\n")
	b.WriteString("- Keep concise (1-2 lines per point)\n")
	return b.String()
}

// Summary builds the short factual summary prompt from the details text.
func (c *Composer) Summary(company, details string) string {
	return fmt.Sprintf(`You are a professional business analyst. Write a short factual summary of **%s**.

**COMPANY DETAILS:**
%s

**SUMMARY RULES:**
- One concise paragraph (80–120 words)
- Focus on what IS known
- Mention industry, operations, available metrics
- Objective and data-based
- Professional tone
- No headings or bullet points`, company, details)
}

// Analysis builds the comprehensive strategic analysis prompt.
func (c *Composer) Analysis(company, details string, h Hints) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As a senior business analyst with expertise in strategic consulting, provide a comprehensive, data-driven strategic analysis of %s based on the following company information.\n\n", company)
	b.WriteString("**COMPANY INFORMATION:**\n")
	b.WriteString(details)
	b.WriteString("\n")
	writeHints(&b, h)
	b.WriteString("\n---\n\n## Analysis Requirements:\n\n")
	b.WriteString("1. Use the provided company data as the **primary quantitative source**\n")
	b.WriteString("2. Perform **step-by-step calculations** with clear formulas and results\n")
	b.WriteString("3. Show all **intermediate calculation steps** before final results\n")
	b.WriteString("4. Calculate revenue per employee, profit per employee, attrition cost impact, ROI and cost-saving potential\n")
	fmt.Fprintf(&b, "5. Project productivity improvements with %s implementation\n\n", c.Product.Name)

	b.WriteString("## COMPREHENSIVE BUSINESS ANALYSIS STRUCTURE\n\n")
	sections := []string{
		"Strategic Position Analysis: market position, SWOT with quantified impacts, industry trends",
		"Financial Performance Assessment: revenue trends, PAT, ratios with calculations, benchmarks",
		"Operational Excellence Evaluation: cost efficiency, productivity metrics, bottlenecks",
		"Human Capital Analysis: turnover cost, revenue and profit per employee, retention ROI",
		fmt.Sprintf("Market Opportunity Assessment: growth potential, TAM, ROI of %s adoption", c.Product.Name),
		"Risk Assessment & Mitigation: quantified risks, financial impact, cost-benefit of mitigation",
		"Strategic Recommendations: 0-6 months, 6-18 months, 18+ months, with numerical impact",
		fmt.Sprintf("Technology Integration Opportunities: %s roadmap, expected ROI, timeline", c.Product.Name),
	}
	for i, s := range sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\n**Analysis Framework:** Always show formula + calculation + result before interpretation. Focus on actionable recommendations with measurable outcomes.")
	return b.String()
}

// Voice builds the workplace-challenge to product-solution mapping prompt.
func (c *Composer) Voice(company, searchContext string) string {
	if searchContext == "" {
		searchContext = "Limited review data available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze employee information for %s.\n\n", company)
	b.WriteString("**EMPLOYEE REVIEW & COMPANY DATA:**\n")
	b.WriteString(c.fitContext(searchContext))
	fmt.Fprintf(&b, "\n\n**Task:** Identify 8-12 workplace challenges and map to %s solutions.\n\n", c.Product.Name)
	fmt.Fprintf(&b, "**%s Solutions:**\n", c.Product.Name)
	for i, s := range c.Product.Solutions {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, s)
	}
	b.WriteString("\n\n**Output Format:**\n<challenge> ✅ <solution(s)>\n\n")
	b.WriteString("**Examples:**\n")
	b.WriteString("- Lack of recognition programs ✅ Recognition, Award, Badges\n")
	b.WriteString("- Limited feedback channels ✅ Anonymous feedback, 360 Feedback\n")
	b.WriteString("- Unclear career paths ✅ Growth conversation, OKR and Goals\n\n")
	b.WriteString("**Rules:**\n- One line per item\n- Use ✅ separator\n- 8-12 items total\n- Professional tone\n\n")
	fmt.Fprintf(&b, "Company: %s", company)
	return b.String()
}

func writeHints(b *strings.Builder, h Hints) {
	if h.Employees != "" {
		fmt.Fprintf(b, "\n**Additional Context:** Reported employee count: %s\n", h.Employees)
	}
	if h.GSTIN != "" {
		fmt.Fprintf(b, "**Tax Information:** GSTIN: %s\n", h.GSTIN)
	}
}

// fitContext truncates text that would exceed the context budget.
func (c *Composer) fitContext(text string) string {
	if EstimateTokens(text) <= c.MaxContextTokens {
		return text
	}
	r := []rune(text)
	limit := c.MaxContextTokens * 4
	if limit > len(r) {
		return text
	}
	return string(r[:limit]) + truncatedNote
}

// EstimateTokens returns a rough token count (~4 chars per token).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
