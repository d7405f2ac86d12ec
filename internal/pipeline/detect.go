package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imran59059/company-analytics/internal/composer"
)

// Verdict is the outcome of scanning details text for a not-found signal.
type Verdict int

const (
	// Inconclusive means nothing decisive was seen either way.
	Inconclusive Verdict = iota
	// Found means the text describes the company.
	Found
	// NotFound means the company could not be identified.
	NotFound
)

func (v Verdict) String() string {
	switch v {
	case Found:
		return "found"
	case NotFound:
		return "notFound"
	default:
		return "inconclusive"
	}
}

// notFoundPhrases are matched case-insensitively when phrase detection applies.
var notFoundPhrases = []string{
	"not available",
	"no information found",
	"unable to find",
	"no such company",
	"please verify",
	"no reliable information",
}

// Policy controls not-found detection.
type Policy struct {
	// SuppressPhrasesOnEvidence disables phrase matching in pipelines that
	// ran a search stage, leaving the sentinel as the only trigger there.
	// Turning it off applies phrase matching to every pipeline.
	SuppressPhrasesOnEvidence bool
}

// DefaultPolicy matches the established production behavior.
var DefaultPolicy = Policy{SuppressPhrasesOnEvidence: true}

// Check classifies details text. searched reports whether the pipeline has
// a search stage, regardless of whether that stage returned any sources.
//
// The sentinel always yields NotFound. A phrase match yields NotFound only
// when phrase matching applies and Inconclusive otherwise.
func (p Policy) Check(text string, searched bool) Verdict {
	lower := strings.ToLower(text)
	if hasSentinel(lower) {
		return NotFound
	}
	for _, phrase := range notFoundPhrases {
		if !strings.Contains(lower, phrase) {
			continue
		}
		if searched && p.SuppressPhrasesOnEvidence {
			return Inconclusive
		}
		return NotFound
	}
	if strings.TrimSpace(text) == "" {
		return Inconclusive
	}
	return Found
}

// hasSentinel reports whether lower contains the sentinel token followed by
// a colon, whitespace or the end of the text. Models drop the colon often.
func hasSentinel(lower string) bool {
	token := strings.TrimSuffix(strings.ToLower(composer.NotFoundSentinel), ":")
	for rest := lower; ; {
		i := strings.Index(rest, token)
		if i < 0 {
			return false
		}
		rest = rest[i+len(token):]
		if rest == "" {
			return true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if r == ':' || unicode.IsSpace(r) {
			return true
		}
	}
}
