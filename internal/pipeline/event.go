package pipeline

import (
	"fmt"

	"github.com/imran59059/company-analytics/internal/search"
	"github.com/imran59059/company-analytics/internal/sources"
)

// Stage is the index of a pipeline phase.
type Stage int

const (
	StageSearch Stage = iota
	StageDetails
	StageAnalysis
	StageVoice
)

var stageKeys = [...]string{"search", "details", "analysis", "voice"}

// Key is the stable lowercase identifier used in logs and metrics.
func (s Stage) Key() string {
	if s < 0 || int(s) >= len(stageKeys) {
		return fmt.Sprintf("stage%d", int(s))
	}
	return stageKeys[s]
}

// EventKind discriminates progress events.
type EventKind int

const (
	// EventFragment carries a chunk of stage text.
	EventFragment EventKind = iota
	// EventSources carries the search outcome once stage 0 finishes.
	EventSources
	// EventStageDone marks the end of a stage's output.
	EventStageDone
	// EventTransition is UI feedback between stages.
	EventTransition
	// EventNotFound ends the run because the company was not identified.
	EventNotFound
	// EventError ends the run because a stage failed.
	EventError
	// EventDone ends a run in which every stage completed.
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventSources:
		return "sources"
	case EventStageDone:
		return "stageDone"
	case EventTransition:
		return "transition"
	case EventNotFound:
		return "notFound"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one progress notification from a run. Which fields are set
// depends on Kind.
type Event struct {
	Kind  EventKind
	Stage Stage

	// Text is a fragment of generated text.
	Text string
	// Label is the completion label (stageDone).
	Label string
	// Final marks the last stage of the run (stageDone, notFound).
	Final bool
	// From and To bound a transition.
	From, To Stage
	// Message is the transition, not-found, or error message.
	Message string
	// Search is set on EventSources.
	Search *SearchOutcome
}

// SearchOutcome is what stage 0 hands to later stages.
type SearchOutcome struct {
	// Text is the formatted search context injected into prompts.
	Text     string
	Metadata sources.Metadata
	Results  []search.CategoryResult
}

// HasEvidence reports whether at least one real source was found.
func (s *SearchOutcome) HasEvidence() bool {
	return s != nil && s.Metadata.TotalSources > 0
}
