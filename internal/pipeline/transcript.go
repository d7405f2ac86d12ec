package pipeline

import (
	"strings"
)

// Status is the lifecycle state of a run as seen by a consumer.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusNotFound  Status = "notFound"
	StatusFailed    Status = "failed"
)

// Transcript accumulates a run's events into per-stage text. Concatenating
// the fragments of a stage in arrival order reproduces that stage's text.
type Transcript struct {
	outputs map[Stage]*strings.Builder
	Search  *SearchOutcome
	Status  Status
	// Err is the failure message when Status is StatusFailed.
	Err string
	// NotFound is the message attached to a not-found outcome.
	NotFound string
}

// NewTranscript returns an empty transcript in the running state.
func NewTranscript() *Transcript {
	return &Transcript{
		outputs: make(map[Stage]*strings.Builder),
		Status:  StatusRunning,
	}
}

// Apply folds one event into the transcript. Events after a terminal status
// are ignored.
func (t *Transcript) Apply(ev Event) {
	if t.Status != StatusRunning {
		return
	}
	switch ev.Kind {
	case EventFragment:
		b, ok := t.outputs[ev.Stage]
		if !ok {
			b = &strings.Builder{}
			t.outputs[ev.Stage] = b
		}
		b.WriteString(ev.Text)
	case EventSources:
		t.Search = ev.Search
	case EventNotFound:
		t.Status = StatusNotFound
		t.NotFound = ev.Message
	case EventError:
		t.Status = StatusFailed
		t.Err = ev.Message
	case EventDone:
		t.Status = StatusCompleted
	}
}

// Text returns the accumulated fragments of a stage.
func (t *Transcript) Text(s Stage) string {
	if b, ok := t.outputs[s]; ok {
		return b.String()
	}
	return ""
}

// Terminal reports whether the run reached a terminal status. A cancelled
// run stays StatusRunning.
func (t *Transcript) Terminal() bool {
	return t.Status != StatusRunning
}
