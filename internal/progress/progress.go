// Package progress defines the tagged event stream the pipeline emits toward
// the transport layer.
//
// The core never formats chat markup; it publishes typed events and a
// terminal stage signal, and the transport decides presentation. A Sink is
// supplied by the caller per pipeline run.
package progress

import "permitflow/internal/session"

// Kind tags a progress event.
type Kind string

const (
	// KindInfo carries free-form human-readable progress text.
	KindInfo Kind = "info"
	// KindItemResult reports the outcome for one permit identifier.
	KindItemResult Kind = "item_result"
	// KindStageComplete is the terminal success signal for a stage.
	KindStageComplete Kind = "stage_complete"
	// KindStageFailed is the terminal failure signal for a stage.
	KindStageFailed Kind = "stage_failed"
)

// ItemOutcome classifies a per-identifier result.
type ItemOutcome string

const (
	OutcomeEligible    ItemOutcome = "eligible"
	OutcomeNotEligible ItemOutcome = "not_eligible"
	OutcomeGenerated   ItemOutcome = "generated"
	OutcomeError       ItemOutcome = "error"
)

// Event is one unit of pipeline progress.
type Event struct {
	Kind       Kind
	Stage      session.State
	Text       string
	Identifier string
	Outcome    ItemOutcome

	// Terminal payloads, populated on stage completion.
	RecordCount   int
	EligibleCount int
	Documents     []session.Document
	Err           error
}

// Sink receives pipeline events. Implementations must be safe for use from a
// single pipeline goroutine; they are not invoked concurrently per session.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(event Event) { f(event) }

// Discard swallows all events.
var Discard Sink = SinkFunc(func(Event) {})

// Info emits a KindInfo event with the given text.
func Info(sink Sink, stage session.State, text string) {
	if sink == nil {
		return
	}
	sink.Emit(Event{Kind: KindInfo, Stage: stage, Text: text})
}

// Item emits a KindItemResult event.
func Item(sink Sink, stage session.State, identifier string, outcome ItemOutcome, text string) {
	if sink == nil {
		return
	}
	sink.Emit(Event{Kind: KindItemResult, Stage: stage, Identifier: identifier, Outcome: outcome, Text: text})
}
