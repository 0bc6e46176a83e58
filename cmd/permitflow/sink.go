package main

import (
	"fmt"
	"io"

	"permitflow/internal/progress"
)

// consoleSink renders pipeline progress events as plain lines. It is the
// reference transport; richer frontends attach their own Sink to the
// coordinator.
func consoleSink(w io.Writer) progress.Sink {
	return progress.SinkFunc(func(event progress.Event) {
		switch event.Kind {
		case progress.KindInfo:
			fmt.Fprintf(w, "[%s] %s\n", event.Stage, event.Text)
		case progress.KindItemResult:
			if event.Text != "" {
				fmt.Fprintf(w, "[%s] %s: %s (%s)\n", event.Stage, event.Identifier, event.Outcome, event.Text)
			} else {
				fmt.Fprintf(w, "[%s] %s: %s\n", event.Stage, event.Identifier, event.Outcome)
			}
		case progress.KindStageComplete:
			switch {
			case len(event.Documents) > 0:
				fmt.Fprintf(w, "[%s] complete: %d certificates\n", event.Stage, len(event.Documents))
				for _, doc := range event.Documents {
					fmt.Fprintf(w, "  %s -> %s\n", doc.Identifier, doc.Path)
				}
			case event.EligibleCount > 0 || event.RecordCount > 0:
				fmt.Fprintf(w, "[%s] complete: %d records, %d eligible\n", event.Stage, event.RecordCount, event.EligibleCount)
			default:
				fmt.Fprintf(w, "[%s] complete\n", event.Stage)
			}
		case progress.KindStageFailed:
			fmt.Fprintf(w, "[%s] failed: %v\n", event.Stage, event.Err)
		}
	})
}
