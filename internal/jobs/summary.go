package jobs

import "fmt"

// RunSummary reports what one bounded engine run accomplished. Every run
// produces one, suitable for operational logging, even when it exits early
// on an exhausted wall-clock budget.
type RunSummary struct {
	Found     int      `json:"found"`
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Cancelled int      `json:"cancelled,omitempty"`
	Errored   int      `json:"errored"`
	Errors    []string `json:"errors,omitempty"`

	// Partial is true when the run stopped on its wall-clock budget with
	// items still unprocessed; the next invocation picks them up.
	Partial bool `json:"partial,omitempty"`
}

// addError records a per-item error without aborting the run
func (s *RunSummary) addError(format string, args ...interface{}) {
	s.Errored++
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// String renders the summary for log lines
func (s RunSummary) String() string {
	out := fmt.Sprintf("found=%d processed=%d succeeded=%d failed=%d errored=%d",
		s.Found, s.Processed, s.Succeeded, s.Failed, s.Errored)
	if s.Cancelled > 0 {
		out += fmt.Sprintf(" cancelled=%d", s.Cancelled)
	}
	if s.Partial {
		out += " (partial: budget exhausted)"
	}
	return out
}
