package history

import "time"

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Action says what a run did with one artifact.
type Action string

const (
	ActionDownloaded   Action = "downloaded"
	ActionRedownloaded Action = "redownloaded"
	ActionSkipped      Action = "skipped"
)

// Run is one journal entry.
type Run struct {
	ID          string     `json:"id"`
	Started     time.Time  `json:"started"`
	Finished    time.Time  `json:"finished"`
	InstallDir  string     `json:"installDir"`
	PackVersion string     `json:"packVersion"`
	Outcome     Outcome    `json:"outcome"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts"`
	Totals      Totals     `json:"totals"`
}

// Artifact is the journal line for one manifest entry.
type Artifact struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Action   Action `json:"action"`
	FileName string `json:"fileName,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
}

// Totals aggregates a run's artifacts.
type Totals struct {
	Downloaded   int   `json:"downloaded"`
	Redownloaded int   `json:"redownloaded"`
	Skipped      int   `json:"skipped"`
	Bytes        int64 `json:"bytes"`
}

// Tally recomputes Totals from Artifacts.
func (r *Run) Tally() {
	var t Totals
	for _, a := range r.Artifacts {
		switch a.Action {
		case ActionDownloaded:
			t.Downloaded++
		case ActionRedownloaded:
			t.Redownloaded++
		case ActionSkipped:
			t.Skipped++
		}
		t.Bytes += a.Bytes
	}
	r.Totals = t
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
