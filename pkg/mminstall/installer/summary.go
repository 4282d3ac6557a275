package installer

import "time"

// Action says what a run did with an artifact.
type Action string

const (
	ActionDownloaded   Action = "downloaded"
	ActionRedownloaded Action = "redownloaded"
	ActionSkipped      Action = "skipped"
)

// ArtifactResult is the outcome for one manifest entry.
type ArtifactResult struct {
	Kind     Kind
	Name     string
	Action   Action
	FileName string
	Bytes    int64
}

// Summary describes a finished, or failed, run.
type Summary struct {
	InstallDir     string
	PackVersion    string
	Started        time.Time
	Finished       time.Time
	State          State
	Artifacts      []ArtifactResult
	Alerts         []string
	ProfileAdded   bool
	LoaderLaunched bool
}

func (s *Summary) add(a ArtifactResult) { s.Artifacts = append(s.Artifacts, a) }

// Count returns how many artifacts ended with action.
func (s *Summary) Count(action Action) int {
	n := 0
	for _, a := range s.Artifacts {
		if a.Action == action {
			n++
		}
	}
	return n
}

// Bytes is the total number of bytes downloaded.
func (s *Summary) Bytes() int64 {
	var n int64
	for _, a := range s.Artifacts {
		n += a.Bytes
	}
	return n
}

func (s *Summary) Duration() time.Duration { return s.Finished.Sub(s.Started) }
