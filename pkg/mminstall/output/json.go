package output

import (
	"bytes"
	"encoding/json"
)

// summary is appended to machine-readable output.
type summary struct {
	Installed int  `json:"installed" yaml:"installed"`
	Drifted   int  `json:"drifted" yaml:"drifted"`
	Pending   int  `json:"pending" yaml:"pending"`
	Skipped   int  `json:"skipped" yaml:"skipped"`
	UpToDate  bool `json:"upToDate" yaml:"upToDate"`
}

type document struct {
	Report  `yaml:",inline"`
	Summary summary `json:"summary" yaml:"summary"`
}

func newDocument(r *Report) document {
	if r.Entries == nil {
		r.Entries = []Entry{}
	}
	return document{Report: *r, Summary: summary{
		Installed: r.Count(StateInstalled),
		Drifted:   r.Count(StateDrifted),
		Pending:   r.Count(StatePending),
		Skipped:   r.Count(StateSkipped),
		UpToDate:  r.UpToDate(),
	}}
}

// JSONFormatter writes the report as one indented JSON object.
type JSONFormatter struct{}

// Format encodes the report followed by a newline.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(r))
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
}

var _ Formatter = (*JSONFormatter)(nil)
