package event

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// JSONWriter writes events as newline-delimited JSON.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter creates a JSONWriter on w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// Emit writes one line for e.
func (j *JSONWriter) Emit(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(e); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}
