package download

import (
	"fmt"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
)

// maxSnippet caps the response body excerpt carried by HTTPError.
const maxSnippet = 512

// unreadableBody replaces the snippet when the error body cannot be read.
const unreadableBody = "<failed to read body>"

// HTTPError is returned for a non-2xx download response.
type HTTPError struct {
	URL        string
	StatusCode int
	Snippet    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("download %s failed with status %d: %s", e.URL, e.StatusCode, e.Snippet)
}

// Unwrap classifies the failure as errdefs.ErrHTTP.
func (e *HTTPError) Unwrap() error { return errdefs.ErrHTTP }
