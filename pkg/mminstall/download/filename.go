package download

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
)

// FileName derives the destination file name of a response: the
// Content-Disposition filename when present, else the last non-empty path
// segment of the final (post-redirect) URL.
func FileName(resp *http.Response) (string, error) {
	if name := dispositionName(resp.Header.Get("Content-Disposition")); name != "" {
		return name, nil
	}

	var final *url.URL
	if resp.Request != nil {
		final = resp.Request.URL
	}
	if final != nil {
		if name := lastSegment(final.Path); name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no Content-Disposition filename and no usable URL path in %v",
		errdefs.ErrNameResolution, final)
}

func dispositionName(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := baseName(params["filename"]); name != "" {
			return name
		}
	}
	// Servers send malformed headers often enough that a plain scan for
	// filename= is still worth doing when strict parsing fails.
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "filename") {
			return baseName(strings.Trim(strings.TrimSpace(value), `"'`))
		}
	}
	return ""
}

func lastSegment(p string) string {
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if name := baseName(segs[i]); name != "" {
			return name
		}
	}
	return ""
}

// baseName reduces a name to its final element so it cannot address a
// location outside the scratch directory.
func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
