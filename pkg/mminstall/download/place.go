package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// Place moves src to dst, creating dst's parent directories. An existing
// file at dst is replaced atomically and reported through replaced.
func Place(src, dst string) (replaced bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(dst), errors.Join(errdefs.ErrIO, err))
	}

	if info, statErr := os.Lstat(dst); statErr == nil {
		if info.IsDir() {
			return false, fmt.Errorf("placing %s: %w: destination is a directory", dst, errdefs.ErrIO)
		}
		replaced = true
		logging.Get("download").Warn("overwriting existing file", "path", dst)
	}

	if err := replaceFile(src, dst); err != nil {
		return false, fmt.Errorf("moving %s to %s: %w", src, dst, errors.Join(errdefs.ErrIO, err))
	}
	return replaced, nil
}
