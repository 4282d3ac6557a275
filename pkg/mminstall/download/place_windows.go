//go:build windows

package download

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// replaceFile moves src over dst with MoveFileEx. Antivirus scanners and
// the launcher briefly hold freshly written jars open, so sharing
// violations are retried with backoff.
func replaceFile(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", src, err)
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", dst, err)
	}

	const attempts = 3
	delay := 50 * time.Millisecond
	flags := uint32(windows.MOVEFILE_REPLACE_EXISTING | windows.MOVEFILE_WRITE_THROUGH)
	for i := 1; ; i++ {
		err = windows.MoveFileEx(from, to, flags)
		if err == nil {
			return nil
		}
		if i == attempts {
			return fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		logging.Get("download").Debug("retrying file replace", "attempt", i, "dst", dst, "error", err)
		time.Sleep(delay)
		delay *= 2
	}
}
