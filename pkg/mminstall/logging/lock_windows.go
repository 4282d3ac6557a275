//go:build windows

package logging

import (
	"os"

	"golang.org/x/sys/windows"
)

// Lock the first byte range; appends are not covered by a range lock but
// every writer takes the same one, which serializes them.
func lockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol)
}

func unlockFile(f *os.File) {
	ol := new(windows.Overlapped)
	_ = windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
