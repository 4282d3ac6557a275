package launcher

import (
	"fmt"
	"os/exec"

	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// Launch starts `java -jar jar` in dir as a detached process with its
// standard streams discarded, and does not wait for it.
func Launch(java, jar, dir string) error {
	cmd := exec.Command(java, "-jar", jar) //nolint:gosec // paths come from the install layout
	cmd.Dir = dir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", jar, err)
	}
	logging.Get("launcher").Info("launched loader installer", "jar", jar, "pid", cmd.Process.Pid)
	return cmd.Process.Release()
}
