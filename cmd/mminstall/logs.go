package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Open the diagnostic log",
	Long: `Open the folder holding the diagnostic log of the install directory in the
system file manager, or print its last lines with --print.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsPrint bool
	logsLines int
)

func init() {
	logsCmd.Flags().BoolVarP(&logsPrint, "print", "p", false, "print the log instead of opening its folder")
	logsCmd.Flags().IntVar(&logsLines, "lines", 50, "number of lines to print (0 for all)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := cfg.ResolveInstallDir()
	if err != nil {
		return fmt.Errorf("resolving install directory: %w", err)
	}
	path := cfg.LoggingFor(dir).Path

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		printInfo("No log yet at %s", path)
		return nil
	}

	if logsPrint {
		return printTail(path, logsLines)
	}
	fmt.Println(path)
	if err := openFolder(filepath.Dir(path)); err != nil {
		printVerbose("could not open file manager: %v", err)
	}
	return nil
}

// printTail writes the last n lines of path to stdout.
func printTail(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading log: %w", err)
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer", dir)
	case "darwin":
		cmd = exec.Command("open", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
