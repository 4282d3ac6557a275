package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/mminstall/pkg/mminstall/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View previous install runs",
	Long: `View the journal of install runs: when they ran, what they downloaded and
whether they succeeded.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove runs older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func openJournal() (*history.Journal, int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	j, err := history.New(historyDir(cfg))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open history: %w", err)
	}
	return j, cfg.History.RetentionDays, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, _, err := openJournal()
	if err != nil {
		return err
	}

	runs, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(runs) == 0 {
		printInfo("No runs recorded yet.")
		printInfo("Run 'mminstall install' to install a pack.")
		return nil
	}

	fmt.Printf("\n%-34s  %-10s  %-10s  %-12s  %s\n", "ID", "OUTCOME", "PACK", "DOWNLOADED", "WHEN")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range runs {
		fmt.Printf("%-34s  %-10s  %-10s  %-12s  %s\n",
			r.ID,
			r.Outcome,
			truncateString(r.PackVersion, 10),
			humanize.Bytes(uint64(r.Totals.Bytes)),
			humanize.Time(r.Started),
		)
	}
	fmt.Println(strings.Repeat("-", 90))
	fmt.Println("Use 'mminstall history show <id>' for details on a specific run.")
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, _, err := openJournal()
	if err != nil {
		return err
	}
	r, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:           %s\n", r.ID)
	fmt.Printf("Started:      %s\n", r.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Duration:     %s\n", r.Duration().Round(time.Millisecond))
	fmt.Printf("Install dir:  %s\n", r.InstallDir)
	fmt.Printf("Pack version: %s\n", r.PackVersion)
	fmt.Printf("Outcome:      %s\n", r.Outcome)
	if r.Error != "" {
		fmt.Printf("Error:        %s\n", r.Error)
	}
	fmt.Printf("Downloaded:   %d (%d updated, %d up to date), %s\n",
		r.Totals.Downloaded, r.Totals.Redownloaded, r.Totals.Skipped, humanize.Bytes(uint64(r.Totals.Bytes)))

	if len(r.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		fmt.Println(strings.Repeat("-", 60))
		for _, a := range r.Artifacts {
			fmt.Printf("%-9s %-13s %-24s %s\n", a.Kind, a.Action, truncateString(a.Name, 24), a.FileName)
		}
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	j, days, err := openJournal()
	if err != nil {
		return err
	}
	n, err := j.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed %d run(s) older than %d days.", n, days)
	return nil
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
