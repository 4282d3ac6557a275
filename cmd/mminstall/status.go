package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/mminstall/pkg/mminstall/installer"
	"github.com/jamesainslie/mminstall/pkg/mminstall/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the manifest with what is installed",
	Long: `Show whether an install can start and, for every manifest entry, whether it is
installed, drifted (the manifest changed or the file is gone), pending or
skipped for this side. Nothing is downloaded or modified.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var (
	statusFormat   string
	statusExitCode bool
)

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "output", "o", "pretty",
		"output format ("+strings.Join(output.Available(), ", ")+")")
	statusCmd.Flags().BoolVar(&statusExitCode, "exit-code", false, "exit with status 2 when anything is not up to date")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := output.Get(statusFormat)
	if err != nil {
		return err
	}

	dir, err := cfg.ResolveInstallDir()
	if err != nil {
		return fmt.Errorf("resolving install directory: %w", err)
	}
	in, err := installer.New(installerOptions(cfg, dir))
	if err != nil {
		return err
	}

	rep, err := in.Status()
	if err != nil {
		return fmt.Errorf("reading install status: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, rep); err != nil {
		return fmt.Errorf("formatting status: %w", err)
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return err
	}

	if statusExitCode && !rep.UpToDate() {
		os.Exit(2)
	}
	return nil
}
