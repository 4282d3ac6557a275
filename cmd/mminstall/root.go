package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mminstall/pkg/mminstall/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "mminstall",
		Short: "Install and update a mod pack from its manifest",
		Long: `mminstall installs a mod pack described by a config.yaml manifest: the mod
loader, every mod and every resource, each verified against its SHA-1 hash.

Runs are resumable. Artifacts already installed and unchanged are skipped, so
an interrupted or failed run can simply be started again.

Examples:
  mminstall install                  # Install into the current directory
  mminstall install -d ~/packs/smp   # Install into a specific directory
  mminstall install -n --events json # Stream events as JSON lines
  mminstall status                   # Compare the manifest with what is installed
  mminstall logs                     # Open the diagnostic log
  mminstall history                  # List previous runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/mminstall/config.yaml)")
	rootCmd.PersistentFlags().StringP("dir", "d", "", "install directory (default: current directory)")
	rootCmd.PersistentFlags().StringP("manifest", "m", "", "pack manifest (default: <dir>/config.yaml)")
	rootCmd.PersistentFlags().String("side", "", "entries to install: client, server or both")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("install_dir", rootCmd.PersistentFlags().Lookup("dir"))
	_ = viper.BindPFlag("manifest", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("side", rootCmd.PersistentFlags().Lookup("side"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	config.SetDefaults(viper.GetViper())
	if err := config.ReadFile(viper.GetViper(), cfgFile); err != nil {
		printError("%v", err)
	}
}

// loadConfig decodes the merged flags, environment, file and defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
