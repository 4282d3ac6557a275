package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mminstall/pkg/mminstall/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage mminstall configuration settings.

Configuration is loaded from $XDG_CONFIG_HOME/mminstall/config.yaml
(typically ~/.config/mminstall/config.yaml).

Environment variables override config file settings using the MMINSTALL_ prefix:
  MMINSTALL_INSTALL_DIR=~/packs/smp
  MMINSTALL_SIDE=server
  MMINSTALL_HTTP_CONNECT_TIMEOUT=30s
  MMINSTALL_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration merged from flags, environment, file and defaults.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in $VISUAL, $EDITOR or vi, creating it first if
needed.`,
	RunE: runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		printError("%v", err)
	}

	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Printf("# Config file: %s\n", f)
	} else {
		fmt.Println("# Config file: (using defaults, no file found)")
	}

	settings := viper.AllSettings()
	// flag-only keys are not configuration
	for _, k := range []string{"quiet", "verbose", "no_interactive", "events"} {
		delete(settings, k)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(settings)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	written, err := config.WriteDefault(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if !written {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'mminstall config edit' to modify it.")
		return nil
	}
	printInfo("Created default config file: %s", path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := configPath()
	fmt.Println(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		printVerbose("File does not exist (defaults are used)")
	}
	return nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path()
}
