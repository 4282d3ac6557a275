package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/mminstall/pkg/mminstall/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the installer cache",
	Long: `Commands for managing the installer cache.

The cache remembers resolved repository download URLs and the hashes of
installed files, so repeat runs skip API lookups and re-hashing unchanged
files. It lives in the XDG cache directory (typically ~/.cache/mminstall/cache).`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cachePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("Cache: empty (not created yet)")
			fmt.Printf("Cache location: %s\n", path)
			return nil
		}

		c, err := cache.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		st, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}
		fmt.Printf("Cache location: %s\n", st.Path)
		fmt.Printf("Resolved URLs:  %d\n", st.URLs)
		fmt.Printf("File hashes:    %d\n", st.Hashes)
		fmt.Printf("Size on disk:   %s\n", humanize.Bytes(uint64(st.LSMBytes+st.LogBytes)))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached data",
	Long:  `Removes every cached URL and hash. The next run resolves and hashes everything again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cachePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("Cache is already empty.")
			return nil
		}

		c, err := cache.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		if err := c.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cachePath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cachePath() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Cache.Path != "" {
		return cfg.Cache.Path, nil
	}
	return cache.DefaultPath(), nil
}
