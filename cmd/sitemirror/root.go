package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitemirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemirror",
		Short: "Export a WordPress site into a static local mirror",
		Long: `sitemirror exports a WordPress site into a static local mirror.

It reads the sitemap, follows every internal link, saves each page with its
stylesheets, scripts and images, and rewrites references to the original
domain so the mirror can be served from another base URL. Posts, pages,
categories, tags and media are also written to wordpress_export.json.

Re-running an export into the same folder reuses its link list and only
downloads what is missing; use --rediscover to pick up new posts.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
