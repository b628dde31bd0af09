package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/sitemirror.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new sitemirror configuration file",
		Long: `Initialize creates a new .sitemirror configuration file in the current directory.

The generated file includes:
- The target domain, sitemap and replacement base
- Worker, rate limit, retry and timeout settings
- Commented examples for per-site headers, cookies and ignore patterns

Examples:
  # Create .sitemirror in current directory
  sitemirror init

  # Create config file at a specific path
  sitemirror init -o myconfig.yaml

  # Force overwrite existing file
  sitemirror init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/sitemirror.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure the export, for example:")
	fmt.Fprintln(out, "  - The domain to mirror and the replacement base URL")
	fmt.Fprintln(out, "  - Request rate, workers and retries")
	fmt.Fprintln(out, "  - Cookies, headers and URL patterns to ignore")

	return nil
}
