package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/postboard/internal/config"
	"github.com/abelbrown/postboard/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the current settings to a YAML config file",
	Long: `Write the resolved settings (defaults, environment and flags) to a YAML
file so they can be edited. The default path is ~/.postboard/config.yaml.

Examples:
  postboard config init
  postboard config init --base-url http://localhost:8080 --force
  postboard config init ./postboard.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := config.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		return writeConfig(cmd.OutOrStdout(), cfg, path, force)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}

// writeConfig saves c to path, refusing to overwrite unless force is set.
func writeConfig(w io.Writer, c *config.Config, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := c.Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	logging.Info("config written", "path", path)
	_, _ = fmt.Fprintf(w, "✓ Wrote %s\n", path)
	return nil
}
