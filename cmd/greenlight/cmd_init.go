package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kingrea/greenlight/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .greenlight/ with a default config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.InitDir(rootFlags.project); err != nil {
			return err
		}
		path := filepath.Join(rootFlags.project, config.Dir, "config.yaml")
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", path)
		return nil
	},
}
