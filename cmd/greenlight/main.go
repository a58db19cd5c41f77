// cmd/greenlight/main.go
//
// Entry point for the greenlight CLI. Running `greenlight` with no
// subcommand opens the terminal wizard in the current directory; the
// subcommands cover headless scoring, the HTTP bridge and project setup.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	project string
}

var rootCmd = &cobra.Command{
	Use:   "greenlight",
	Short: "Green-credit assessment pipeline",
	Long: "greenlight scores a borrower through seven dependent oracle stages\n" +
		"(normalize, financial and sustainability risk, decision, uplift,\n" +
		"climate scenarios, review) and keeps the results live as inputs change.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.project, "project", ".", "Project directory holding .greenlight/")
	rootCmd.Flags().StringVar(&tuiFlags.input, "input", "", "Borrower YAML file or saved markdown report to start from")
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(stagesCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
