package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/greenlight/internal/pipeline"
)

var assessFlags struct {
	input   string
	format  string
	timeout time.Duration
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score a borrower once and print every artifact",
	Long: "assess runs the full pipeline interactively over a borrower file (or the\n" +
		"built-in sample) and prints the results. A stage failure is printed and\n" +
		"exits non-zero.",
	RunE: runAssess,
}

func init() {
	f := assessCmd.Flags()
	f.StringVar(&assessFlags.input, "input", "", "Borrower YAML file or saved markdown report (default: built-in sample)")
	f.StringVar(&assessFlags.format, "format", formatTable, "Output format: table, json, yaml or markdown")
	f.DurationVar(&assessFlags.timeout, "timeout", 5*time.Minute, "Overall deadline for the run")
}

func runAssess(cmd *cobra.Command, _ []string) error {
	if !validFormat(assessFlags.format) {
		return fmt.Errorf("unknown format %q (want table, json, yaml or markdown)", assessFlags.format)
	}
	rt, err := newRuntime(rootFlags.project, runtimeOptions{logOutput: cmd.ErrOrStderr(), input: assessFlags.input})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), assessFlags.timeout)
	defer cancel()

	input := rt.store.Get()
	state, runErr := rt.orch.RunInteractive(ctx, input)
	if err := writeReport(cmd.OutOrStdout(), assessFlags.format, input, state); err != nil {
		return err
	}
	var failure *pipeline.StageFailure
	if errors.As(runErr, &failure) {
		return fmt.Errorf("assessment failed at %s: %w", failure.Stage, failure.Cause)
	}
	return runErr
}
