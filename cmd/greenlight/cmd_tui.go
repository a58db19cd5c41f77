package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/greenlight/internal/config"
	"github.com/kingrea/greenlight/internal/tui"
)

var tuiFlags struct {
	input string
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive assessment wizard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiFlags.input, "input", "", "Borrower YAML file or saved markdown report to start from")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if err := config.InitDir(rootFlags.project); err != nil {
		return fmt.Errorf("initialize %s: %w", config.Dir, err)
	}
	// The wizard owns the terminal, so slog goes to the log file.
	rt, err := newRuntime(rootFlags.project, runtimeOptions{logFile: true, input: tuiFlags.input})
	if err != nil {
		return err
	}
	defer rt.Close()

	app, err := tui.NewApp(rt.cfg, rt.orch, rt.store,
		tui.WithRouter(rt.router),
		tui.WithLogbook(rt.journal),
		tui.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
