package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/greenlight/internal/eventbridge"
	"github.com/kingrea/greenlight/internal/logging"
	"github.com/kingrea/greenlight/internal/staleness"
)

var serveFlags struct {
	host  string
	port  int
	input string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose state, input edits and run events over HTTP",
	Long: "serve starts the HTTP bridge. POST /input edits feed the same staleness\n" +
		"controller the wizard uses, so slider changes re-score in the background.",
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.host, "host", "", "Bind host (overrides config)")
	f.IntVar(&serveFlags.port, "port", 0, "Bind port (overrides config)")
	f.StringVar(&serveFlags.input, "input", "", "Borrower YAML file or saved markdown report to start from")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(rootFlags.project, runtimeOptions{logOutput: cmd.ErrOrStderr(), input: serveFlags.input})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller, err := staleness.New(rt.orch, rt.store.Get,
		staleness.WithDelay(rt.cfg.Debounce()),
		staleness.WithContext(ctx),
		staleness.WithLogger(logging.New("staleness")))
	if err != nil {
		return err
	}
	defer controller.Stop()

	settings := eventbridge.SettingsFromConfig(rt.cfg)
	settings.Enabled = true
	if serveFlags.host != "" {
		settings.Host = serveFlags.host
	}
	if serveFlags.port > 0 {
		settings.Port = serveFlags.port
	}
	srv, err := eventbridge.NewServer(settings, rt.orch, rt.store,
		eventbridge.WithWatcher(controller),
		eventbridge.WithRouter(rt.router),
		eventbridge.WithGatherer(rt.registry),
		eventbridge.WithLogger(logging.New("eventbridge")))
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "greenlight bridge listening on %s\n", srv.BaseURL())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
