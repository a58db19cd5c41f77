package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/config"
	"github.com/kingrea/greenlight/internal/document"
	"github.com/kingrea/greenlight/internal/eventbridge"
	"github.com/kingrea/greenlight/internal/logbook"
	"github.com/kingrea/greenlight/internal/logging"
	"github.com/kingrea/greenlight/internal/oracle"
	"github.com/kingrea/greenlight/internal/pipeline"
	"github.com/kingrea/greenlight/internal/stage"
)

type runtimeOptions struct {
	// logFile sends slog output to .greenlight/logs instead of stderr.
	logFile bool
	// logOutput overrides stderr when logFile is false (tests).
	logOutput io.Writer
	input     string
}

// appRuntime is everything a subcommand needs, wired once from config.
type appRuntime struct {
	cfg      *config.Config
	client   oracle.Client
	orch     *pipeline.Orchestrator
	store    *borrower.Store
	router   *eventbridge.Router
	registry *prometheus.Registry
	journal  *logbook.Logbook
	logger   *slog.Logger

	closers []io.Closer
}

func newRuntime(projectDir string, opts runtimeOptions) (*appRuntime, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	cfg, err := config.NewConfig(abs)
	if err != nil {
		return nil, err
	}
	rt := &appRuntime{cfg: cfg}
	if err := rt.initLogging(opts); err != nil {
		return nil, err
	}
	rt.logger = logging.New("greenlight")

	rt.client, err = newOracleClient(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	runner, err := stage.NewRunner(rt.client)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.registry = prometheus.NewRegistry()
	metrics, err := pipeline.NewMetrics(rt.registry)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	rt.router = eventbridge.NewRouter(eventbridge.RouterWithLogger(logging.New("eventbridge")))
	observers := []pipeline.Observer{
		pipeline.NewSlogObserver(logging.New("pipeline")),
		metrics,
		rt.router,
	}
	if journal, err := logbook.New(cfg.JournalPath()); err != nil {
		rt.logger.Warn("journal unavailable", "path", cfg.JournalPath(), "error", err)
	} else {
		rt.journal = journal
		observers = append(observers, logbook.NewObserver(journal))
	}

	rt.orch, err = pipeline.New(runner,
		pipeline.WithObserver(pipeline.NewMultiObserver(observers...)),
		pipeline.WithLogger(logging.New("pipeline")))
	if err != nil {
		rt.Close()
		return nil, err
	}

	input, err := loadInput(opts.input)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = borrower.NewStore(input)
	return rt, nil
}

// loadInput reads a borrower YAML file, or the input embedded in a report
// written by `assess --format markdown`.
func loadInput(path string) (borrower.Input, error) {
	switch {
	case path == "":
		return borrower.Default(), nil
	case strings.EqualFold(filepath.Ext(path), ".md"):
		return document.LoadInput(path)
	}
	return borrower.Load(path)
}

func (rt *appRuntime) initLogging(opts runtimeOptions) error {
	level, err := logging.ParseLevel(rt.cfg.Project.Logging.Level)
	if err != nil {
		return err
	}
	out := opts.logOutput
	if opts.logFile {
		f, err := logging.OpenFile(rt.cfg.LogPath())
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, f)
		out = f
	}
	logging.Init(level, rt.cfg.Project.Logging.Format, out)
	return nil
}

func newOracleClient(cfg *config.Config) (oracle.Client, error) {
	oc := cfg.Project.Oracle
	switch oc.Backend {
	case config.BackendScript:
		client, err := oracle.LoadScript(oc.Script)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendHTTP:
		client, err := oracle.NewHTTPClient(oc.Endpoint, oc.Model,
			oracle.WithAPIKey(cfg.APIKey()),
			oracle.WithTimeout(oc.Timeout.Std()),
			oracle.WithRetries(cfg.Retries(), 0),
			oracle.WithLogger(logging.New("oracle")))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown oracle backend %q", oc.Backend)
}

// Close releases log files. Safe to call more than once.
func (rt *appRuntime) Close() {
	for _, c := range rt.closers {
		_ = c.Close()
	}
	rt.closers = nil
}
