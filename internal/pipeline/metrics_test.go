package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/oracle/oracletest"
	"github.com/kingrea/greenlight/internal/stage"
)

func TestMetricsObserverCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	stub := oracletest.New()
	orch := newOrchestrator(t, stub, WithObserver(metrics))

	if _, err := orch.RunInteractive(context.Background(), borrower.Default()); err != nil {
		t.Fatalf("run: %v", err)
	}
	stub.Fail(stage.NameDecide, errors.New("boom"))
	orch.RunBackground(context.Background(), borrower.Default())

	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("interactive", "succeeded")); got != 1 {
		t.Fatalf("succeeded runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("background", "failed")); got != 1 {
		t.Fatalf("failed background runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.generation); got != 2 {
		t.Fatalf("generation gauge = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(metrics.stages); n == 0 {
		t.Fatalf("expected stage duration series")
	}
}

func TestNewMetricsRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
