package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/greenlight/internal/assessment"
	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/document"
	"github.com/kingrea/greenlight/internal/pipeline"
)

const (
	formatTable    = "table"
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

func validFormat(f string) bool {
	switch f {
	case formatTable, formatJSON, formatYAML, formatMarkdown:
		return true
	}
	return false
}

// report is the printable result of one assess run.
type report struct {
	RunID          string                         `json:"run_id" yaml:"run_id"`
	Generation     uint64                         `json:"generation" yaml:"generation"`
	Phase          pipeline.Phase                 `json:"phase" yaml:"phase"`
	Input          borrower.Input                 `json:"input" yaml:"input"`
	Failure        *failureReport                 `json:"failure,omitempty" yaml:"failure,omitempty"`
	Normalized     *assessment.NormalizedData     `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	Financial      *assessment.FinancialRisk      `json:"financial,omitempty" yaml:"financial,omitempty"`
	Sustainability *assessment.SustainabilityRisk `json:"sustainability,omitempty" yaml:"sustainability,omitempty"`
	Decision       *assessment.Decision           `json:"decision,omitempty" yaml:"decision,omitempty"`
	Uplift         *assessment.UpliftPlan         `json:"uplift,omitempty" yaml:"uplift,omitempty"`
	Scenarios      []assessment.ClimateScenario   `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	Review         *assessment.ReviewSummary      `json:"review,omitempty" yaml:"review,omitempty"`
}

type failureReport struct {
	Stage pipeline.StageID `json:"stage" yaml:"stage"`
	Kind  string           `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error string           `json:"error" yaml:"error"`
}

func newReport(input borrower.Input, state pipeline.State) report {
	r := report{
		RunID:          state.RunID,
		Generation:     state.Generation,
		Phase:          state.Phase,
		Input:          input,
		Normalized:     state.Normalized,
		Financial:      state.Financial,
		Sustainability: state.Sustainability,
		Decision:       state.Decision,
		Uplift:         state.Uplift,
		Scenarios:      state.Scenarios,
		Review:         state.Review,
	}
	if f := state.Failure; f != nil {
		r.Failure = &failureReport{Stage: f.Stage, Kind: string(f.Kind())}
		if f.Cause != nil {
			r.Failure.Error = f.Cause.Error()
		}
	}
	return r
}

func writeReport(w io.Writer, format string, input borrower.Input, state pipeline.State) error {
	r := newReport(input, state)
	switch format {
	case formatMarkdown:
		content, err := document.Render(input, state, time.Now())
		if err != nil {
			return err
		}
		_, err = w.Write(content)
		return err
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	_, err := fmt.Fprintln(w, renderTable(r))
	return err
}

func renderTable(r report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Assessment %s · generation %d · %s", shortRunID(r.RunID), r.Generation, r.Phase))
	t.AppendHeader(table.Row{"Stage", "Result", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 70},
		{Number: 2, Align: text.AlignRight},
	})

	if n := r.Normalized; n != nil {
		t.AppendRow(table.Row{"normalize", "ok", fmt.Sprintf(
			"revenue %.0f · cash flow %.0f · debt %.0f · credit %.0f\nenergy %.0f · carbon %.0f · labor %.0f · regulatory %.0f",
			n.Financial.RevenueScore, n.Financial.CashFlowStability, n.Financial.DebtRatio, n.Financial.CreditScore,
			n.Sustainability.EnergyCleanliness, n.Sustainability.CarbonEfficiency, n.Sustainability.LaborEthics, n.Sustainability.RegulatoryRisk)})
	}
	if f := r.Financial; f != nil {
		t.AppendRow(table.Row{"scoreFinancial", fmt.Sprintf("%.0f (%s)", f.Score, f.Band), f.Summary})
	}
	if s := r.Sustainability; s != nil {
		t.AppendRow(table.Row{"scoreSustainability", fmt.Sprintf("%.0f", s.Score), s.ImpactDescription})
	}
	if d := r.Decision; d != nil {
		t.AppendRow(table.Row{"decide", fmt.Sprintf("%s %.0f", d.Status, d.GreenCreditScore),
			fmt.Sprintf("APR %s · %s", d.APRAdjustment, d.Justification)})
	}
	if u := r.Uplift; u != nil {
		titles := make([]string, len(u.Recommendations))
		for i, rec := range u.Recommendations {
			titles[i] = fmt.Sprintf("%s (%s)", rec.Title, rec.Impact)
		}
		t.AppendRow(table.Row{"planUplift", fmt.Sprintf("%.0f → %.0f", u.CurrentScore, u.ProjectedScore), strings.Join(titles, "\n")})
	}
	if r.Scenarios != nil {
		lines := make([]string, len(r.Scenarios))
		for i, sc := range r.Scenarios {
			lines[i] = fmt.Sprintf("%s: %.0f", sc.Scenario, sc.TotalScore)
		}
		t.AppendRow(table.Row{"simulateScenarios", len(r.Scenarios), strings.Join(lines, "\n")})
	}
	if rv := r.Review; rv != nil {
		t.AppendRow(table.Row{"summarizeForReview", fmt.Sprintf("%d highlights", len(rv.RiskHighlights)), rv.SuggestedNextSteps})
	}
	if f := r.Failure; f != nil {
		t.AppendFooter(table.Row{"FAILED " + string(f.Stage), f.Kind, f.Error})
	}
	return t.Render()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
