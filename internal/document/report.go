package document

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/pipeline"
)

// Render builds the full markdown report for a run over input.
func Render(input borrower.Input, state pipeline.State, now time.Time) ([]byte, error) {
	sum, err := Checksum(input)
	if err != nil {
		return nil, err
	}
	meta := Metadata{
		RunID:      state.RunID,
		Generation: state.Generation,
		Phase:      string(state.Phase),
		CreatedAt:  now,
		Checksum:   sum,
		Input:      input,
	}
	if d := state.Decision; d != nil {
		meta.Status = string(d.Status)
		meta.Score = d.GreenCreditScore
	}
	return WriteFrontMatter(meta, Body(input, state))
}

// Body renders the human-readable part of the report. Sections appear only for
// artifacts the run produced.
func Body(input borrower.Input, state pipeline.State) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Green credit assessment: %s %s\n\n", input.BusinessType, input.Industry)

	if f := state.Failure; f != nil {
		fmt.Fprintf(&b, "> **Failed at %s** (%s): %v\n\n", f.Stage, f.Kind(), f.Cause)
	}
	if d := state.Decision; d != nil {
		fmt.Fprintf(&b, "## Decision\n\n**%s**, green credit score %.0f, APR %s.\n\n%s\n\n",
			d.Status, d.GreenCreditScore, d.APRAdjustment, d.Justification)
	}
	if n := state.Normalized; n != nil {
		b.WriteString("## Normalized features\n\n| Feature | Score |\n|---|---|\n")
		rows := []struct {
			name  string
			value float64
		}{
			{"Revenue", n.Financial.RevenueScore},
			{"Cash flow stability", n.Financial.CashFlowStability},
			{"Debt ratio", n.Financial.DebtRatio},
			{"Credit", n.Financial.CreditScore},
			{"Energy cleanliness", n.Sustainability.EnergyCleanliness},
			{"Carbon efficiency", n.Sustainability.CarbonEfficiency},
			{"Labor ethics", n.Sustainability.LaborEthics},
			{"Regulatory risk", n.Sustainability.RegulatoryRisk},
		}
		for _, row := range rows {
			fmt.Fprintf(&b, "| %s | %.0f |\n", row.name, row.value)
		}
		b.WriteString("\n")
	}
	if f := state.Financial; f != nil {
		fmt.Fprintf(&b, "## Financial risk\n\nScore %.0f (%s). %s\n\n", f.Score, f.Band, f.Summary)
	}
	if s := state.Sustainability; s != nil {
		fmt.Fprintf(&b, "## Sustainability\n\nScore %.0f. %s\n\n", s.Score, s.ImpactDescription)
		for _, sdg := range s.SDGs {
			fmt.Fprintf(&b, "- %s: %.0f / %.0f\n", sdg.Subject, sdg.A, sdg.FullMark)
		}
		if len(s.SDGs) > 0 {
			b.WriteString("\n")
		}
	}
	if u := state.Uplift; u != nil {
		fmt.Fprintf(&b, "## Uplift plan\n\nSustainability %.0f → %.0f.\n\n", u.CurrentScore, u.ProjectedScore)
		for _, rec := range u.Recommendations {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", rec.Title, rec.Impact, rec.Action)
		}
		b.WriteString("\n")
	}
	if state.Scenarios != nil {
		b.WriteString("## Climate scenarios\n\n| Scenario | Financial | Sustainability | Total |\n|---|---|---|---|\n")
		for _, sc := range state.Scenarios {
			fmt.Fprintf(&b, "| %s | %.0f | %.0f | %.0f |\n", sc.Scenario, sc.FinancialImpact, sc.SustainabilityImpact, sc.TotalScore)
		}
		b.WriteString("\n")
	}
	if r := state.Review; r != nil {
		b.WriteString("## Review\n\n")
		if len(r.KeyDrivers) > 0 {
			fmt.Fprintf(&b, "Key drivers: %s.\n\n", strings.Join(r.KeyDrivers, "; "))
		}
		for _, h := range r.RiskHighlights {
			fmt.Fprintf(&b, "- [%s] %s\n", h.Type, h.Message)
		}
		if len(r.RiskHighlights) > 0 {
			b.WriteString("\n")
		}
		if r.EthicalConsiderations != "" {
			fmt.Fprintf(&b, "%s\n\n", r.EthicalConsiderations)
		}
		if r.SuggestedNextSteps != "" {
			fmt.Fprintf(&b, "Next steps: %s\n", r.SuggestedNextSteps)
		}
	}
	return b.Bytes()
}
