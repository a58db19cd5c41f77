package assessment

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks that every feature is a finite 0–100 score.
func (n NormalizedData) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"financial.revenueScore", n.Financial.RevenueScore},
		{"financial.cashFlowStability", n.Financial.CashFlowStability},
		{"financial.debtRatio", n.Financial.DebtRatio},
		{"financial.creditScore", n.Financial.CreditScore},
		{"sustainability.energyCleanliness", n.Sustainability.EnergyCleanliness},
		{"sustainability.carbonEfficiency", n.Sustainability.CarbonEfficiency},
		{"sustainability.laborEthics", n.Sustainability.LaborEthics},
		{"sustainability.regulatoryRisk", n.Sustainability.RegulatoryRisk},
	}
	for _, c := range checks {
		if err := checkScore(c.name, c.value); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the score, band and breakdown.
func (f FinancialRisk) Validate() error {
	if err := checkScore("score", f.Score); err != nil {
		return err
	}
	if !oneOf(f.Band, Bands) {
		return fmt.Errorf("band %q is not one of %v", f.Band, Bands)
	}
	for i, entry := range f.Breakdown {
		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("breakdown[%d].name is required", i)
		}
		if !finite(entry.Value) {
			return fmt.Errorf("breakdown[%d].value is not a finite number", i)
		}
	}
	return nil
}

// Validate checks the score and radar axes.
func (s SustainabilityRisk) Validate() error {
	if err := checkScore("score", s.Score); err != nil {
		return err
	}
	for i, sdg := range s.SDGs {
		if strings.TrimSpace(sdg.Subject) == "" {
			return fmt.Errorf("sdgs[%d].subject is required", i)
		}
		if !finite(sdg.A) || !finite(sdg.FullMark) {
			return fmt.Errorf("sdgs[%d] carries a non-finite value", i)
		}
	}
	return nil
}

// Validate checks the composite score and outcome.
func (d Decision) Validate() error {
	if err := checkScore("greenCreditScore", d.GreenCreditScore); err != nil {
		return err
	}
	if !oneOf(d.Status, Statuses) {
		return fmt.Errorf("status %q is not one of %v", d.Status, Statuses)
	}
	if strings.TrimSpace(d.APRAdjustment) == "" {
		return fmt.Errorf("aprAdjustment is required")
	}
	return nil
}

// Validate checks both scores and that each recommendation is complete.
func (u UpliftPlan) Validate() error {
	if err := checkScore("currentScore", u.CurrentScore); err != nil {
		return err
	}
	if err := checkScore("projectedScore", u.ProjectedScore); err != nil {
		return err
	}
	for i, rec := range u.Recommendations {
		if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Action) == "" {
			return fmt.Errorf("recommendations[%d] requires title and action", i)
		}
	}
	return nil
}

// Validate checks the scenario label and numbers.
func (c ClimateScenario) Validate() error {
	if strings.TrimSpace(c.Scenario) == "" {
		return fmt.Errorf("scenario is required")
	}
	if !finite(c.FinancialImpact) || !finite(c.SustainabilityImpact) || !finite(c.TotalScore) {
		return fmt.Errorf("scenario %q carries a non-finite value", c.Scenario)
	}
	return nil
}

// ValidateScenarios validates every projection in order.
func ValidateScenarios(scenarios []ClimateScenario) error {
	for i, sc := range scenarios {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("scenarios[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks the highlight categories.
func (r ReviewSummary) Validate() error {
	for i, h := range r.RiskHighlights {
		if !oneOf(h.Type, HighlightTypes) {
			return fmt.Errorf("riskHighlights[%d].type %q is not one of %v", i, h.Type, HighlightTypes)
		}
		if strings.TrimSpace(h.Message) == "" {
			return fmt.Errorf("riskHighlights[%d].message is required", i)
		}
	}
	return nil
}

func checkScore(name string, v float64) error {
	if !finite(v) {
		return fmt.Errorf("%s is not a finite number", name)
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("%s %.2f is outside 0-100", name, v)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func oneOf[T comparable](v T, allowed []T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
