// internal/borrower/input.go
//
// The borrower record is the only thing the user edits. The presentation
// layer mutates it in place; every pipeline run reads a value snapshot taken
// at the moment the run starts.

package borrower

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Input captures the raw business, financial and sustainability attributes of
// a borrower.
type Input struct {
	BusinessType      string  `json:"business_type" yaml:"business_type"`
	Industry          string  `json:"industry" yaml:"industry"`
	Revenue           float64 `json:"revenue" yaml:"revenue"`
	DebtToIncomeRatio float64 `json:"debt_to_income_ratio" yaml:"debt_to_income_ratio"`
	CreditHistory     string  `json:"credit_history" yaml:"credit_history"`
	EnergySource      string  `json:"energy_source" yaml:"energy_source"`
	CarbonIntensity   float64 `json:"carbon_intensity" yaml:"carbon_intensity"`
	LaborCompliance   float64 `json:"labor_compliance" yaml:"labor_compliance"`
	CashFlowStability float64 `json:"cash_flow_stability" yaml:"cash_flow_stability"`
	RegulatoryIssues  string  `json:"regulatory_issues" yaml:"regulatory_issues"`
}

// ErrUnknownField is returned when a field name does not match the registry.
var ErrUnknownField = errors.New("borrower: unknown field")

// Default returns the record the application starts with.
func Default() Input {
	return Input{
		BusinessType:      "SME",
		Industry:          "Manufacturing",
		Revenue:           5_000_000,
		DebtToIncomeRatio: 35,
		CreditHistory:     "Consistent repayments over 6 years; one restructured facility in 2020.",
		EnergySource:      "Grid electricity with 20% on-site solar; diesel backup generators.",
		CarbonIntensity:   80,
		LaborCompliance:   90,
		CashFlowStability: 75,
		RegulatoryIssues:  "None reported.",
	}
}

// Load reads a YAML borrower file. Missing keys keep their default values.
func Load(path string) (Input, error) {
	in := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("borrower: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("borrower: parse %s: %w", path, err)
	}
	in.Clamp()
	return in, nil
}

// Snapshot returns an independent copy of the record. Input holds no
// references, so the value copy cannot observe later edits.
func (in Input) Snapshot() Input {
	return in
}

// Clamp forces every numeric field into its declared range.
func (in *Input) Clamp() {
	for _, spec := range fields {
		if spec.Kind != KindNumeric {
			continue
		}
		spec.setNumber(in, spec.clamp(spec.number(*in)))
	}
}

// Value renders the field's current value as text.
func (in Input) Value(field Field) (string, error) {
	spec, ok := lookup(field)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if spec.Kind == KindText {
		return spec.text(in), nil
	}
	return strconv.FormatFloat(spec.number(in), 'f', -1, 64), nil
}

// Set parses raw and assigns it to field. Numeric values are clamped into the
// field's range rather than rejected.
func (in *Input) Set(field Field, raw string) error {
	spec, ok := lookup(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if spec.Kind == KindText {
		spec.setText(in, strings.TrimSpace(raw))
		return nil
	}
	cleaned := strings.NewReplacer(",", "", "_", "", "$", "").Replace(strings.TrimSpace(raw))
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("borrower: %s expects a number, got %q", field, raw)
	}
	spec.setNumber(in, spec.clamp(value))
	return nil
}

// Nudge moves a numeric field by steps increments of its slider step.
func (in *Input) Nudge(field Field, steps int) error {
	spec, ok := lookup(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if spec.Kind != KindNumeric {
		return fmt.Errorf("borrower: %s is not a slider", field)
	}
	spec.setNumber(in, spec.clamp(spec.number(*in)+float64(steps)*spec.Step))
	return nil
}

// Changed lists the fields whose values differ between prev and next, in
// registry order.
func Changed(prev, next Input) []Field {
	var out []Field
	for _, spec := range fields {
		if spec.Kind == KindText {
			if spec.text(prev) != spec.text(next) {
				out = append(out, spec.Name)
			}
			continue
		}
		if spec.number(prev) != spec.number(next) {
			out = append(out, spec.Name)
		}
	}
	return out
}
