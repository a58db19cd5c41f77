package borrower

// Field names a single borrower attribute. Values match the JSON/YAML keys.
type Field string

const (
	FieldBusinessType      Field = "business_type"
	FieldIndustry          Field = "industry"
	FieldRevenue           Field = "revenue"
	FieldDebtToIncomeRatio Field = "debt_to_income_ratio"
	FieldCreditHistory     Field = "credit_history"
	FieldEnergySource      Field = "energy_source"
	FieldCarbonIntensity   Field = "carbon_intensity"
	FieldLaborCompliance   Field = "labor_compliance"
	FieldCashFlowStability Field = "cash_flow_stability"
	FieldRegulatoryIssues  Field = "regulatory_issues"
)

// Kind distinguishes slider fields from free-text fields.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Spec describes how a field is edited and displayed.
type Spec struct {
	Name  Field
	Label string
	Kind  Kind
	Min   float64
	Max   float64
	Step  float64

	text      func(Input) string
	setText   func(*Input, string)
	number    func(Input) float64
	setNumber func(*Input, float64)
}

func (s Spec) clamp(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// Fraction places a numeric field's value within its range, 0 to 1. Text
// fields report 0.
func (s Spec) Fraction(in Input) float64 {
	if s.Kind != KindNumeric || s.Max <= s.Min {
		return 0
	}
	return (s.clamp(s.number(in)) - s.Min) / (s.Max - s.Min)
}

// WatchedFields are the risk-driver sliders whose edits trigger background
// re-scoring once an assessment exists.
var WatchedFields = []Field{
	FieldRevenue,
	FieldDebtToIncomeRatio,
	FieldCarbonIntensity,
	FieldLaborCompliance,
	FieldCashFlowStability,
}

// IsWatched reports whether edits to field should schedule a re-run.
func IsWatched(field Field) bool {
	for _, w := range WatchedFields {
		if w == field {
			return true
		}
	}
	return false
}

var fields = []Spec{
	textSpec(FieldBusinessType, "Business type",
		func(in Input) string { return in.BusinessType },
		func(in *Input, v string) { in.BusinessType = v }),
	textSpec(FieldIndustry, "Industry",
		func(in Input) string { return in.Industry },
		func(in *Input, v string) { in.Industry = v }),
	numericSpec(FieldRevenue, "Annual revenue", 0, 100_000_000, 250_000,
		func(in Input) float64 { return in.Revenue },
		func(in *Input, v float64) { in.Revenue = v }),
	numericSpec(FieldDebtToIncomeRatio, "Debt-to-income ratio (%)", 0, 100, 1,
		func(in Input) float64 { return in.DebtToIncomeRatio },
		func(in *Input, v float64) { in.DebtToIncomeRatio = v }),
	textSpec(FieldCreditHistory, "Credit history",
		func(in Input) string { return in.CreditHistory },
		func(in *Input, v string) { in.CreditHistory = v }),
	textSpec(FieldEnergySource, "Energy source",
		func(in Input) string { return in.EnergySource },
		func(in *Input, v string) { in.EnergySource = v }),
	numericSpec(FieldCarbonIntensity, "Carbon intensity", 0, 100, 1,
		func(in Input) float64 { return in.CarbonIntensity },
		func(in *Input, v float64) { in.CarbonIntensity = v }),
	numericSpec(FieldLaborCompliance, "Labor compliance", 0, 100, 1,
		func(in Input) float64 { return in.LaborCompliance },
		func(in *Input, v float64) { in.LaborCompliance = v }),
	numericSpec(FieldCashFlowStability, "Cash-flow stability", 0, 100, 1,
		func(in Input) float64 { return in.CashFlowStability },
		func(in *Input, v float64) { in.CashFlowStability = v }),
	textSpec(FieldRegulatoryIssues, "Regulatory issues",
		func(in Input) string { return in.RegulatoryIssues },
		func(in *Input, v string) { in.RegulatoryIssues = v }),
}

// Fields returns the field registry in display order.
func Fields() []Spec {
	out := make([]Spec, len(fields))
	copy(out, fields)
	return out
}

// Lookup returns the spec for a field name.
func Lookup(field Field) (Spec, bool) {
	return lookup(field)
}

func lookup(field Field) (Spec, bool) {
	for _, spec := range fields {
		if spec.Name == field {
			return spec, true
		}
	}
	return Spec{}, false
}

func textSpec(name Field, label string, get func(Input) string, set func(*Input, string)) Spec {
	return Spec{Name: name, Label: label, Kind: KindText, text: get, setText: set}
}

func numericSpec(name Field, label string, min, max, step float64, get func(Input) float64, set func(*Input, float64)) Spec {
	return Spec{Name: name, Label: label, Kind: KindNumeric, Min: min, Max: max, Step: step, number: get, setNumber: set}
}
