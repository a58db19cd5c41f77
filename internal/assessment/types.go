// Package assessment holds the artifacts produced by each scoring stage.
// Artifacts are plain values; once a stage returns one it is never mutated.
package assessment

// NormalizedData carries the eight 0–100 features both risk scorers consume.
type NormalizedData struct {
	Financial      FinancialFeatures      `json:"financial" yaml:"financial"`
	Sustainability SustainabilityFeatures `json:"sustainability" yaml:"sustainability"`
}

// FinancialFeatures groups the normalized financial indicators.
type FinancialFeatures struct {
	RevenueScore      float64 `json:"revenueScore" yaml:"revenue_score"`
	CashFlowStability float64 `json:"cashFlowStability" yaml:"cash_flow_stability"`
	DebtRatio         float64 `json:"debtRatio" yaml:"debt_ratio"`
	CreditScore       float64 `json:"creditScore" yaml:"credit_score"`
}

// SustainabilityFeatures groups the normalized ESG indicators.
type SustainabilityFeatures struct {
	EnergyCleanliness float64 `json:"energyCleanliness" yaml:"energy_cleanliness"`
	CarbonEfficiency  float64 `json:"carbonEfficiency" yaml:"carbon_efficiency"`
	LaborEthics       float64 `json:"laborEthics" yaml:"labor_ethics"`
	RegulatoryRisk    float64 `json:"regulatoryRisk" yaml:"regulatory_risk"`
}

// Band is the categorical financial risk level.
type Band string

const (
	BandLow    Band = "Low"
	BandMedium Band = "Medium"
	BandHigh   Band = "High"
)

// Bands lists the accepted financial risk bands.
var Bands = []Band{BandLow, BandMedium, BandHigh}

// FinancialRisk is the output of the financial scorer.
type FinancialRisk struct {
	Score     float64          `json:"score" yaml:"score"`
	Band      Band             `json:"band" yaml:"band"`
	Breakdown []BreakdownEntry `json:"breakdown" yaml:"breakdown"`
	Summary   string           `json:"summary" yaml:"summary"`
}

// BreakdownEntry is one named contribution to the financial score.
type BreakdownEntry struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// SustainabilityRisk is the output of the sustainability scorer.
type SustainabilityRisk struct {
	Score             float64    `json:"score" yaml:"score"`
	SDGs              []SDGScore `json:"sdgs" yaml:"sdgs"`
	ImpactDescription string     `json:"impactDescription" yaml:"impact_description"`
}

// SDGScore is one axis of the sustainable-development-goal radar.
type SDGScore struct {
	Subject  string  `json:"subject" yaml:"subject"`
	A        float64 `json:"A" yaml:"a"`
	FullMark float64 `json:"fullMark" yaml:"full_mark"`
}

// Status is the lending outcome.
type Status string

const (
	StatusGreenApproved Status = "Green Approved"
	StatusConditional   Status = "Conditional"
	StatusRejected      Status = "Rejected"
)

// Statuses lists the accepted decision outcomes.
var Statuses = []Status{StatusGreenApproved, StatusConditional, StatusRejected}

// Decision is the composite lending decision.
type Decision struct {
	GreenCreditScore float64 `json:"greenCreditScore" yaml:"green_credit_score"`
	Status           Status  `json:"status" yaml:"status"`
	Justification    string  `json:"justification" yaml:"justification"`
	APRAdjustment    string  `json:"aprAdjustment" yaml:"apr_adjustment"`
}

// UpliftPlan describes how the borrower could raise its sustainability score.
type UpliftPlan struct {
	CurrentScore    float64          `json:"currentScore" yaml:"current_score"`
	ProjectedScore  float64          `json:"projectedScore" yaml:"projected_score"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
}

// Recommendation is a single uplift action.
type Recommendation struct {
	Title  string `json:"title" yaml:"title"`
	Action string `json:"action" yaml:"action"`
	Impact string `json:"impact" yaml:"impact"`
}

// ClimateScenario projects the assessment under one climate pathway.
type ClimateScenario struct {
	Scenario             string  `json:"scenario" yaml:"scenario"`
	FinancialImpact      float64 `json:"financialImpact" yaml:"financial_impact"`
	SustainabilityImpact float64 `json:"sustainabilityImpact" yaml:"sustainability_impact"`
	TotalScore           float64 `json:"totalScore" yaml:"total_score"`
}

// HighlightType classifies a review highlight.
type HighlightType string

const (
	HighlightWarning HighlightType = "Warning"
	HighlightInfo    HighlightType = "Info"
	HighlightSuccess HighlightType = "Success"
)

// HighlightTypes lists the accepted highlight categories.
var HighlightTypes = []HighlightType{HighlightWarning, HighlightInfo, HighlightSuccess}

// ReviewSummary is the final human-readable synthesis.
type ReviewSummary struct {
	KeyDrivers            []string    `json:"keyDrivers" yaml:"key_drivers"`
	EthicalConsiderations string      `json:"ethicalConsiderations" yaml:"ethical_considerations"`
	SuggestedNextSteps    string      `json:"suggestedNextSteps" yaml:"suggested_next_steps"`
	RiskHighlights        []Highlight `json:"riskHighlights" yaml:"risk_highlights"`
}

// Highlight is a typed message surfaced on the review step.
type Highlight struct {
	Type    HighlightType `json:"type" yaml:"type"`
	Message string        `json:"message" yaml:"message"`
}
