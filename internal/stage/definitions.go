package stage

import (
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/kingrea/greenlight/internal/assessment"
	"github.com/kingrea/greenlight/internal/oracle"
)

const analystRole = "You are a green-finance credit analyst. Answer only with JSON matching the requested schema."

var promptFuncs = template.FuncMap{"json": toJSON}

func define(name, system, prompt string, schema *jsonschema.Schema) *definition {
	return &definition{
		name:   name,
		system: system,
		prompt: template.Must(template.New(name).Funcs(promptFuncs).Parse(prompt)),
		shape:  oracle.NewShape(name, schema),
	}
}

var normalizeDef = define(NameNormalize, analystRole, `Normalize this borrower profile into 0-100 features.
Higher is better for every feature except regulatoryRisk, where higher means more risk.

Business type: {{.Input.BusinessType}}
Industry: {{.Input.Industry}}
Annual revenue: {{printf "%.0f" .Input.Revenue}}
Debt-to-income ratio: {{printf "%.0f" .Input.DebtToIncomeRatio}}%
Credit history: {{.Input.CreditHistory}}
Energy source: {{.Input.EnergySource}}
Carbon intensity (0-100, higher is dirtier): {{printf "%.0f" .Input.CarbonIntensity}}
Labor compliance (0-100): {{printf "%.0f" .Input.LaborCompliance}}
Cash flow stability (0-100): {{printf "%.0f" .Input.CashFlowStability}}
Regulatory issues: {{.Input.RegulatoryIssues}}
`, oracle.Object(map[string]*jsonschema.Schema{
	"financial": oracle.Object(map[string]*jsonschema.Schema{
		"revenueScore":      oracle.Score(),
		"cashFlowStability": oracle.Score(),
		"debtRatio":         oracle.Score(),
		"creditScore":       oracle.Score(),
	}),
	"sustainability": oracle.Object(map[string]*jsonschema.Schema{
		"energyCleanliness": oracle.Score(),
		"carbonEfficiency":  oracle.Score(),
		"laborEthics":       oracle.Score(),
		"regulatoryRisk":    oracle.Score(),
	}),
}))

var scoreFinancialDef = define(NameScoreFinancial, analystRole, `Score the financial risk of a borrower from its normalized financial features.
Return a 0-100 score where higher is safer, a risk band, a per-feature breakdown and a one-sentence summary.

{{json .Normalized.Financial}}
`, oracle.Object(map[string]*jsonschema.Schema{
	"score": oracle.Score(),
	"band":  oracle.Enum(assessment.Bands...),
	"breakdown": oracle.Array(oracle.Object(map[string]*jsonschema.Schema{
		"name":  oracle.String(),
		"value": oracle.Number(),
	})),
	"summary": oracle.String(),
}))

var scoreSustainabilityDef = define(NameScoreSustainability, analystRole, `Score the sustainability of a borrower from its normalized ESG features.
Return a 0-100 score, one radar axis per relevant SDG (A is the borrower's value, fullMark the axis maximum) and an impact description.

{{json .Normalized.Sustainability}}
`, oracle.Object(map[string]*jsonschema.Schema{
	"score": oracle.Score(),
	"sdgs": oracle.Array(oracle.Object(map[string]*jsonschema.Schema{
		"subject":  oracle.String(),
		"A":        oracle.Number(),
		"fullMark": oracle.Number(),
	})),
	"impactDescription": oracle.String(),
}))

var decideDef = define(NameDecide, analystRole, `Decide on a green credit application.
Blend the financial and sustainability assessments into a 0-100 green credit score, choose a status and an APR adjustment such as "-0.50%".

Financial risk:
{{json .Financial}}

Sustainability risk:
{{json .Sustainability}}
`, oracle.Object(map[string]*jsonschema.Schema{
	"greenCreditScore": oracle.Score(),
	"status":           oracle.Enum(assessment.Statuses...),
	"justification":    oracle.String(),
	"aprAdjustment":    oracle.String(),
}))

var planUpliftDef = define(NamePlanUplift, analystRole, `Propose concrete actions that would raise this borrower's sustainability score.
Report the current score, the projected score after the actions, and each recommendation with its expected impact.

{{json .Sustainability}}
`, oracle.Object(map[string]*jsonschema.Schema{
	"currentScore":   oracle.Score(),
	"projectedScore": oracle.Score(),
	"recommendations": oracle.Array(oracle.Object(map[string]*jsonschema.Schema{
		"title":  oracle.String(),
		"action": oracle.String(),
		"impact": oracle.String(),
	})),
}))

var simulateScenariosDef = define(NameSimulateScenarios, analystRole, `Project this borrower under standard climate scenarios (for example Net Zero 2050, Delayed Transition, Current Policies).
For each scenario give the change in financial and sustainability score and the resulting total score.

Financial risk:
{{json .Financial}}

Sustainability risk:
{{json .Sustainability}}
`, oracle.Array(oracle.Object(map[string]*jsonschema.Schema{
	"scenario":             oracle.String(),
	"financialImpact":      oracle.Number(),
	"sustainabilityImpact": oracle.Number(),
	"totalScore":           oracle.Number(),
})))

var summarizeDef = define(NameSummarizeForReview, analystRole, `Summarize this green credit assessment for a human reviewer.
List the key drivers, ethical considerations, suggested next steps and typed risk highlights.

{{json .}}
`, oracle.Object(map[string]*jsonschema.Schema{
	"keyDrivers":            oracle.Array(oracle.String()),
	"ethicalConsiderations": oracle.String(),
	"suggestedNextSteps":    oracle.String(),
	"riskHighlights": oracle.Array(oracle.Object(map[string]*jsonschema.Schema{
		"type":    oracle.Enum(assessment.HighlightTypes...),
		"message": oracle.String(),
	})),
}))
