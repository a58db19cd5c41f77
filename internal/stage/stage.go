// Package stage adapts each scoring step to a single oracle call. An adapter
// renders its prompt, declares the shape it expects back, and refuses any
// payload that does not match it. Nothing here retries or repairs.
package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/kingrea/greenlight/internal/assessment"
	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/oracle"
)

// Stage names as reported to the oracle, the orchestrator and observers.
const (
	NameNormalize           = "normalize"
	NameScoreFinancial      = "scoreFinancial"
	NameScoreSustainability = "scoreSustainability"
	NameDecide              = "decide"
	NamePlanUplift          = "planUplift"
	NameSimulateScenarios   = "simulateScenarios"
	NameSummarizeForReview  = "summarizeForReview"
)

// Runner executes stage adapters against an oracle client.
type Runner struct {
	Client oracle.Client
}

// NewRunner returns a Runner bound to client.
func NewRunner(client oracle.Client) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("stage: oracle client is required")
	}
	return &Runner{Client: client}, nil
}

// Inputs of the individual stages. They are handed to the prompt template and
// sent as structured Data, so the json tags are part of the script contract.

type normalizeData struct {
	Input borrower.Input `json:"input"`
}

type normalizedData struct {
	Normalized assessment.NormalizedData `json:"normalized"`
}

type riskData struct {
	Financial      assessment.FinancialRisk      `json:"financial"`
	Sustainability assessment.SustainabilityRisk `json:"sustainability"`
}

type upliftData struct {
	Sustainability assessment.SustainabilityRisk `json:"sustainability"`
}

// ReviewInputs bundles the six artifacts the review stage synthesizes.
type ReviewInputs struct {
	Normalized     assessment.NormalizedData    `json:"normalized"`
	Financial      assessment.FinancialRisk      `json:"financial"`
	Sustainability assessment.SustainabilityRisk `json:"sustainability"`
	Decision       assessment.Decision           `json:"decision"`
	Uplift         assessment.UpliftPlan         `json:"uplift"`
	Scenarios      []assessment.ClimateScenario  `json:"scenarios"`
}

// Normalize maps raw borrower attributes onto the eight 0–100 features.
func (r *Runner) Normalize(ctx context.Context, in borrower.Input) (assessment.NormalizedData, error) {
	return call(ctx, r, normalizeDef, normalizeData{Input: in}, assessment.NormalizedData.Validate)
}

// ScoreFinancial grades the financial features.
func (r *Runner) ScoreFinancial(ctx context.Context, n assessment.NormalizedData) (assessment.FinancialRisk, error) {
	return call(ctx, r, scoreFinancialDef, normalizedData{Normalized: n}, assessment.FinancialRisk.Validate)
}

// ScoreSustainability grades the ESG features.
func (r *Runner) ScoreSustainability(ctx context.Context, n assessment.NormalizedData) (assessment.SustainabilityRisk, error) {
	return call(ctx, r, scoreSustainabilityDef, normalizedData{Normalized: n}, assessment.SustainabilityRisk.Validate)
}

// Decide combines both risk scores into a lending decision.
func (r *Runner) Decide(ctx context.Context, f assessment.FinancialRisk, s assessment.SustainabilityRisk) (assessment.Decision, error) {
	return call(ctx, r, decideDef, riskData{Financial: f, Sustainability: s}, assessment.Decision.Validate)
}

// PlanUplift proposes actions that would raise the sustainability score.
func (r *Runner) PlanUplift(ctx context.Context, s assessment.SustainabilityRisk) (assessment.UpliftPlan, error) {
	return call(ctx, r, planUpliftDef, upliftData{Sustainability: s}, assessment.UpliftPlan.Validate)
}

// SimulateScenarios projects both scores under climate pathways.
func (r *Runner) SimulateScenarios(ctx context.Context, f assessment.FinancialRisk, s assessment.SustainabilityRisk) ([]assessment.ClimateScenario, error) {
	out, err := call(ctx, r, simulateScenariosDef, riskData{Financial: f, Sustainability: s}, assessment.ValidateScenarios)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []assessment.ClimateScenario{}
	}
	return out, nil
}

// SummarizeForReview produces the reviewer-facing synthesis.
func (r *Runner) SummarizeForReview(ctx context.Context, in ReviewInputs) (assessment.ReviewSummary, error) {
	return call(ctx, r, summarizeDef, in, assessment.ReviewSummary.Validate)
}

// definition is the fixed contract of one stage.
type definition struct {
	name   string
	system string
	prompt *template.Template
	shape  *oracle.Shape
}

func (d *definition) render(data any) (string, error) {
	var buf bytes.Buffer
	if err := d.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("stage %s: render prompt: %w", d.name, err)
	}
	return buf.String(), nil
}

// call performs the single oracle round trip of a stage and fails closed on
// any shape or artifact mismatch.
func call[T any](ctx context.Context, r *Runner, def *definition, data any, validate func(T) error) (T, error) {
	var zero T
	if r == nil || r.Client == nil {
		return zero, fmt.Errorf("stage %s: oracle client is required", def.name)
	}
	prompt, err := def.render(data)
	if err != nil {
		return zero, err
	}
	raw, err := r.Client.Infer(ctx, oracle.Request{
		Stage:  def.name,
		System: def.system,
		Prompt: prompt,
		Data:   data,
		Shape:  def.shape,
	})
	if err != nil {
		return zero, oracle.Classify(def.name, err)
	}
	var out T
	if err := def.shape.Decode(def.name, raw, &out); err != nil {
		return zero, err
	}
	if err := validate(out); err != nil {
		return zero, oracle.Validation(def.name, err)
	}
	return out, nil
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
