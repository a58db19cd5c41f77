package pipeline

import (
	"time"

	"github.com/kingrea/greenlight/internal/assessment"
)

// Phase is the coarse lifecycle of the most recent run.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Mode records who started a run and therefore how its failures surface.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeBackground  Mode = "background"
)

// StageState tracks a single stage within the active run.
type StageState string

const (
	StagePending   StageState = "pending"
	StageRunning   StageState = "running"
	StageComplete  StageState = "complete"
	StageFailed    StageState = "failed"
	StageCancelled StageState = "cancelled"
)

// StageStatus is the per-stage progress shown while a run reveals results.
type StageStatus struct {
	State      StageState `json:"state"`
	Generation uint64     `json:"generation"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// State is the single owned record of pipeline results. Artifacts stay nil
// until a run of the active generation publishes them and survive failed or
// superseded runs untouched.
type State struct {
	Phase      Phase                   `json:"phase"`
	Generation uint64                  `json:"generation"`
	RunID      string                  `json:"run_id,omitempty"`
	Mode       Mode                    `json:"mode,omitempty"`
	Stages     map[StageID]StageStatus `json:"stages,omitempty"`
	Failure    *StageFailure           `json:"failure,omitempty"`
	UpdatedAt  time.Time               `json:"updated_at"`

	Normalized     *assessment.NormalizedData     `json:"normalized"`
	Financial      *assessment.FinancialRisk      `json:"financial"`
	Sustainability *assessment.SustainabilityRisk `json:"sustainability"`
	Decision       *assessment.Decision           `json:"decision"`
	Uplift         *assessment.UpliftPlan         `json:"uplift"`
	Scenarios      []assessment.ClimateScenario   `json:"scenarios"`
	Review         *assessment.ReviewSummary      `json:"review"`
}

// Complete reports whether all seven artifacts are present.
func (s State) Complete() bool {
	return s.Normalized != nil && s.Financial != nil && s.Sustainability != nil &&
		s.Decision != nil && s.Uplift != nil && s.Scenarios != nil && s.Review != nil
}

// Clone returns a deep copy that shares nothing with s.
func (s State) Clone() State {
	out := s
	out.Stages = cloneStages(s.Stages)
	if s.Failure != nil {
		failure := *s.Failure
		out.Failure = &failure
	}
	out.Normalized = s.Normalized.Clone()
	out.Financial = s.Financial.Clone()
	out.Sustainability = s.Sustainability.Clone()
	out.Decision = s.Decision.Clone()
	out.Uplift = s.Uplift.Clone()
	out.Scenarios = assessment.CloneScenarios(s.Scenarios)
	out.Review = s.Review.Clone()
	return out
}

func cloneStages(values map[StageID]StageStatus) map[StageID]StageStatus {
	if values == nil {
		return nil
	}
	out := make(map[StageID]StageStatus, len(values))
	for id, status := range values {
		out[id] = status
	}
	return out
}
