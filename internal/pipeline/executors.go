package pipeline

import (
	"context"
	"fmt"

	"github.com/kingrea/greenlight/internal/stage"
)

// executor runs one stage against the artifacts its run has produced and
// returns the mutation that publishes its result.
type executor func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error)

var executors = map[StageID]executor{
	StageNormalize: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		out, err := stages.Normalize(ctx, run.input)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Normalized = &out }, nil
	},
	StageScoreFinancial: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		in := run.view()
		if err := requireInputs(StageScoreFinancial, in.Normalized != nil); err != nil {
			return nil, err
		}
		out, err := stages.ScoreFinancial(ctx, *in.Normalized)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Financial = &out }, nil
	},
	StageScoreSustainability: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		in := run.view()
		if err := requireInputs(StageScoreSustainability, in.Normalized != nil); err != nil {
			return nil, err
		}
		out, err := stages.ScoreSustainability(ctx, *in.Normalized)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Sustainability = &out }, nil
	},
	StageDecide: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		in := run.view()
		if err := requireInputs(StageDecide, in.Financial != nil, in.Sustainability != nil); err != nil {
			return nil, err
		}
		out, err := stages.Decide(ctx, *in.Financial, *in.Sustainability)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Decision = &out }, nil
	},
	StagePlanUplift: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		in := run.view()
		if err := requireInputs(StagePlanUplift, in.Sustainability != nil); err != nil {
			return nil, err
		}
		out, err := stages.PlanUplift(ctx, *in.Sustainability)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Uplift = &out }, nil
	},
	StageSimulateScenarios: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		in := run.view()
		if err := requireInputs(StageSimulateScenarios, in.Financial != nil, in.Sustainability != nil); err != nil {
			return nil, err
		}
		out, err := stages.SimulateScenarios(ctx, *in.Financial, *in.Sustainability)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Scenarios = out }, nil
	},
	StageSummarizeForReview: func(ctx context.Context, stages StageRunner, run *runScope) (func(*State), error) {
		in := run.view()
		if err := requireInputs(StageSummarizeForReview,
			in.Normalized != nil, in.Financial != nil, in.Sustainability != nil,
			in.Decision != nil, in.Uplift != nil, in.Scenarios != nil,
		); err != nil {
			return nil, err
		}
		out, err := stages.SummarizeForReview(ctx, stage.ReviewInputs{
			Normalized:     *in.Normalized,
			Financial:      *in.Financial,
			Sustainability: *in.Sustainability,
			Decision:       *in.Decision,
			Uplift:         *in.Uplift,
			Scenarios:      in.Scenarios,
		})
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.Review = &out }, nil
	},
}

func requireInputs(id StageID, present ...bool) error {
	for _, ok := range present {
		if !ok {
			return fmt.Errorf("pipeline: stage %s started before its inputs were produced", id)
		}
	}
	return nil
}
