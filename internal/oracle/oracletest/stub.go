// Package oracletest provides a scripted oracle client for tests.
package oracletest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kingrea/greenlight/internal/oracle"
)

// Canned holds a valid response for every stage.
var Canned = map[string]string{
	"normalize": `{"financial":{"revenueScore":50,"cashFlowStability":75,"debtRatio":65,"creditScore":70},
		"sustainability":{"energyCleanliness":45,"carbonEfficiency":20,"laborEthics":90,"regulatoryRisk":10}}`,
	"scoreFinancial": `{"score":65,"band":"Medium","breakdown":[{"name":"Revenue","value":50},{"name":"Leverage","value":65}],
		"summary":"Moderate leverage with stable cash flow."}`,
	"scoreSustainability": `{"score":48,"sdgs":[{"subject":"Climate Action","A":20,"fullMark":100},{"subject":"Decent Work","A":90,"fullMark":100}],
		"impactDescription":"High carbon intensity offsets strong labor practices."}`,
	"decide": `{"greenCreditScore":56,"status":"Conditional","justification":"Financially sound but carbon intensive.","aprAdjustment":"+0.00%"}`,
	"planUplift": `{"currentScore":48,"projectedScore":66,"recommendations":[{"title":"Install solar","action":"Add 200kW rooftop PV.","impact":"+12 points"}]}`,
	"simulateScenarios": `[{"scenario":"Net Zero 2050","financialImpact":-3,"sustainabilityImpact":5,"totalScore":57},
		{"scenario":"Current Policies","financialImpact":-8,"sustainabilityImpact":-4,"totalScore":50}]`,
	"summarizeForReview": `{"keyDrivers":["Carbon intensity","Stable cash flow"],"ethicalConsiderations":"Verify self-reported labor data.",
		"suggestedNextSteps":"Agree an emissions reduction covenant.","riskHighlights":[{"type":"Warning","message":"Carbon intensity is high."}]}`,
}

// Hook runs before a stub answers. Returning an error fails the call; it may
// block to let tests order concurrent stages.
type Hook func(ctx context.Context, req oracle.Request) error

// Stub answers from a table of payloads and records every request.
type Stub struct {
	mu        sync.Mutex
	responses map[string]string
	errors    map[string]error
	hook      Hook
	calls     []oracle.Request
}

// New returns a stub preloaded with Canned.
func New() *Stub {
	s := &Stub{responses: make(map[string]string, len(Canned)), errors: map[string]error{}}
	for stage, payload := range Canned {
		s.responses[stage] = payload
	}
	return s
}

// Set replaces the payload for stage.
func (s *Stub) Set(stage, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[stage] = payload
}

// Fail makes every call for stage return err.
func (s *Stub) Fail(stage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[stage] = err
}

// SetHook installs h for subsequent calls.
func (s *Stub) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Infer implements oracle.Client.
func (s *Stub) Infer(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	hook := s.hook
	payload, ok := s.responses[req.Stage]
	failure := s.errors[req.Stage]
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, req); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, oracle.Transport(req.Stage, fmt.Errorf("no canned response"))
	}
	return json.RawMessage(payload), nil
}

// Calls returns a copy of the recorded requests.
func (s *Stub) Calls() []oracle.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]oracle.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count reports how many calls stage received.
func (s *Stub) Count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if call.Stage == stage {
			n++
		}
	}
	return n
}
