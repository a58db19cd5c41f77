package assessment

// The Clone helpers return deep copies so callers reading pipeline state can
// never alias the slices held by the orchestrator.

func (f *FinancialRisk) Clone() *FinancialRisk {
	if f == nil {
		return nil
	}
	out := *f
	out.Breakdown = cloneSlice(f.Breakdown)
	return &out
}

func (s *SustainabilityRisk) Clone() *SustainabilityRisk {
	if s == nil {
		return nil
	}
	out := *s
	out.SDGs = cloneSlice(s.SDGs)
	return &out
}

func (u *UpliftPlan) Clone() *UpliftPlan {
	if u == nil {
		return nil
	}
	out := *u
	out.Recommendations = cloneSlice(u.Recommendations)
	return &out
}

func (r *ReviewSummary) Clone() *ReviewSummary {
	if r == nil {
		return nil
	}
	out := *r
	out.KeyDrivers = cloneSlice(r.KeyDrivers)
	out.RiskHighlights = cloneSlice(r.RiskHighlights)
	return &out
}

func (n *NormalizedData) Clone() *NormalizedData {
	if n == nil {
		return nil
	}
	out := *n
	return &out
}

func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	out := *d
	return &out
}

// CloneScenarios copies a scenario slice, preserving nil.
func CloneScenarios(in []ClimateScenario) []ClimateScenario {
	return cloneSlice(in)
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
