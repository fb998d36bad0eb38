package decision

import "math"

// Weights are the additive confidence scoring knobs. They are hand-tuned
// policy, not calibrated probabilities; keep them in one place so tuning
// never needs a code change.
type Weights struct {
	Base             float64 `json:"base"`
	PerSource        float64 `json:"per_source"`
	SourceBonusCap   float64 `json:"source_bonus_cap"`
	ZeroSources      float64 `json:"zero_sources"`
	HighRisk         float64 `json:"high_risk"`
	MediumRisk       float64 `json:"medium_risk"`
	HighRiskCategory float64 `json:"high_risk_category"`
	SimpleMessage    float64 `json:"simple_message"`
	MissingFields    float64 `json:"missing_fields"`
}

// DefaultWeights are the hand-tuned production defaults. Treat them as
// a policy knob, not a law.
func DefaultWeights() Weights {
	return Weights{
		Base:             0.4,
		PerSource:        0.15,
		SourceBonusCap:   0.4,
		ZeroSources:      -0.25,
		HighRisk:         -0.35,
		MediumRisk:       -0.15,
		HighRiskCategory: -0.25,
		SimpleMessage:    0.05,
		MissingFields:    -0.2,
	}
}

func clampConfidence(v float64) float64 {
	clamped := math.Max(0, math.Min(1, v))

	// Two decimals, matching what gets persisted alongside the message.
	return math.Round(clamped*100) / 100
}
