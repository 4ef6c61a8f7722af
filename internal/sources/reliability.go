package sources

import (
	"maps"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	// ReliabilityStep is the weight change per feedback signal
	ReliabilityStep = 0.05

	// UnconfiguredWeight applies to a source with no reliability config
	UnconfiguredWeight = 0.5
)

// ReliabilityConfig is the trust configuration of one source.
// Weights are in [0,1].
type ReliabilityConfig struct {
	BaseWeight    float64            `json:"base_weight" yaml:"base_weight"`
	DomainWeights map[string]float64 `json:"domain_weights,omitempty" yaml:"domain_weights,omitempty"`
	Enabled       bool               `json:"enabled" yaml:"enabled"`
}

// DefaultReliabilityConfig derives a config from an adapter's 0-100 reliability
func DefaultReliabilityConfig(reliability int) ReliabilityConfig {
	return ReliabilityConfig{
		BaseWeight:    model.ClampWeight(float64(reliability) / 100),
		DomainWeights: map[string]float64{},
		Enabled:       true,
	}
}

// WeightFor returns the domain override when one exists, else the base weight
func (c ReliabilityConfig) WeightFor(domain string) float64 {
	if domain != "" {
		if w, ok := c.DomainWeights[domain]; ok {
			return model.ClampWeight(w)
		}
	}
	return model.ClampWeight(c.BaseWeight)
}

// clone returns a deep copy so snapshots never share the domain map
func (c ReliabilityConfig) clone() ReliabilityConfig {
	out := c
	out.DomainWeights = maps.Clone(c.DomainWeights)
	if out.DomainWeights == nil {
		out.DomainWeights = map[string]float64{}
	}
	return out
}

// ReliabilityModel turns feedback into a new reliability weight
type ReliabilityModel interface {
	Adjust(current float64, fb model.Feedback) float64
}

// StepModel moves the weight a fixed step towards the feedback
type StepModel struct {
	Step float64
}

// DefaultReliabilityModel is the fixed-step model used unless overridden
func DefaultReliabilityModel() ReliabilityModel {
	return StepModel{Step: ReliabilityStep}
}

func (m StepModel) Adjust(current float64, fb model.Feedback) float64 {
	return model.ClampWeight(current + fb.Sign()*m.Step)
}
