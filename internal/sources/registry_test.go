package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

func TestSnapshot_IsolatedFromLaterUpdates(t *testing.T) {
	r := NewRegistry()
	r.Register(answering("a", 0, false), ReliabilityConfig{
		BaseWeight:    0.4,
		DomainWeights: map[string]float64{"legal": 0.7},
		Enabled:       true,
	})

	snap := r.Snapshot()

	r.Update("a", func(cfg *ReliabilityConfig) {
		cfg.BaseWeight = 0.9
		cfg.DomainWeights["legal"] = 0.1
	})

	assert.InDelta(t, 0.4, snap.Weight("a", ""), 1e-9)
	assert.InDelta(t, 0.7, snap.Weight("a", "legal"), 1e-9)

	cfg, ok := r.Config("a")
	require.True(t, ok)
	assert.InDelta(t, 0.9, cfg.BaseWeight, 1e-9)
	assert.InDelta(t, 0.1, cfg.DomainWeights["legal"], 1e-9)
}

func TestRegister_CallerMapNotShared(t *testing.T) {
	r := NewRegistry()
	domains := map[string]float64{"legal": 0.7}
	r.Register(answering("a", 0, false), ReliabilityConfig{BaseWeight: 0.4, DomainWeights: domains, Enabled: true})

	domains["legal"] = 0.0

	cfg, _ := r.Config("a")
	assert.InDelta(t, 0.7, cfg.DomainWeights["legal"], 1e-9)
}

func TestSnapshot_Weight(t *testing.T) {
	r := NewRegistry()
	r.Register(answering("a", 0, false), ReliabilityConfig{
		BaseWeight:    1.7,
		DomainWeights: map[string]float64{"healthcare": -0.2},
		Enabled:       true,
	})
	snap := r.Snapshot()

	assert.InDelta(t, 1.0, snap.Weight("a", ""), 1e-9, "weights clamp to 1")
	assert.InDelta(t, 0.0, snap.Weight("a", "healthcare"), 1e-9, "weights clamp to 0")
	assert.InDelta(t, 1.0, snap.Weight("a", "legal"), 1e-9, "missing override falls back to base")
	assert.InDelta(t, UnconfiguredWeight, snap.Weight("unknown", ""), 1e-9)
	assert.True(t, snap.Enabled("unknown"))
}

func TestRegistry_Update_Unknown(t *testing.T) {
	r := NewRegistry()
	called := false
	ok := r.Update("ghost", func(cfg *ReliabilityConfig) { called = true })
	assert.False(t, ok)
	assert.False(t, called)
}

func TestStepModel(t *testing.T) {
	m := StepModel{Step: ReliabilityStep}
	assert.InDelta(t, 0.55, m.Adjust(0.5, model.FeedbackPositive), 1e-9)
	assert.InDelta(t, 0.45, m.Adjust(0.5, model.FeedbackNegative), 1e-9)
	assert.InDelta(t, 1.0, m.Adjust(0.98, model.FeedbackPositive), 1e-9)
	assert.InDelta(t, 0.0, m.Adjust(0.02, model.FeedbackNegative), 1e-9)
}

func TestDefaultReliabilityConfig(t *testing.T) {
	cfg := DefaultReliabilityConfig(85)
	assert.InDelta(t, 0.85, cfg.BaseWeight, 1e-9)
	assert.True(t, cfg.Enabled)
	assert.NotNil(t, cfg.DomainWeights)

	assert.InDelta(t, 1.0, DefaultReliabilityConfig(150).BaseWeight, 1e-9)
}
