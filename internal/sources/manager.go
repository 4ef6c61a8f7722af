package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	// BestSourceThreshold is the confidence a single adapter must exceed for
	// QueryBest to skip full consensus
	BestSourceThreshold = 70

	// NoSourcesEvidence is the fallback evidence when no adapter answered
	NoSourcesEvidence = "No external sources available for verification"

	// minQueryDuration is the floor reported for any consolidation
	minQueryDuration = time.Millisecond

	defaultMaxParallel = 4
)

// Manager queries registered adapters and consolidates their verdicts
type Manager struct {
	registry    *Registry
	reliability ReliabilityModel
	logger      *zap.Logger
	maxParallel int
	fallback    atomic.Bool
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReliabilityModel replaces the feedback model
func WithReliabilityModel(rm ReliabilityModel) Option {
	return func(m *Manager) {
		if rm != nil {
			m.reliability = rm
		}
	}
}

// WithMaxParallel bounds concurrent adapter queries
func WithMaxParallel(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxParallel = n
		}
	}
}

// NewManager creates a manager over registry. A nil registry starts empty.
// Fallback evidence is enabled by default.
func NewManager(registry *Registry, opts ...Option) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	m := &Manager{
		registry:    registry,
		reliability: DefaultReliabilityModel(),
		logger:      zap.NewNop(),
		maxParallel: defaultMaxParallel,
	}
	m.fallback.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the underlying registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Register adds an adapter. A nil config is derived from the adapter's
// base reliability.
func (m *Manager) Register(a Adapter, cfg *ReliabilityConfig) {
	c := DefaultReliabilityConfig(a.Reliability())
	if cfg != nil {
		c = *cfg
	}
	m.registry.Register(a, c)
	m.logger.Debug("registered source",
		zap.String("adapter", a.Name()),
		zap.Float64("base_weight", c.BaseWeight),
		zap.Bool("enabled", c.Enabled))
}

// Unregister removes an adapter and its config; unknown names are a no-op
func (m *Manager) Unregister(name string) {
	m.registry.Unregister(name)
}

// SetFallbackEnabled toggles the fallback evidence on empty results
func (m *Manager) SetFallbackEnabled(enabled bool) {
	m.fallback.Store(enabled)
}

// FallbackEnabled reports whether fallback evidence is emitted
func (m *Manager) FallbackEnabled() bool {
	return m.fallback.Load()
}

// AdjustReliability applies feedback to the adapter's base weight, or to its
// domain weight when domain is set (seeded from the base weight). Unknown
// names are a no-op.
func (m *Manager) AdjustReliability(name string, fb model.Feedback, domain string) {
	updated := m.registry.Update(name, func(cfg *ReliabilityConfig) {
		if domain == "" {
			cfg.BaseWeight = model.ClampWeight(m.reliability.Adjust(cfg.BaseWeight, fb))
			return
		}
		current, ok := cfg.DomainWeights[domain]
		if !ok {
			current = cfg.BaseWeight
		}
		cfg.DomainWeights[domain] = model.ClampWeight(m.reliability.Adjust(current, fb))
	})
	if !updated {
		m.logger.Debug("reliability feedback for unknown source ignored", zap.String("adapter", name))
		return
	}
	m.logger.Debug("adjusted reliability",
		zap.String("adapter", name),
		zap.String("feedback", fb.String()),
		zap.String("domain", domain))
}

// outcome is one adapter's contribution to a consolidation
type outcome struct {
	name     string
	result   model.SourceResult
	ok       bool
	reason   string
	duration time.Duration
}

// QueryAll queries every registered adapter and consolidates the answers
func (m *Manager) QueryAll(ctx context.Context, q model.SourceQuery) model.ConsolidatedResult {
	start := time.Now()
	snap := m.registry.Snapshot()
	outcomes := m.collect(ctx, snap, q, nil)
	return m.consolidate(snap, q.Domain, outcomes, start)
}

// QueryBest tries adapters in descending weight order and returns the first
// successful answer alone when its confidence exceeds BestSourceThreshold.
// Otherwise it falls through to full consensus, reusing answers already fetched.
func (m *Manager) QueryBest(ctx context.Context, q model.SourceQuery) model.ConsolidatedResult {
	start := time.Now()
	snap := m.registry.Snapshot()

	ordered := make([]Adapter, len(snap.Adapters))
	copy(ordered, snap.Adapters)
	sort.SliceStable(ordered, func(i, j int) bool {
		return snap.Weight(ordered[i].Name(), q.Domain) > snap.Weight(ordered[j].Name(), q.Domain)
	})

	prefetched := make(map[string]outcome)
	for _, a := range ordered {
		out := m.invoke(ctx, snap, a, q)
		prefetched[out.name] = out
		if !out.ok {
			continue
		}
		if out.result.Confidence > BestSourceThreshold {
			return m.single(out, start)
		}
		break
	}

	outcomes := m.collect(ctx, snap, q, prefetched)
	return m.consolidate(snap, q.Domain, outcomes, start)
}

// collect gathers one outcome per adapter in registration order, querying
// the adapters missing from prefetched with bounded concurrency
func (m *Manager) collect(ctx context.Context, snap Snapshot, q model.SourceQuery, prefetched map[string]outcome) []outcome {
	outcomes := make([]outcome, len(snap.Adapters))
	sem := make(chan struct{}, m.maxParallel)
	var wg sync.WaitGroup

	for i, a := range snap.Adapters {
		if out, ok := prefetched[a.Name()]; ok {
			outcomes[i] = out
			continue
		}
		wg.Add(1)
		go func(idx int, a Adapter) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				outcomes[idx] = m.invoke(ctx, snap, a, q)
			case <-ctx.Done():
				outcomes[idx] = outcome{name: a.Name(), reason: outcomeCancelled}
				adapterQueriesTotal.WithLabelValues(a.Name(), outcomeCancelled).Inc()
			}
		}(i, a)
	}

	wg.Wait()
	return outcomes
}

// invoke checks availability and queries one adapter under the query timeout.
// Errors, panics and timeouts become an unavailable outcome.
func (m *Manager) invoke(ctx context.Context, snap Snapshot, a Adapter, q model.SourceQuery) outcome {
	name := a.Name()
	out := outcome{name: name}

	defer func() {
		adapterQueriesTotal.WithLabelValues(name, out.reason).Inc()
		if out.ok {
			adapterQuerySeconds.WithLabelValues(name).Observe(out.duration.Seconds())
		}
	}()

	if !snap.Enabled(name) {
		out.reason = outcomeDisabled
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, q.EffectiveTimeout())
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		res := outcome{name: name}
		defer func() {
			if r := recover(); r != nil {
				res.ok = false
				res.reason = outcomePanic
				m.logger.Warn("source adapter panicked", zap.String("adapter", name), zap.Any("panic", r))
				done <- res
			}
		}()

		if !a.IsAvailable(callCtx) {
			res.reason = outcomeUnavailable
			done <- res
			return
		}

		result, err := a.Query(callCtx, q)
		if err != nil {
			res.reason = outcomeError
			if errors.Is(err, context.DeadlineExceeded) {
				res.reason = outcomeTimeout
			}
			m.logger.Warn("source query failed", zap.String("adapter", name), zap.Error(err))
			done <- res
			return
		}

		res.result = result
		res.ok = true
		res.reason = outcomeOK
		done <- res
	}()

	select {
	case res := <-done:
		out = res
	case <-callCtx.Done():
		out.reason = outcomeTimeout
		if ctx.Err() != nil {
			out.reason = outcomeCancelled
		}
		m.logger.Warn("source query abandoned",
			zap.String("adapter", name),
			zap.String("reason", out.reason),
			zap.Duration("timeout", q.EffectiveTimeout()))
	}

	out.duration = time.Since(start)
	return out
}

// consolidate merges outcomes into one weighted verdict
func (m *Manager) consolidate(snap Snapshot, domain string, outcomes []outcome, start time.Time) model.ConsolidatedResult {
	res := model.ConsolidatedResult{
		Sources:            []model.Source{},
		Evidence:           []string{},
		Contradictions:     []string{},
		SourceWeights:      map[string]float64{},
		AvailableSources:   []string{},
		UnavailableSources: []string{},
	}

	var (
		sourceLists    [][]model.Source
		evidenceLists  [][]string
		contradictions [][]string
		totalWeight    float64
		weightedConf   float64
		supportWeight  float64
	)

	for _, out := range outcomes {
		if !out.ok {
			res.UnavailableSources = append(res.UnavailableSources, out.name)
			continue
		}
		res.AvailableSources = append(res.AvailableSources, out.name)

		w := snap.Weight(out.name, domain)
		res.SourceWeights[out.name] = w
		totalWeight += w
		weightedConf += float64(model.ClampScore(out.result.Confidence)) * w
		if out.result.IsSupported {
			supportWeight += w
		}

		sourceLists = append(sourceLists, out.result.Sources)
		evidenceLists = append(evidenceLists, out.result.Evidence)
		contradictions = append(contradictions, out.result.Contradictions)
	}

	res.QueryDuration = elapsedSince(start)

	if len(res.AvailableSources) == 0 {
		if m.fallback.Load() {
			res.Evidence = []string{NoSourcesEvidence}
		}
		consolidationsTotal.WithLabelValues(pathNoSources).Inc()
		m.logger.Debug("no external sources answered", zap.Strings("unavailable", res.UnavailableSources))
		return res
	}

	if totalWeight > 0 {
		res.OverallConfidence = model.RoundScore(weightedConf / totalWeight)
	}
	res.IsSupported = supportWeight > totalWeight/2
	res.Sources = model.DedupeSources(sourceLists...)
	res.Evidence = model.DedupeStrings(evidenceLists...)
	res.Contradictions = model.DedupeStrings(contradictions...)

	consolidationsTotal.WithLabelValues(pathAll).Inc()
	m.logger.Debug("consolidated sources",
		zap.Int("confidence", res.OverallConfidence),
		zap.Bool("supported", res.IsSupported),
		zap.Strings("available", res.AvailableSources),
		zap.Strings("unavailable", res.UnavailableSources),
		zap.Duration("duration", res.QueryDuration))
	return res
}

// single builds the fast-path result from one adapter with weight 1.0
func (m *Manager) single(out outcome, start time.Time) model.ConsolidatedResult {
	consolidationsTotal.WithLabelValues(pathBest).Inc()
	m.logger.Debug("best source short-circuit",
		zap.String("adapter", out.name),
		zap.Int("confidence", out.result.Confidence))

	return model.ConsolidatedResult{
		Sources:            model.DedupeSources(out.result.Sources),
		OverallConfidence:  model.ClampScore(out.result.Confidence),
		IsSupported:        out.result.IsSupported,
		Evidence:           model.DedupeStrings(out.result.Evidence),
		Contradictions:     model.DedupeStrings(out.result.Contradictions),
		SourceWeights:      map[string]float64{out.name: 1.0},
		AvailableSources:   []string{out.name},
		UnavailableSources: []string{},
		QueryDuration:      elapsedSince(start),
	}
}

// AdapterReport is the diagnostic view of one adapter
type AdapterReport struct {
	Name          string               `json:"name"`
	Reliability   int                  `json:"reliability"`
	Domains       []string             `json:"domains"`
	Enabled       bool                 `json:"enabled"`
	Available     bool                 `json:"available"`
	BaseWeight    float64              `json:"base_weight"`
	DomainWeights map[string]float64   `json:"domain_weights,omitempty"`
	Results       []model.SourceResult `json:"results,omitempty"`
	Error         string               `json:"error,omitempty"`
	Duration      time.Duration        `json:"duration"`
}

// Probe reports availability, weights and answers for every adapter,
// answering all queries per adapter through QueryEach
func (m *Manager) Probe(ctx context.Context, queries []model.SourceQuery) []AdapterReport {
	snap := m.registry.Snapshot()
	reports := make([]AdapterReport, len(snap.Adapters))

	for i, a := range snap.Adapters {
		cfg, _ := snap.Config(a.Name())
		report := AdapterReport{
			Name:          a.Name(),
			Reliability:   a.Reliability(),
			Domains:       a.SupportedDomains(),
			Enabled:       cfg.Enabled,
			BaseWeight:    cfg.BaseWeight,
			DomainWeights: cfg.DomainWeights,
		}

		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					report.Available = false
					report.Error = fmt.Sprintf("panic: %v", r)
				}
			}()
			report.Available = a.IsAvailable(ctx)
			if !report.Available || !report.Enabled {
				return
			}
			results, err := QueryEach(ctx, a, queries)
			if err != nil {
				report.Error = err.Error()
				return
			}
			report.Results = results
		}()
		report.Duration = elapsedSince(start)

		reports[i] = report
	}

	return reports
}

func elapsedSince(start time.Time) time.Duration {
	d := time.Since(start)
	if d < minQueryDuration {
		return minQueryDuration
	}
	return d
}
