package model

import "time"

// DefaultQueryTimeout bounds a single adapter query when the query sets none
const DefaultQueryTimeout = 5 * time.Second

// SourceQuery asks knowledge sources about one statement
type SourceQuery struct {
	Statement  string        `json:"statement"`
	Domain     string        `json:"domain,omitempty"`
	MaxResults int           `json:"max_results,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// EffectiveTimeout returns the query timeout or the default when unset
func (q SourceQuery) EffectiveTimeout() time.Duration {
	if q.Timeout <= 0 {
		return DefaultQueryTimeout
	}
	return q.Timeout
}

// SourceResult is one adapter's independent verdict on a query
type SourceResult struct {
	Sources        []Source      `json:"sources"`
	Confidence     int           `json:"confidence"` // 0-100
	QueryDuration  time.Duration `json:"query_duration"`
	IsSupported    bool          `json:"is_supported"`
	Evidence       []string      `json:"evidence"`
	Contradictions []string      `json:"contradictions"`
}

// EmptySourceResult is the result an adapter returns on ordinary failure
func EmptySourceResult(duration time.Duration) SourceResult {
	return SourceResult{
		Sources:        []Source{},
		Confidence:     0,
		QueryDuration:  duration,
		IsSupported:    false,
		Evidence:       []string{},
		Contradictions: []string{},
	}
}

// ConsolidatedResult is the weighted union of several SourceResults
type ConsolidatedResult struct {
	Sources            []Source           `json:"sources"`
	OverallConfidence  int                `json:"overall_confidence"` // 0-100
	IsSupported        bool               `json:"is_supported"`
	Evidence           []string           `json:"evidence"`
	Contradictions     []string           `json:"contradictions"`
	SourceWeights      map[string]float64 `json:"source_weights"`
	AvailableSources   []string           `json:"available_sources"`
	UnavailableSources []string           `json:"unavailable_sources"`
	QueryDuration      time.Duration      `json:"query_duration"`
}

// SourceIDs returns the ids of all merged sources in order
func (r ConsolidatedResult) SourceIDs() []string {
	ids := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		ids = append(ids, s.ID)
	}
	return ids
}

// KnowledgeVerdict is the internal knowledge store's answer for a statement
type KnowledgeVerdict struct {
	IsSupported          bool     `json:"is_supported"`
	Confidence           int      `json:"confidence"`
	SupportingSources    []Source `json:"supporting_sources"`
	ContradictingSources []Source `json:"contradicting_sources"`
}
