package adapters

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
)

const (
	llmReliability          = 50
	llmSensitiveReliability = 40
)

// LLMAdapter asks a language model to judge a claim. Its low reliability
// keeps a model from settling a claim on its own.
type LLMAdapter struct {
	provider llm.Provider
	avail    availability
}

// NewLLMAdapter wraps provider as a knowledge source
func NewLLMAdapter(provider llm.Provider) *LLMAdapter {
	return &LLMAdapter{provider: provider}
}

func (a *LLMAdapter) Name() string     { return "llm" }
func (a *LLMAdapter) Reliability() int { return llmReliability }

func (a *LLMAdapter) SupportedDomains() []string {
	return []string{"general", "healthcare", "financial", "legal", "insurance"}
}

func (a *LLMAdapter) ReliabilityForDomain(domain string) int {
	if wikipediaSensitiveDomains[domain] {
		return llmSensitiveReliability
	}
	return llmReliability
}

func (a *LLMAdapter) IsAvailable(ctx context.Context) bool {
	if a.provider == nil {
		return false
	}
	return a.avail.check(ctx, a.provider.IsAvailable)
}

// Query maps the model's verdict onto a result. References the model cites
// become sources; the model itself is always listed so its answer can be
// traced and cached.
func (a *LLMAdapter) Query(ctx context.Context, q model.SourceQuery) (model.SourceResult, error) {
	start := time.Now()
	if a.provider == nil {
		return model.EmptySourceResult(time.Since(start)), nil
	}

	j, err := a.provider.Judge(ctx, llm.JudgeRequest{Statement: q.Statement, Domain: q.Domain})
	if err != nil {
		if abandoned(ctx) {
			return model.EmptySourceResult(time.Since(start)), ctx.Err()
		}
		return model.EmptySourceResult(time.Since(start)), nil
	}

	reliability := a.ReliabilityForDomain(q.Domain)
	result := model.SourceResult{
		Sources:        a.sources(j, reliability),
		Evidence:       []string{},
		Contradictions: []string{},
	}

	line := fmt.Sprintf("%s (%s): %s", a.provider.Name(), j.Verdict, j.Rationale)
	switch j.Verdict {
	case llm.VerdictSupported:
		result.IsSupported = true
		result.Confidence = model.RoundScore(float64(j.Confidence*reliability) / 100)
		result.Evidence = append(result.Evidence, line)
	case llm.VerdictContradicted:
		result.Confidence = model.RoundScore(float64((100-j.Confidence)*reliability) / 100)
		result.Contradictions = append(result.Contradictions, line)
	default:
		result.Evidence = append(result.Evidence, line)
	}

	result.QueryDuration = time.Since(start)
	return result, nil
}

func (a *LLMAdapter) sources(j *llm.Judgement, reliability int) []model.Source {
	modelName := j.Model
	if modelName == "" {
		modelName = a.provider.Name()
	}

	out := []model.Source{{
		ID:               "llm:" + modelName,
		Name:             a.provider.Name(),
		Title:            "Model judgement (" + modelName + ")",
		Kind:             model.SourceKindOther,
		CredibilityScore: reliability,
	}}

	for _, ref := range j.References {
		title := ref
		if u, err := url.Parse(ref); err == nil && u.Host != "" {
			title = u.Host
		}
		out = append(out, model.Source{
			ID:               ref,
			Name:             title,
			Title:            title,
			URL:              ref,
			Kind:             model.SourceKindOther,
			CredibilityScore: reliability,
		})
	}
	return out
}
