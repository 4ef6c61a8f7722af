package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/knowledge"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/score"
	"github.com/ppiankov/veritas/internal/sources"
	"github.com/ppiankov/veritas/internal/sources/adapters"
	"github.com/ppiankov/veritas/internal/util"
	"github.com/ppiankov/veritas/internal/validate"
	"github.com/ppiankov/veritas/internal/verify"
	"github.com/ppiankov/veritas/internal/worker"
)

// ErrEmptyContent is returned when a document has no text to check
var ErrEmptyContent = errors.New("empty content")

// ErrUnknownSource is returned for feedback on an adapter that is not registered
var ErrUnknownSource = errors.New("unknown source")

// Pipeline wires the knowledge base, external sources and verifier together
type Pipeline struct {
	config      *model.Config
	logger      *zap.Logger
	store       *knowledge.Store
	manager     *sources.Manager
	verifier    *verify.Verifier
	fetcher     *Fetcher
	linkChecker *validate.LinkChecker
	scorer      *score.Scorer
	renderer    *Renderer
	adapters    []sources.Adapter // Overrides the configured adapters when set
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithAdapters registers the given adapters instead of the configured ones
func WithAdapters(a ...sources.Adapter) Option {
	return func(p *Pipeline) {
		p.adapters = a
	}
}

// New opens the knowledge base (importing the seed file when configured),
// registers the enabled adapters and builds the verifier
func New(ctx context.Context, cfg *model.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}

	// 1. Knowledge base
	store, err := knowledge.Open(cfg.Knowledge.Path, knowledge.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	if cfg.Knowledge.SeedFile != "" {
		if _, err := store.ImportFile(ctx, cfg.Knowledge.SeedFile); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("import seed: %w", err)
		}
	}
	p.store = store

	// 2. External sources
	authority := validate.NewAuthorityClassifier(cfg.Authority.Verticals)
	p.manager = sources.NewManager(nil,
		sources.WithLogger(logger),
		sources.WithMaxParallel(cfg.Sources.MaxParallel),
	)
	p.manager.SetFallbackEnabled(cfg.Sources.FallbackEnabled)

	if p.adapters != nil {
		for _, a := range p.adapters {
			p.manager.Register(a, nil)
		}
	} else {
		for _, reg := range p.buildAdapters() {
			rc := reliabilityConfig(reg.adapter, reg.config, authority.Verticals())
			p.manager.Register(reg.adapter, &rc)
			logger.Debug("Source registered",
				zap.String("adapter", reg.adapter.Name()),
				zap.Float64("base_weight", rc.BaseWeight),
			)
		}
	}

	// 3. Verifier
	p.verifier = verify.NewVerifier(extract.NewClaimExtractor(), store, p.manager,
		verify.WithLogger(logger),
		verify.WithWorkers(cfg.Verification.ClaimWorkers),
		verify.WithQueryTimeout(cfg.Verification.QueryTimeout),
		verify.WithMaxResults(cfg.Verification.MaxResults),
	)

	// 4. Document intake and link checking
	p.fetcher = NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, cfg.HTTP.InsecureTLS,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	if cfg.HTTP.RespectRobots {
		p.fetcher.SetRobotsChecker(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout))
	}
	p.fetcher.SetLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize))
	p.linkChecker = validate.NewLinkChecker(cfg.HTTP.Timeout, cfg.Concurrency.ValidationWorkers, cfg.HTTP.UserAgent,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)

	p.scorer = score.NewScorer(authority)
	p.renderer = NewRenderer(cfg.Output.IncludeFooter)

	return p, nil
}

// registration pairs a built adapter with its configuration
type registration struct {
	adapter sources.Adapter
	config  model.AdapterConfig
}

// buildAdapters constructs the enabled adapters, wrapping cacheable ones
func (p *Pipeline) buildAdapters() []registration {
	cfg := p.config
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	client := util.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	common := []adapters.Option{
		adapters.WithHTTPClient(client),
		adapters.WithLimiter(limiter),
		adapters.WithUserAgent(cfg.HTTP.UserAgent),
		adapters.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
	}

	var resultCache cache.Cache
	if cfg.Cache.Enabled {
		resultCache = cache.New(cfg.Cache)
	}
	wrap := func(a sources.Adapter, ac model.AdapterConfig) sources.Adapter {
		if resultCache == nil || !ac.Cache {
			return a
		}
		return sources.NewCachedAdapter(a, resultCache, cfg.Cache.DiskTTL)
	}

	var regs []registration
	if ac := cfg.Sources.Wikipedia; ac.Enabled {
		a := adapters.NewWikipediaAdapter(append(common, adapters.WithBaseURL(ac.BaseURL))...)
		a.SetRevisionCheck(ac.RevisionCheck)
		regs = append(regs, registration{wrap(a, ac), ac})
	}
	if ac := cfg.Sources.OpenAlex; ac.Enabled {
		a := adapters.NewOpenAlexAdapter(ac.Email, append(common, adapters.WithBaseURL(ac.BaseURL))...)
		regs = append(regs, registration{wrap(a, ac), ac})
	}
	if ac := cfg.Sources.LLM; ac.Enabled {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		switch {
		case errors.Is(err, llm.ErrNoProvider):
			p.logger.Warn("LLM source enabled without a provider; skipping")
		case err != nil:
			p.logger.Warn("Failed to initialize LLM provider", zap.Error(err))
		default:
			regs = append(regs, registration{wrap(adapters.NewLLMAdapter(provider), ac), ac})
		}
	}
	return regs
}

// reliabilityConfig derives an adapter's weights from configuration. Domain
// weights are seeded where the adapter's reliability diverges for a vertical;
// configured domain weights override them.
func reliabilityConfig(a sources.Adapter, ac model.AdapterConfig, verticals []string) sources.ReliabilityConfig {
	reliability := a.Reliability()
	if ac.Reliability > 0 {
		reliability = ac.Reliability
	}
	rc := sources.DefaultReliabilityConfig(reliability)
	if ac.Weight != nil {
		rc.BaseWeight = model.ClampWeight(*ac.Weight)
	}

	for _, domain := range verticals {
		if r := a.ReliabilityForDomain(domain); r != a.Reliability() {
			rc.DomainWeights[domain] = model.ClampWeight(float64(r) / 100)
		}
	}
	for domain, w := range ac.DomainWeights {
		rc.DomainWeights[strings.ToLower(domain)] = model.ClampWeight(w)
	}
	return rc
}

// Close releases the knowledge base
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Store returns the knowledge base
func (p *Pipeline) Store() *knowledge.Store { return p.store }

// Manager returns the source manager
func (p *Pipeline) Manager() *sources.Manager { return p.manager }

// Verifier returns the fact verifier
func (p *Pipeline) Verifier() *verify.Verifier { return p.verifier }

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer { return p.renderer }

// Check fact-checks content with the configured domain and mode
func (p *Pipeline) Check(ctx context.Context, content string) (*model.FactCheckResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	return p.verifier.Check(ctx, model.CheckRequest{
		Content:    content,
		Domain:     p.config.Verification.Domain,
		StrictMode: p.config.Verification.StrictMode,
	})
}

// CheckDocument loads a file path or http(s) URL and fact-checks it
func (p *Pipeline) CheckDocument(ctx context.Context, location string) (*model.FactCheckResult, error) {
	content, err := p.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	return p.Check(ctx, content)
}

// Load reads a document from a file path or http(s) URL
func (p *Pipeline) Load(ctx context.Context, location string) (string, error) {
	if isURL(location) {
		result, err := p.fetcher.FetchWithRetry(ctx, location)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", location, err)
		}
		return result.Content, nil
	}

	info, err := os.Stat(location)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	if limit := p.config.HTTP.MaxBodyBytes; limit > 0 && info.Size() > limit {
		return "", fmt.Errorf("read %s: document is %d bytes, limit is %d", location, info.Size(), limit)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	return string(data), nil
}

// CheckLinks checks every link cited by content; relative links resolve
// against baseURL
func (p *Pipeline) CheckLinks(ctx context.Context, content, baseURL string) ([]validate.LinkStatus, error) {
	links, err := extract.ExtractLinks(content, baseURL)
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}
	urls := make([]string, len(links))
	for i, l := range links {
		urls[i] = l.URL
	}
	return p.linkChecker.Check(ctx, urls), nil
}

// RefreshResult is the link check of one knowledge-base source
type RefreshResult struct {
	SourceID string              `json:"source_id"`
	Status   validate.LinkStatus `json:"status"`
}

// RefreshSources checks the URL of every stored source and stamps the
// accessible ones as verified
func (p *Pipeline) RefreshSources(ctx context.Context) ([]RefreshResult, error) {
	srcs, err := p.store.Sources(ctx)
	if err != nil {
		return nil, err
	}

	var ids, urls []string
	for _, s := range srcs {
		if isURL(s.URL) {
			ids = append(ids, s.ID)
			urls = append(urls, s.URL)
		}
	}

	statuses := p.linkChecker.Check(ctx, urls)
	results := make([]RefreshResult, len(statuses))
	for i, status := range statuses {
		results[i] = RefreshResult{SourceID: ids[i], Status: status}
		if !status.IsAccessible {
			continue
		}
		if err := p.store.MarkVerified(ctx, ids[i], status.CheckedAt); err != nil {
			return nil, err
		}
	}

	p.logger.Info("Knowledge sources refreshed", zap.Int("checked", len(results)))
	return results, nil
}

// RankedSource is a stored source with its credibility assessment
type RankedSource struct {
	Source     model.Source     `json:"source"`
	Assessment score.Assessment `json:"assessment"`
}

// RankSources rates every stored source for domain, best first
func (p *Pipeline) RankSources(ctx context.Context, domain string) ([]RankedSource, error) {
	srcs, err := p.store.Sources(ctx)
	if err != nil {
		return nil, err
	}

	ranked := p.scorer.Rank(srcs, domain)
	out := make([]RankedSource, len(ranked))
	for i, s := range ranked {
		out[i] = RankedSource{Source: s, Assessment: p.scorer.Assess(s, domain)}
	}
	return out, nil
}

// Feedback applies feedback to a stored source's credibility
func (p *Pipeline) Feedback(ctx context.Context, sourceID string, fb model.Feedback) (int, error) {
	return p.store.UpdateCredibility(ctx, sourceID, fb)
}

// SourceFeedback moves a registered adapter's weight, or its weight for
// domain when set, and returns the adapter's updated reliability config
func (p *Pipeline) SourceFeedback(name string, fb model.Feedback, domain string) (sources.ReliabilityConfig, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	domain = strings.ToLower(strings.TrimSpace(domain))

	registry := p.manager.Registry()
	if _, ok := registry.Config(name); !ok {
		return sources.ReliabilityConfig{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	p.manager.AdjustReliability(name, fb, domain)

	cfg, _ := registry.Config(name)
	return cfg, nil
}

// Probe asks every registered adapter about the statements
func (p *Pipeline) Probe(ctx context.Context, statements []string) []sources.AdapterReport {
	queries := make([]model.SourceQuery, len(statements))
	for i, s := range statements {
		queries[i] = model.SourceQuery{
			Statement:  s,
			Domain:     p.config.Verification.Domain,
			MaxResults: p.config.Verification.MaxResults,
			Timeout:    p.config.Verification.QueryTimeout,
		}
	}
	return p.manager.Probe(ctx, queries)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
