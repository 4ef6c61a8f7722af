// Package verify checks the claims of a document against the internal
// knowledge base and external sources and reports issues per claim.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	// InternalWeight and ExternalWeight blend the two confidences
	InternalWeight = 0.6
	ExternalWeight = 0.4

	// Threshold is the combined confidence a claim needs to verify
	Threshold = 60
	// StrictThreshold replaces Threshold in strict mode
	StrictThreshold = 80

	// Severity factors weigh issues in the document confidence
	ContradictedSeverity = 0.8
	UnsupportedSeverity  = 0.6

	// NeutralWeight is the contribution of a claim with no verdict
	NeutralWeight = 0.5

	// EmptyDocumentConfidence is reported when no claims were found
	EmptyDocumentConfidence = 100

	defaultWorkers    = 4
	defaultMaxResults = 3
)

// ClaimSource extracts checkable claims from content
type ClaimSource interface {
	Extract(content string) ([]model.Claim, error)
}

// KnowledgeStore is the internal knowledge base
type KnowledgeStore interface {
	Verify(ctx context.Context, statement, domain string) (model.KnowledgeVerdict, error)
}

// ExternalSources answers a query from external knowledge sources
type ExternalSources interface {
	QueryBest(ctx context.Context, q model.SourceQuery) model.ConsolidatedResult
}

// Verifier is the top-level fact checker
type Verifier struct {
	claims       ClaimSource
	store        KnowledgeStore
	external     ExternalSources
	logger       *zap.Logger
	workers      int
	queryTimeout time.Duration
	maxResults   int
}

// Option configures a Verifier
type Option func(*Verifier)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithWorkers bounds how many claims are checked at once
func WithWorkers(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithQueryTimeout sets the per-adapter timeout of external queries
func WithQueryTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.queryTimeout = d
		}
	}
}

// WithMaxResults sets how many results each adapter is asked for
func WithMaxResults(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.maxResults = n
		}
	}
}

// NewVerifier creates a verifier. A nil external disables external sources;
// every claim is then judged by the knowledge base alone.
func NewVerifier(claims ClaimSource, store KnowledgeStore, external ExternalSources, opts ...Option) *Verifier {
	v := &Verifier{
		claims:       claims,
		store:        store,
		external:     external,
		logger:       zap.NewNop(),
		workers:      defaultWorkers,
		queryTimeout: model.DefaultQueryTimeout,
		maxResults:   defaultMaxResults,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// claimOutcome is the verdict for one claim; exactly one of issue and
// verified is set
type claimOutcome struct {
	issue     *model.FactualIssue
	verified  *model.VerifiedClaim
	sourceIDs []string
}

// Check verifies every claim in req.Content. Any extraction or knowledge
// base failure fails the whole check.
func (v *Verifier) Check(ctx context.Context, req model.CheckRequest) (*model.FactCheckResult, error) {
	start := time.Now()

	result, err := v.check(ctx, req, start)
	checkSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		checksTotal.WithLabelValues("error").Inc()
		v.logger.Warn("Fact check failed", zap.Error(err))
		return nil, fmt.Errorf("fact checking failed: %w", err)
	}
	checksTotal.WithLabelValues("ok").Inc()

	v.logger.Info("Fact check complete",
		zap.String("verification_id", result.VerificationID),
		zap.Int("claims", result.ClaimCount),
		zap.Int("issues", len(result.Issues)),
		zap.Int("verified", len(result.VerifiedClaims)),
		zap.Int("confidence", result.OverallConfidence),
		zap.Duration("duration", result.ProcessingTime),
	)
	return result, nil
}

func (v *Verifier) check(ctx context.Context, req model.CheckRequest, start time.Time) (*model.FactCheckResult, error) {
	// 1. Extract claims
	claims, err := v.claims.Extract(req.Content)
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	// 2. Check claims concurrently, joined by index
	outcomes := make([]claimOutcome, len(claims))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, claim := range claims {
		g.Go(func() error {
			out, err := v.checkClaim(gctx, claim, req)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 3. Assemble in extraction order
	result := &model.FactCheckResult{
		VerificationID: uuid.NewString(),
		Issues:         []model.FactualIssue{},
		VerifiedClaims: []model.VerifiedClaim{},
		Domain:         req.Domain,
		StrictMode:     req.StrictMode,
		ClaimCount:     len(claims),
		CheckedAt:      start.UTC(),
	}
	used := make([][]string, 0, len(outcomes))
	for _, out := range outcomes {
		switch {
		case out.issue != nil:
			result.Issues = append(result.Issues, *out.issue)
		case out.verified != nil:
			result.VerifiedClaims = append(result.VerifiedClaims, *out.verified)
		}
		used = append(used, out.sourceIDs)
	}
	result.SourcesUsed = model.DedupeStrings(used...)

	// 4. Document confidence
	result.OverallConfidence = DocumentConfidence(len(claims), result.Issues, result.VerifiedClaims)
	result.ProcessingTime = time.Since(start)

	return result, nil
}

func (v *Verifier) checkClaim(ctx context.Context, claim model.Claim, req model.CheckRequest) (claimOutcome, error) {
	internal, err := v.store.Verify(ctx, claim.Statement, req.Domain)
	if err != nil {
		return claimOutcome{}, fmt.Errorf("knowledge base: %w", err)
	}
	external := v.queryExternal(ctx, claim.Statement, req.Domain)

	combined := CombinedConfidence(internal.Confidence, external.OverallConfidence)
	supported := internal.IsSupported || external.IsSupported
	sourceIDs := model.DedupeStrings(
		sourceIDsOf(internal.SupportingSources),
		sourceIDsOf(internal.ContradictingSources),
		external.SourceIDs(),
	)

	if !supported || combined < ThresholdFor(req.StrictMode) {
		issue := buildIssue(claim, internal, external, combined, sourceIDs)
		claimsTotal.WithLabelValues(verdictLabel(issue.Kind)).Inc()
		v.logger.Debug("Claim flagged",
			zap.String("statement", claim.Statement),
			zap.String("kind", string(issue.Kind)),
			zap.Bool("supported", supported),
			zap.Int("combined", combined),
		)
		return claimOutcome{issue: &issue, sourceIDs: sourceIDs}, nil
	}

	method := model.MethodKnowledgeBase
	if len(external.Sources) > 0 {
		method = model.MethodCombined
	}
	claimsTotal.WithLabelValues(verdictVerified).Inc()
	v.logger.Debug("Claim verified",
		zap.String("statement", claim.Statement),
		zap.String("method", string(method)),
		zap.Int("combined", combined),
	)
	return claimOutcome{
		verified: &model.VerifiedClaim{
			Statement:          claim.Statement,
			Confidence:         combined,
			SourceIDs:          sourceIDs,
			VerificationMethod: method,
		},
		sourceIDs: sourceIDs,
	}, nil
}

func (v *Verifier) queryExternal(ctx context.Context, statement, domain string) model.ConsolidatedResult {
	if v.external == nil {
		return model.ConsolidatedResult{
			Sources:            []model.Source{},
			Evidence:           []string{},
			Contradictions:     []string{},
			SourceWeights:      map[string]float64{},
			AvailableSources:   []string{},
			UnavailableSources: []string{},
		}
	}
	return v.external.QueryBest(ctx, model.SourceQuery{
		Statement:  statement,
		Domain:     domain,
		MaxResults: v.maxResults,
		Timeout:    v.queryTimeout,
	})
}

// ExtractClaimStatements returns the statements of the claims in content
func (v *Verifier) ExtractClaimStatements(content string) ([]string, error) {
	claims, err := v.claims.Extract(content)
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	statements := make([]string, len(claims))
	for i, c := range claims {
		statements[i] = c.Statement
	}
	return statements, nil
}

// Verify checks a single statement against the knowledge base only
func (v *Verifier) Verify(ctx context.Context, statement, domain string) (*model.ClaimVerification, error) {
	verdict, err := v.store.Verify(ctx, statement, domain)
	if err != nil {
		return nil, fmt.Errorf("verify claim: %w", err)
	}
	return &model.ClaimVerification{
		Statement:          statement,
		Confidence:         verdict.Confidence,
		Sources:            model.DedupeSources(verdict.SupportingSources),
		VerificationMethod: model.MethodKnowledgeBase,
	}, nil
}

func buildIssue(claim model.Claim, internal model.KnowledgeVerdict, external model.ConsolidatedResult, combined int, sourceIDs []string) model.FactualIssue {
	kind := model.IssueUnsupportedClaim
	if len(internal.ContradictingSources) > 0 || len(external.Contradictions) > 0 {
		kind = model.IssueContradictedClaim
	}

	evidence := make([]string, 0, len(internal.SupportingSources)+len(internal.ContradictingSources)+
		len(external.Evidence)+len(external.Contradictions))
	for _, s := range internal.SupportingSources {
		evidence = append(evidence, model.TagEvidence(model.OriginInternal, s.DisplayTitle()))
	}
	for _, s := range internal.ContradictingSources {
		evidence = append(evidence, model.TagEvidence(model.OriginInternalContradicting, s.DisplayTitle()))
	}
	for _, e := range external.Evidence {
		evidence = append(evidence, model.TagEvidence(model.OriginExternal, e))
	}
	for _, c := range external.Contradictions {
		evidence = append(evidence, model.TagEvidence(model.OriginExternalContradicting, c))
	}

	issue := model.FactualIssue{
		ID:         uuid.NewString(),
		Kind:       kind,
		Statement:  claim.Statement,
		Location:   claim.Location,
		Confidence: max(claim.Confidence, combined),
		Evidence:   evidence,
		SourceIDs:  sourceIDs,
	}
	if best, ok := mostCredible(model.DedupeSources(internal.SupportingSources, external.Sources)); ok {
		issue.SuggestedCorrection = suggestCorrection(best)
	}
	return issue
}

// mostCredible returns the source with the highest credibility score; the
// first wins ties
func mostCredible(sources []model.Source) (model.Source, bool) {
	if len(sources) == 0 {
		return model.Source{}, false
	}
	best := sources[0]
	for _, s := range sources[1:] {
		if s.CredibilityScore > best.CredibilityScore {
			best = s
		}
	}
	return best, true
}

func suggestCorrection(s model.Source) string {
	if s.URL != "" {
		return fmt.Sprintf("Review this claim against %s (%s)", s.DisplayTitle(), s.URL)
	}
	return fmt.Sprintf("Review this claim against %s", s.DisplayTitle())
}

// CombinedConfidence blends internal and external confidence
func CombinedConfidence(internal, external int) int {
	return model.RoundScore(float64(internal)*InternalWeight + float64(external)*ExternalWeight)
}

// ThresholdFor returns the verified threshold for the mode
func ThresholdFor(strict bool) int {
	if strict {
		return StrictThreshold
	}
	return Threshold
}

// DocumentConfidence weighs verified claims against issues. Claims with
// neither verdict count as neutral; a document without claims scores 100.
func DocumentConfidence(totalClaims int, issues []model.FactualIssue, verified []model.VerifiedClaim) int {
	if totalClaims == 0 {
		return EmptyDocumentConfidence
	}

	var issueWeight, verifiedWeight float64
	for _, issue := range issues {
		severity := UnsupportedSeverity
		if issue.Kind == model.IssueContradictedClaim {
			severity = ContradictedSeverity
		}
		issueWeight += float64(issue.Confidence) / 100 * severity
	}
	for _, vc := range verified {
		verifiedWeight += float64(vc.Confidence) / 100
	}
	unverified := totalClaims - len(issues) - len(verified)
	unverifiedWeight := float64(max(unverified, 0)) * NeutralWeight

	total := issueWeight + verifiedWeight + unverifiedWeight
	if total == 0 {
		return 0
	}
	return model.RoundScore(100 * (verifiedWeight + unverifiedWeight) / total)
}

func sourceIDsOf(sources []model.Source) []string {
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	return ids
}

func verdictLabel(kind model.IssueKind) string {
	if kind == model.IssueContradictedClaim {
		return verdictContradicted
	}
	return verdictUnsupported
}
