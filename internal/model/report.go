package model

import "time"

// FactCheckResult is the document-level outcome of a verification request
type FactCheckResult struct {
	VerificationID    string          `json:"verification_id"`
	OverallConfidence int             `json:"overall_confidence"` // 0-100
	Issues            []FactualIssue  `json:"issues"`
	VerifiedClaims    []VerifiedClaim `json:"verified_claims"`
	ProcessingTime    time.Duration   `json:"processing_time"`
	SourcesUsed       []string        `json:"sources_used"`

	Domain     string    `json:"domain,omitempty"`
	StrictMode bool      `json:"strict_mode"`
	ClaimCount int       `json:"claim_count"`
	CheckedAt  time.Time `json:"checked_at"`
}

// FactualIssue is emitted when a claim fails verification
type FactualIssue struct {
	ID                  string    `json:"id"`
	Kind                IssueKind `json:"kind"`
	Statement           string    `json:"statement"`
	Location            Location  `json:"location"`
	Confidence          int       `json:"confidence"`
	Evidence            []string  `json:"evidence"`   // Each entry prefixed with its origin label
	SourceIDs           []string  `json:"source_ids"` // Internal and external sources consulted
	SuggestedCorrection string    `json:"suggested_correction,omitempty"`
}

// IssueKind classifies why a claim failed
type IssueKind string

const (
	IssueUnsupportedClaim  IssueKind = "unsupported_claim"
	IssueContradictedClaim IssueKind = "contradicted_claim"
)

// Evidence origin labels
const (
	OriginInternal              = "Internal"
	OriginInternalContradicting = "Internal (contradicting)"
	OriginExternal              = "External"
	OriginExternalContradicting = "External (contradicting)"
)

// TagEvidence prefixes an evidence string with its origin label
func TagEvidence(origin, text string) string {
	return origin + ": " + text
}

// VerifiedClaim is a claim that passed verification
type VerifiedClaim struct {
	Statement          string             `json:"statement"`
	Confidence         int                `json:"confidence"`
	SourceIDs          []string           `json:"source_ids"`
	VerificationMethod VerificationMethod `json:"verification_method"`
}

// VerificationMethod labels how a claim was verified
type VerificationMethod string

const (
	MethodCombined      VerificationMethod = "combined_internal_external"
	MethodKnowledgeBase VerificationMethod = "knowledge_base_verification"
)

// ClaimVerification is the single-claim result of an internal-only check
type ClaimVerification struct {
	Statement          string             `json:"statement"`
	Confidence         int                `json:"confidence"`
	Sources            []Source           `json:"sources"`
	VerificationMethod VerificationMethod `json:"verification_method"`
}
