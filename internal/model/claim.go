package model

// Claim represents a factual assertion extracted from a document
type Claim struct {
	Statement  string    `json:"statement"`           // The claim text itself
	Confidence int       `json:"confidence"`          // Extraction confidence (0-100)
	Location   Location  `json:"location"`            // Where the claim appears in the source text
	Type       ClaimType `json:"type"`                // Claim category
	Context    string    `json:"context,omitempty"`   // Surrounding text
	Heuristic  string    `json:"heuristic,omitempty"` // Which extraction rule matched (e.g., "cue:percent")
}

// Location identifies a span of the source text
type Location struct {
	Start int `json:"start"` // Byte offset of the first character
	End   int `json:"end"`   // Byte offset one past the last character
	Line  int `json:"line"`  // 1-based line number of Start
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeFactual     ClaimType = "factual"     // General factual assertion
	ClaimTypeStatistical ClaimType = "statistical" // Numbers, rates, percentages
	ClaimTypeRegulatory  ClaimType = "regulatory"  // Laws, obligations, compliance
	ClaimTypeMedical     ClaimType = "medical"     // Clinical or health assertions
	ClaimTypeFinancial   ClaimType = "financial"   // Money, markets, earnings
)

// CheckRequest is a document-level verification request
type CheckRequest struct {
	Content    string `json:"content"`
	Domain     string `json:"domain,omitempty"`
	StrictMode bool   `json:"strict_mode"`
}

// Feedback is a trust signal applied to a source or adapter
type Feedback int

const (
	FeedbackNegative Feedback = -1
	FeedbackPositive Feedback = 1
)

// Sign returns +1 for positive feedback and -1 otherwise
func (f Feedback) Sign() float64 {
	if f > 0 {
		return 1
	}
	return -1
}

func (f Feedback) String() string {
	if f > 0 {
		return "positive"
	}
	return "negative"
}
