package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Judge asks the model whether a statement is supported, contradicted or unknown
	Judge(ctx context.Context, req JudgeRequest) (*Judgement, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// JudgeRequest contains the input for a model-as-judge call
type JudgeRequest struct {
	// Statement is the claim to judge
	Statement string

	// Domain narrows the judge to a vertical (healthcare, legal, ...)
	Domain string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// Verdict is the judge's stance on a statement
type Verdict string

const (
	VerdictSupported    Verdict = "supported"
	VerdictContradicted Verdict = "contradicted"
	VerdictUnknown      Verdict = "unknown"
)

// Judgement is the parsed model answer
type Judgement struct {
	Verdict    Verdict
	Confidence int // 0-100
	Rationale  string
	References []string // URLs the model cited

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 500,
	}
}

// ErrMalformedJudgement is returned when the model answer has no usable JSON verdict
var ErrMalformedJudgement = errors.New("malformed judgement")

const systemPrompt = "You are a careful fact checker. You answer only with the requested JSON object."

// BuildJudgePrompt constructs the default prompt asking for a JSON verdict
func BuildJudgePrompt(statement, domain string) string {
	scope := "general knowledge"
	if domain != "" {
		scope = domain + " (apply the standards of a " + domain + " reviewer)"
	}

	return fmt.Sprintf(`Judge whether the following statement is factually supported.

Domain: %s
Statement: %q

RULES:
1. Answer "supported" only if the statement is well established.
2. Answer "contradicted" if reliable knowledge says otherwise.
3. Answer "unknown" when you are not sure. Do not guess.
4. Only list reference URLs you are certain exist. An empty list is fine.

Respond with exactly one JSON object:
{"verdict": "supported|contradicted|unknown", "confidence": 0-100, "rationale": "one sentence", "references": ["https://..."]}`, scope, statement)
}

type rawJudgement struct {
	Verdict    string   `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	References []string `json:"references"`
}

// ParseJudgement extracts the JSON verdict from a model answer. Models often
// wrap JSON in prose or code fences, so the first {...} object is used.
func ParseJudgement(text string) (*Judgement, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedJudgement, truncate(text, 80))
	}

	var raw rawJudgement
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJudgement, err)
	}

	j := &Judgement{
		Verdict:    normalizeVerdict(raw.Verdict),
		Confidence: clampConfidence(raw.Confidence),
		Rationale:  strings.TrimSpace(raw.Rationale),
	}

	refs := raw.References
	if len(refs) == 0 {
		refs = extractURLs(j.Rationale)
	}
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			j.References = append(j.References, ref)
		}
	}

	return j, nil
}

func normalizeVerdict(v string) Verdict {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "supported", "support", "true":
		return VerdictSupported
	case "contradicted", "contradict", "refuted", "false":
		return VerdictContradicted
	default:
		return VerdictUnknown
	}
}

func clampConfidence(c float64) int {
	// some models answer on a 0-1 scale
	if c > 0 && c <= 1 {
		c *= 100
	}
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return int(c + 0.5)
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)"\]]+`)

// extractURLs extracts all URLs from text using regex
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	// Deduplicate
	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		// Clean up trailing punctuation
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}

	return unique
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
