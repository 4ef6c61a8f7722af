package adapters

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/model"
)

// minRelevance is the keyword overlap below which a hit is ignored
const minRelevance = 0.3

// maxQueryTerms bounds the search string sent upstream
const maxQueryTerms = 8

// match is one relevant passage found for a claim
type match struct {
	source      model.Source
	passage     string
	overlap     float64
	contradicts bool
}

// searchTerms returns the claim keywords and the search string built from them
func searchTerms(statement string) ([]string, string) {
	terms := extract.Keywords(statement)
	if len(terms) > maxQueryTerms {
		return terms, strings.Join(terms[:maxQueryTerms], " ")
	}
	return terms, strings.Join(terms, " ")
}

// bestPassage returns the sentence of text sharing most terms with the claim
func bestPassage(terms []string, text string) (string, float64) {
	var best string
	var bestOverlap float64
	for _, sentence := range splitPassages(text) {
		ov := extract.Overlap(terms, extract.Keywords(sentence))
		if ov > bestOverlap {
			best, bestOverlap = sentence, ov
		}
	}
	return best, bestOverlap
}

func splitPassages(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		end := c == '\n'
		if (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ') {
			end = true
		}
		if end {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// contradicts reports a polarity mismatch: exactly one side is negated
func contradicts(statement, passage string) bool {
	return extract.IsNegated(statement) != extract.IsNegated(passage)
}

// verdict folds matches into a result. Confidence is the best supporting
// overlap scaled by the adapter's reliability, halved when contradicting
// passages match at least as well.
func verdict(matches []match, reliability int, start time.Time) model.SourceResult {
	if len(matches) == 0 {
		return model.EmptySourceResult(time.Since(start))
	}

	result := model.SourceResult{
		Sources:        make([]model.Source, 0, len(matches)),
		Evidence:       []string{},
		Contradictions: []string{},
	}

	var bestSupport, bestContra float64
	for _, m := range matches {
		result.Sources = append(result.Sources, m.source)
		line := fmt.Sprintf("%s: %s", m.source.DisplayTitle(), m.passage)
		if m.contradicts {
			result.Contradictions = append(result.Contradictions, line)
			bestContra = max(bestContra, m.overlap)
		} else {
			result.Evidence = append(result.Evidence, line)
			bestSupport = max(bestSupport, m.overlap)
		}
	}

	result.IsSupported = bestSupport > bestContra
	score := bestSupport * float64(reliability)
	if !result.IsSupported {
		score /= 2
	}
	result.Confidence = model.RoundScore(score)
	result.QueryDuration = time.Since(start)
	return result
}
