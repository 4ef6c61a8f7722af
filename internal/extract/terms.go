package extract

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// stopwords are dropped from keyword sets
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"with": true, "that": true, "this": true, "from": true, "has": true, "have": true,
	"had": true, "its": true, "into": true, "than": true, "then": true, "them": true,
	"they": true, "their": true, "there": true, "which": true, "who": true, "whom": true,
	"been": true, "being": true, "also": true, "such": true, "about": true, "over": true,
	"under": true, "can": true, "could": true, "would": true, "should": true, "will": true,
	"may": true, "might": true, "not": true, "but": true, "all": true, "any": true,
	"more": true, "most": true, "some": true, "other": true, "these": true, "those": true,
	"did": true, "does": true, "each": true, "per": true, "our": true, "your": true,
}

// negationCues flip the polarity of a statement
var negationCues = []string{
	" not ", "n't ", " never ", " no ", " none ", " neither ", " nor ",
	" false", " myth", " incorrect", " debunked", " disproven", " untrue",
}

// Keywords returns the distinct content terms of s in first-seen order.
// Tokens are lowercased; stopwords and words shorter than three letters are
// dropped, numbers are kept.
func Keywords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] || seen[f] {
			continue
		}
		if len(f) < 3 && !isNumber(f) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Overlap returns the fraction of claim terms present in candidate (0-1)
func Overlap(claim, candidate []string) float64 {
	if len(claim) == 0 {
		return 0
	}
	set := make(map[string]bool, len(candidate))
	for _, t := range candidate {
		set[t] = true
	}
	hits := 0
	for _, t := range claim {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(claim))
}

// IsNegated reports whether s carries a negation cue
func IsNegated(s string) bool {
	padded := " " + strings.ToLower(s) + " "
	for _, cue := range negationCues {
		if strings.Contains(padded, cue) {
			return true
		}
	}
	return false
}

// StripTags returns the text content of an HTML fragment with entities
// decoded, such as a search snippet with highlight spans
func StripTags(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var buf strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(buf.String()), " ")
		case html.TextToken:
			buf.Write(z.Text())
		}
	}
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
