package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	minSentenceLen = 20
	maxSentenceLen = 500
	contextRadius  = 100

	baseClaimConfidence = 60
	cueBonus            = 10
	numberBonus         = 10
	maxClaimConfidence  = 95
)

// cueSet pairs a claim type with the phrases that signal it
type cueSet struct {
	claimType model.ClaimType
	cues      []string
}

// ClaimExtractor finds checkable factual claims in plain text or HTML
type ClaimExtractor struct {
	cueSets []cueSet // Ordered by tie-break priority
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor() *ClaimExtractor {
	return &ClaimExtractor{
		cueSets: []cueSet{
			{model.ClaimTypeMedical, []string{
				"patient", "treatment", "clinical", "disease", "vaccine", "dose",
				"symptom", "diagnos", "therapy", "drug", "mortality", "infection",
			}},
			{model.ClaimTypeFinancial, []string{
				"revenue", "profit", "interest rate", "inflation", "stock", "earnings",
				"gdp", "tax", "dividend", "investment", "$", "€", "£",
			}},
			{model.ClaimTypeRegulatory, []string{
				"shall", "must", "is required", "under the law", "regulation",
				"statute", "compliance", "prohibited", "is legally", "mandatory",
				"under this act",
			}},
			{model.ClaimTypeStatistical, []string{
				"%", "percent", "per cent", "average", "median", "majority",
				"increase", "decrease", "times more", "rate of",
			}},
			{model.ClaimTypeFactual, []string{
				"originated", "first", "introduced", "invented", "according to",
				"is defined as", "established", "founded", "created", "discovered",
				"developed", "largest", "smallest", "capital of", "located in",
			}},
		},
	}
}

// Extract returns claims in document order. HTML input is reduced to its
// visible text first; locations refer to that text.
func (e *ClaimExtractor) Extract(content string) ([]model.Claim, error) {
	text := content
	if looksLikeHTML(content) {
		doc, err := html.Parse(strings.NewReader(content))
		if err != nil {
			return nil, err
		}
		text = extractVisibleText(doc)
	}

	var claims []model.Claim
	for _, span := range splitSentences(text) {
		claim, ok := e.classify(text, span)
		if ok {
			claims = append(claims, claim)
		}
	}

	return dedupeClaims(claims), nil
}

// ExtractStatements returns only the claim statements
func (e *ClaimExtractor) ExtractStatements(content string) ([]string, error) {
	claims, err := e.Extract(content)
	if err != nil {
		return nil, err
	}
	statements := make([]string, len(claims))
	for i, c := range claims {
		statements[i] = c.Statement
	}
	return statements, nil
}

// classify scores one sentence against the cue lists
func (e *ClaimExtractor) classify(text string, span sentenceSpan) (model.Claim, bool) {
	sentence := text[span.start:span.end]
	lower := strings.ToLower(sentence)

	bestType := model.ClaimType("")
	bestCount := 0
	totalCues := 0
	firstCue := ""

	for _, set := range e.cueSets {
		count := 0
		for _, cue := range set.cues {
			if strings.Contains(lower, cue) {
				count++
				if firstCue == "" {
					firstCue = cue
				}
			}
		}
		totalCues += count
		if count > bestCount {
			bestCount = count
			bestType = set.claimType
		}
	}

	hasNumber := containsDigit(sentence)
	if totalCues == 0 && !hasNumber {
		return model.Claim{}, false
	}

	confidence := baseClaimConfidence
	heuristic := "number"
	if totalCues > 0 {
		confidence += cueBonus * (totalCues - 1)
		heuristic = "cue:" + firstCue
	} else {
		bestType = model.ClaimTypeStatistical
	}
	if hasNumber {
		confidence += numberBonus
	}
	if confidence > maxClaimConfidence {
		confidence = maxClaimConfidence
	}

	return model.Claim{
		Statement:  sentence,
		Confidence: confidence,
		Location: model.Location{
			Start: span.start,
			End:   span.end,
			Line:  1 + strings.Count(text[:span.start], "\n"),
		},
		Type:      bestType,
		Context:   surroundingContext(text, span),
		Heuristic: heuristic,
	}, true
}

// sentenceSpan is a byte range of trimmed sentence text
type sentenceSpan struct {
	start, end int
}

// splitSentences splits on terminators followed by whitespace and on line
// breaks, keeping byte offsets into text
func splitSentences(text string) []sentenceSpan {
	var spans []sentenceSpan
	start := 0

	emit := func(end int) {
		s, e := trimSpan(text, start, end)
		if e-s >= minSentenceLen && e-s <= maxSentenceLen {
			spans = append(spans, sentenceSpan{start: s, end: e})
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			emit(i)
			start = i + 1
		case c == '.' || c == '!' || c == '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n' {
				emit(i + 1)
				start = i + 1
			}
		}
	}
	if start < len(text) {
		emit(len(text))
	}

	return spans
}

// trimSpan narrows [start,end) past surrounding whitespace
func trimSpan(text string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return start, end
}

// surroundingContext returns up to contextRadius bytes either side of the span,
// aligned to rune boundaries
func surroundingContext(text string, span sentenceSpan) string {
	from := span.start - contextRadius
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}

	to := span.end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}

	return strings.TrimSpace(text[from:to])
}

func containsDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// looksLikeHTML reports whether content appears to be markup
func looksLikeHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	lower := strings.ToLower(trimmed[:min(len(trimmed), 512)])
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype") ||
		strings.Contains(lower, "<body") || strings.Contains(lower, "<p") ||
		strings.Contains(lower, "<div")
}

// blockElements end a line of visible text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "td": true,
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles.
// Block elements become line breaks so line numbers stay meaningful.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return buf.String()
}

// dedupeClaims removes duplicate claims by normalized statement
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	unique := make([]model.Claim, 0, len(claims))

	for _, claim := range claims {
		key := normalizeStatement(claim.Statement)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}

func normalizeStatement(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
