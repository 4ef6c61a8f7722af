package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

const reportFooter = "_Generated by veritas. Confidence reflects agreement among the available sources, not a guarantee of truth._"

// Renderer writes fact-check results as JSON, Markdown or a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the result as indented JSON to path
func (r *Renderer) RenderJSON(result *model.FactCheckResult, path string) error {
	data, err := r.JSON(result)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// JSON returns the indented JSON encoding of the result
func (r *Renderer) JSON(result *model.FactCheckResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(result *model.FactCheckResult, path string) error {
	return writeFile(path, []byte(r.Markdown(result)))
}

// Markdown returns the Markdown report
func (r *Renderer) Markdown(result *model.FactCheckResult) string {
	var b strings.Builder

	domain := result.Domain
	if domain == "" {
		domain = "general"
	}
	mode := "standard"
	if result.StrictMode {
		mode = "strict"
	}

	b.WriteString("# Fact-Check Report\n\n")
	fmt.Fprintf(&b, "- **Verification ID:** `%s`\n", result.VerificationID)
	fmt.Fprintf(&b, "- **Checked:** %s\n", result.CheckedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Domain:** %s\n", domain)
	fmt.Fprintf(&b, "- **Mode:** %s\n", mode)
	fmt.Fprintf(&b, "- **Claims:** %d (%d verified, %d issues)\n", result.ClaimCount, len(result.VerifiedClaims), len(result.Issues))
	fmt.Fprintf(&b, "- **Overall confidence:** %d/100\n", result.OverallConfidence)
	fmt.Fprintf(&b, "- **Processing time:** %s\n\n", result.ProcessingTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "## Issues (%d)\n\n", len(result.Issues))
	if len(result.Issues) == 0 {
		b.WriteString("No issues found.\n\n")
	}
	for i, issue := range result.Issues {
		fmt.Fprintf(&b, "### %d. %s", i+1, issueHeading(issue.Kind))
		if issue.Location.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", issue.Location.Line)
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "> %s\n\n", issue.Statement)
		fmt.Fprintf(&b, "- **Confidence:** %d/100\n", issue.Confidence)
		if len(issue.Evidence) > 0 {
			b.WriteString("- **Evidence:**\n")
			for _, e := range issue.Evidence {
				fmt.Fprintf(&b, "  - %s\n", e)
			}
		}
		if issue.SuggestedCorrection != "" {
			fmt.Fprintf(&b, "- **Suggested correction:** %s\n", issue.SuggestedCorrection)
		}
		if len(issue.SourceIDs) > 0 {
			fmt.Fprintf(&b, "- **Sources:** %s\n", strings.Join(issue.SourceIDs, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Verified Claims (%d)\n\n", len(result.VerifiedClaims))
	if len(result.VerifiedClaims) > 0 {
		b.WriteString("| # | Statement | Confidence | Method |\n")
		b.WriteString("|---|-----------|------------|--------|\n")
		for i, vc := range result.VerifiedClaims {
			fmt.Fprintf(&b, "| %d | %s | %d | %s |\n", i+1, escapeCell(vc.Statement), vc.Confidence, vc.VerificationMethod)
		}
		b.WriteString("\n")
	}

	if len(result.SourcesUsed) > 0 {
		b.WriteString("## Sources Used\n\n")
		for _, id := range result.SourcesUsed {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString(reportFooter)
		b.WriteString("\n")
	}

	return b.String()
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(w io.Writer, result *model.FactCheckResult) {
	_, _ = fmt.Fprintf(w, "\nConfidence: %d/100  (%d claims: %d verified, %d issues)\n",
		result.OverallConfidence, result.ClaimCount, len(result.VerifiedClaims), len(result.Issues))

	for _, issue := range result.Issues {
		marker := "?"
		if issue.Kind == model.IssueContradictedClaim {
			marker = "✗"
		}
		loc := ""
		if issue.Location.Line > 0 {
			loc = fmt.Sprintf("line %d: ", issue.Location.Line)
		}
		_, _ = fmt.Fprintf(w, "  %s %s%s [%d]\n", marker, loc, truncate(issue.Statement, 100), issue.Confidence)
	}
	for _, vc := range result.VerifiedClaims {
		_, _ = fmt.Fprintf(w, "  ✓ %s [%d]\n", truncate(vc.Statement, 100), vc.Confidence)
	}
}

func issueHeading(kind model.IssueKind) string {
	if kind == model.IssueContradictedClaim {
		return "Contradicted claim"
	}
	return "Unsupported claim"
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
