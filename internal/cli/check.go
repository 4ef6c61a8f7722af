package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
)

var (
	checkDomain     string
	checkStrict     bool
	outJSON         string
	outMD           string
	checkTimeout    time.Duration
	noExternal      bool
	noFallback      bool
	checkLinks      bool
	failUnder       int
	noFooter        bool
	checkNoCache    bool
	checkInsecure   bool
	checkHTTPProxy  string
	checkHTTPSProxy string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <file|url|->",
	Short: "Fact-check a single document",
	Long: `Check extracts factual claims from a document and verifies each one:
- Against the local knowledge base
- Against the enabled external sources (Wikipedia, OpenAlex, LLM)
- Blending both into one confidence per claim

Claims below the threshold (60, or 80 with --strict) are reported as issues.
Use "-" to read the document from stdin.

Example:
  veritas check article.md
  veritas check https://example.com/post --domain healthcare --strict
  veritas check report.html --json report.json --md report.md
  cat notes.txt | veritas check - --no-external`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Verification flags
	checkCmd.Flags().StringVar(&checkDomain, "domain", "", "domain vertical (healthcare, financial, legal, insurance)")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "strict mode (verified threshold 80 instead of 60)")
	checkCmd.Flags().BoolVar(&noExternal, "no-external", false, "check against the knowledge base only")
	checkCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "omit fallback evidence when no external source answers")
	checkCmd.Flags().BoolVar(&checkLinks, "links", false, "also check links cited by the document")
	checkCmd.Flags().IntVar(&failUnder, "fail-under", 0, "exit with an error when overall confidence is below this value")

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (\"-\" for stdout)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	checkCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// HTTP flags
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Minute, "overall check timeout")
	checkCmd.Flags().BoolVar(&checkNoCache, "no-cache", false, "disable the source result cache")
	checkCmd.Flags().BoolVar(&checkInsecure, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	checkCmd.Flags().StringVar(&checkHTTPProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	checkCmd.Flags().StringVar(&checkHTTPSProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	location := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	applyCheckFlags(cmd, cfg)

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", location)
		fmt.Fprintf(os.Stderr, "Domain: %s\n", displayDomain(cfg.Verification.Domain))
		fmt.Fprintf(os.Stderr, "Strict: %v\n", cfg.Verification.StrictMode)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	content, err := readDocument(ctx, p, location, cfg.HTTP.MaxBodyBytes)
	if err != nil {
		return err
	}

	result, err := p.Check(ctx, content)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if err := writeOutputs(p.Renderer(), result, outJSON, outMD); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if outJSON != "-" {
		p.Renderer().RenderSummary(os.Stdout, result)
	}

	if checkLinks {
		baseURL := ""
		if isRemote(location) {
			baseURL = location
		}
		statuses, err := p.CheckLinks(ctx, content, baseURL)
		if err != nil {
			return err
		}
		printLinkStatuses(statuses)
	}

	if failUnder > 0 && result.OverallConfidence < failUnder {
		return fmt.Errorf("overall confidence %d is below %d", result.OverallConfidence, failUnder)
	}
	return nil
}

// applyCheckFlags overrides configuration with explicitly set flags
func applyCheckFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("domain") {
		cfg.Verification.Domain = checkDomain
	}
	if flags.Changed("strict") {
		cfg.Verification.StrictMode = checkStrict
	}
	if noExternal {
		cfg.Sources.Wikipedia.Enabled = false
		cfg.Sources.OpenAlex.Enabled = false
		cfg.Sources.LLM.Enabled = false
	}
	if noFallback {
		cfg.Sources.FallbackEnabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !checkNoCache
	}
	if checkInsecure {
		cfg.HTTP.InsecureTLS = true
	}
	if checkHTTPProxy != "" {
		cfg.HTTP.HTTPProxy = checkHTTPProxy
	}
	if checkHTTPSProxy != "" {
		cfg.HTTP.HTTPSProxy = checkHTTPSProxy
	}
}

// readDocument loads location, reading stdin for "-"
func readDocument(ctx context.Context, p *pipeline.Pipeline, location string, maxBytes int64) (string, error) {
	if location != "-" {
		return p.Load(ctx, location)
	}

	var r io.Reader = os.Stdin
	if maxBytes > 0 {
		r = io.LimitReader(os.Stdin, maxBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// writeOutputs writes the requested report files; jsonPath "-" prints JSON to stdout
func writeOutputs(r *pipeline.Renderer, result *model.FactCheckResult, jsonPath, mdPath string) error {
	switch jsonPath {
	case "":
	case "-":
		data, err := r.JSON(result)
		if err != nil {
			return err
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	default:
		if err := r.RenderJSON(result, jsonPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", jsonPath)
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(result, mdPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", mdPath)
	}
	return nil
}

func displayDomain(domain string) string {
	if domain == "" {
		return "general"
	}
	return domain
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
