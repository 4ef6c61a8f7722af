package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/validate"
)

var (
	feedbackPositive bool
	feedbackNegative bool
	rankDomain       string
	verifyDomain     string
)

// knowledgeCmd represents the knowledge command
var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the local knowledge base",
	Long: `Manage the SQLite knowledge base of sources and facts that claims are
checked against first.

The database lives at knowledge.path (default ~/.veritas/knowledge.db).`,
}

var knowledgeImportCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Import sources and facts from a YAML seed file",
	Long: `Import upserts every source and fact of a seed file in one transaction.

Example seed:
  sources:
    - id: cdc-flu
      name: CDC
      title: Influenza (Flu)
      url: https://www.cdc.gov/flu
      kind: government
      credibility: 90
  facts:
    - statement: Influenza is a contagious respiratory illness
      domain: healthcare
      confidence: 95
      source: cdc-flu`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			stats, err := p.Store().ImportFile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Imported %d sources and %d facts into %s\n", stats.Sources, stats.Facts, p.Store().Path())
			return nil
		})
	},
}

var knowledgeFeedbackCmd = &cobra.Command{
	Use:   "feedback <source-id>",
	Short: "Adjust a source's credibility from feedback",
	Long: `Feedback moves a stored source's credibility by 5 points up (--positive)
or down (--negative), clamped to 0-100.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if feedbackPositive == feedbackNegative {
			return errors.New("exactly one of --positive or --negative is required")
		}
		fb := model.FeedbackNegative
		if feedbackPositive {
			fb = model.FeedbackPositive
		}

		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			updated, err := p.Feedback(ctx, args[0], fb)
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s credibility is now %d/100 (%s feedback)\n", args[0], updated, fb)
			return nil
		})
	},
}

var knowledgeRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-check stored source URLs",
	Long:  `Refresh HEAD-checks the URL of every stored source and records the time for those still reachable.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			results, err := p.RefreshSources(ctx)
			if err != nil {
				return err
			}
			statuses := make([]validate.LinkStatus, len(results))
			for i, r := range results {
				statuses[i] = r.Status
			}
			printLinkStatuses(statuses)
			return nil
		})
	},
}

var knowledgeRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank stored sources by credibility",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			ranked, err := p.RankSources(ctx, rankDomain)
			if err != nil {
				return err
			}
			if len(ranked) == 0 {
				fmt.Println("No sources in the knowledge base")
				return nil
			}

			fmt.Printf("%-4s %-24s %-13s %5s  %s\n", "#", "SOURCE", "KIND", "SCORE", "REASONING")
			for i, r := range ranked {
				fmt.Printf("%-4d %-24s %-13s %5d  %s\n", i+1,
					truncateCell(r.Source.ID, 24), r.Source.Kind, r.Assessment.OverallScore,
					strings.Join(r.Assessment.Reasoning, "; "))
			}
			return nil
		})
	},
}

var knowledgeVerifyCmd = &cobra.Command{
	Use:   "verify <statement>",
	Short: "Check one statement against the knowledge base only",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statement := strings.Join(args, " ")
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			cv, err := p.Verifier().Verify(ctx, statement, verifyDomain)
			if err != nil {
				return err
			}
			fmt.Printf("Confidence: %d/100\n", cv.Confidence)
			for _, s := range cv.Sources {
				if s.URL != "" {
					fmt.Printf("  ✓ %s (%s)\n", s.DisplayTitle(), s.URL)
				} else {
					fmt.Printf("  ✓ %s\n", s.DisplayTitle())
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeImportCmd)
	knowledgeCmd.AddCommand(knowledgeFeedbackCmd)
	knowledgeCmd.AddCommand(knowledgeRefreshCmd)
	knowledgeCmd.AddCommand(knowledgeRankCmd)
	knowledgeCmd.AddCommand(knowledgeVerifyCmd)

	knowledgeFeedbackCmd.Flags().BoolVar(&feedbackPositive, "positive", false, "the source was right")
	knowledgeFeedbackCmd.Flags().BoolVar(&feedbackNegative, "negative", false, "the source was wrong")
	knowledgeRankCmd.Flags().StringVar(&rankDomain, "domain", "", "rank for a domain vertical")
	knowledgeVerifyCmd.Flags().StringVar(&verifyDomain, "domain", "", "restrict facts to a domain")
}

// withPipeline runs fn against a pipeline built from the loaded configuration
func withPipeline(fn func(ctx context.Context, p *pipeline.Pipeline) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	return fn(ctx, p)
}

// printLinkStatuses prints one line per checked link
func printLinkStatuses(statuses []validate.LinkStatus) {
	if len(statuses) == 0 {
		fmt.Println("No links to check")
		return
	}

	dead := 0
	for _, s := range statuses {
		switch {
		case s.IsAccessible:
			fmt.Printf("  ✓ %s [%d]\n", s.URL, s.StatusCode)
		case s.IsDead:
			dead++
			fmt.Printf("  ✗ %s [%d]\n", s.URL, s.StatusCode)
		default:
			msg := s.Error
			if msg == "" {
				msg = fmt.Sprintf("status %d", s.StatusCode)
			}
			fmt.Printf("  ? %s (%s)\n", s.URL, msg)
		}
	}
	fmt.Fprintf(os.Stderr, "\n%d links checked, %d dead\n", len(statuses), dead)
}

func truncateCell(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
