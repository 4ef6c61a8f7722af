package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
)

var (
	probeJSON        bool
	queryDomain      string
	sourceFbPositive bool
	sourceFbNegative bool
	sourceFbDomain   string
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the external knowledge sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources and their weights",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			snap := p.Manager().Registry().Snapshot()
			if len(snap.Adapters) == 0 {
				fmt.Println("No external sources enabled")
				return nil
			}

			fmt.Printf("%-12s %11s %7s  %s\n", "SOURCE", "RELIABILITY", "WEIGHT", "DOMAIN WEIGHTS")
			for _, a := range snap.Adapters {
				cfg, _ := snap.Config(a.Name())
				fmt.Printf("%-12s %11d %7.2f  %s\n", a.Name(), a.Reliability(), cfg.BaseWeight, formatDomainWeights(cfg.DomainWeights))
			}
			return nil
		})
	},
}

var sourcesProbeCmd = &cobra.Command{
	Use:   "probe <statement>...",
	Short: "Ask every source about the statements",
	Long: `Probe reports availability, weights and raw answers of every registered
source, without consolidation. Useful to diagnose a misbehaving source.

Example:
  veritas sources probe "The Eiffel Tower is located in Paris"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			reports := p.Probe(ctx, args)

			if probeJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}

			for _, r := range reports {
				state := "✓ available"
				if !r.Available {
					state = "✗ unavailable"
				}
				fmt.Printf("%s  %s  (weight %.2f, %s)\n", r.Name, state, r.BaseWeight, r.Duration)
				if r.Error != "" {
					fmt.Printf("    error: %s\n", r.Error)
				}
				for i, res := range r.Results {
					verdict := "unsupported"
					if res.IsSupported {
						verdict = "supported"
					}
					fmt.Printf("    [%d] %s, confidence %d, %d sources\n", i+1, verdict, res.Confidence, len(res.Sources))
				}
			}
			return nil
		})
	},
}

var sourcesQueryCmd = &cobra.Command{
	Use:   "query <statement>",
	Short: "Query all sources and print the consolidated verdict",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			res := p.Manager().QueryAll(ctx, model.SourceQuery{
				Statement: strings.Join(args, " "),
				Domain:    queryDomain,
			})

			fmt.Printf("Supported:   %v\n", res.IsSupported)
			fmt.Printf("Confidence:  %d/100\n", res.OverallConfidence)
			fmt.Printf("Available:   %s\n", strings.Join(res.AvailableSources, ", "))
			fmt.Printf("Unavailable: %s\n", strings.Join(res.UnavailableSources, ", "))
			for _, e := range res.Evidence {
				fmt.Printf("  + %s\n", e)
			}
			for _, c := range res.Contradictions {
				fmt.Printf("  - %s\n", c)
			}
			for _, s := range res.Sources {
				fmt.Printf("  · %s %s\n", s.DisplayTitle(), s.URL)
			}
			return nil
		})
	},
}

var sourcesFeedbackCmd = &cobra.Command{
	Use:   "feedback <source>",
	Short: "Adjust an external source's weight from feedback",
	Long: `Feedback moves a source's base weight (or its weight for --domain) by 0.05
and saves the new weight to the config file, so later runs keep it.

Example:
  veritas sources feedback wikipedia --negative --domain healthcare
  veritas sources feedback openalex --positive`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sourceFbPositive == sourceFbNegative {
			return errors.New("exactly one of --positive or --negative is required")
		}
		fb := model.FeedbackNegative
		if sourceFbPositive {
			fb = model.FeedbackPositive
		}

		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
			rc, err := p.SourceFeedback(args[0], fb, sourceFbDomain)
			if err != nil {
				return err
			}

			name := strings.ToLower(strings.TrimSpace(args[0]))
			domain := strings.ToLower(strings.TrimSpace(sourceFbDomain))
			w := rc.BaseWeight
			if domain != "" {
				w = rc.DomainWeights[domain]
			}

			path, err := configPath()
			if err != nil {
				return err
			}
			if err := saveSourceWeight(path, name, domain, w); err != nil {
				return fmt.Errorf("save weight: %w", err)
			}

			fmt.Printf("✓ %s weight is now %.2f for %s (%s feedback)\n", name, w, displayDomain(domain), fb)
			fmt.Fprintf(os.Stderr, "  saved to %s\n", path)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesProbeCmd)
	sourcesCmd.AddCommand(sourcesQueryCmd)
	sourcesCmd.AddCommand(sourcesFeedbackCmd)

	sourcesProbeCmd.Flags().BoolVar(&probeJSON, "json", false, "print the reports as JSON")
	sourcesQueryCmd.Flags().StringVar(&queryDomain, "domain", "", "domain vertical for weighting")
	sourcesFeedbackCmd.Flags().BoolVar(&sourceFbPositive, "positive", false, "the source was right")
	sourcesFeedbackCmd.Flags().BoolVar(&sourceFbNegative, "negative", false, "the source was wrong")
	sourcesFeedbackCmd.Flags().StringVar(&sourceFbDomain, "domain", "", "adjust the weight for one domain vertical only")
}

// configPath is the config file in use, else the default location
func configPath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error finding home directory: %w", err)
	}
	return filepath.Join(home, ".veritas", "config.yaml"), nil
}

// saveSourceWeight writes sources.<name>.weight (or domain_weights.<domain>)
// into the YAML config at path, keeping every other key. Comments are not
// preserved.
func saveSourceWeight(path, name, domain string, weight float64) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	adapter := childMap(childMap(doc, "sources"), name)
	if domain == "" {
		adapter["weight"] = weight
	} else {
		childMap(adapter, "domain_weights")[domain] = weight
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}

func childMap(m map[string]any, key string) map[string]any {
	if c, ok := m[key].(map[string]any); ok {
		return c
	}
	c := map[string]any{}
	m[key] = c
	return c
}

func formatDomainWeights(weights map[string]float64) string {
	if len(weights) == 0 {
		return "-"
	}
	domains := make([]string, 0, len(weights))
	for d := range weights {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = fmt.Sprintf("%s=%.2f", d, weights[d])
	}
	return strings.Join(parts, " ")
}
