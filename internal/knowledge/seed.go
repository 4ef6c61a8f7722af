package knowledge

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/model"
)

// Seed is a YAML document of curated sources and their facts
type Seed struct {
	Sources []SeedSource `yaml:"sources"`
	Facts   []SeedFact   `yaml:"facts"`
}

// SeedSource is a source entry in a seed file
type SeedSource struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Title        string     `yaml:"title,omitempty"`
	URL          string     `yaml:"url,omitempty"`
	Kind         string     `yaml:"kind"`
	Credibility  *int       `yaml:"credibility,omitempty"`
	Author       string     `yaml:"author,omitempty"`
	PublishedAt  *time.Time `yaml:"published_at,omitempty"`
	LastVerified *time.Time `yaml:"last_verified,omitempty"`
}

// SeedFact is a fact entry in a seed file
type SeedFact struct {
	Statement  string `yaml:"statement"`
	Domain     string `yaml:"domain,omitempty"`
	Stance     string `yaml:"stance,omitempty"` // supports (default) or contradicts
	Confidence int    `yaml:"confidence"`
	Source     string `yaml:"source"`
}

// ImportStats counts what an import wrote
type ImportStats struct {
	Sources int
	Facts   int
}

// LoadSeed parses a seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Import writes every source and fact in one transaction. Facts may only
// reference sources in the seed or already stored.
func (s *Store) Import(ctx context.Context, seed *Seed) (ImportStats, error) {
	var stats ImportStats
	if seed == nil {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ss := range seed.Sources {
		src := model.Source{
			ID:               ss.ID,
			Name:             ss.Name,
			Title:            ss.Title,
			URL:              ss.URL,
			Kind:             model.ParseSourceKind(ss.Kind),
			Author:           ss.Author,
			PublishedAt:      ss.PublishedAt,
			LastVerified:     ss.LastVerified,
		}
		if ss.Credibility != nil {
			src.CredibilityScore, src.Scored = *ss.Credibility, true
		}
		if err := addSource(ctx, tx, src); err != nil {
			return ImportStats{}, err
		}
		stats.Sources++
	}

	for i, sf := range seed.Facts {
		fact := Fact{
			Statement:  sf.Statement,
			Domain:     sf.Domain,
			Stance:     Stance(sf.Stance),
			Confidence: sf.Confidence,
			SourceID:   sf.Source,
		}
		if _, err := addFact(ctx, tx, fact); err != nil {
			return ImportStats{}, fmt.Errorf("fact %d: %w", i+1, err)
		}
		stats.Facts++
	}

	if err := tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("commit import: %w", err)
	}

	s.logger.Info("Knowledge seed imported",
		zap.Int("sources", stats.Sources),
		zap.Int("facts", stats.Facts),
	)
	return stats, nil
}

// ImportFile loads and imports a seed file
func (s *Store) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return ImportStats{}, err
	}
	return s.Import(ctx, seed)
}
