package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// DocumentChecker fact-checks one document by path or URL
type DocumentChecker interface {
	CheckDocument(ctx context.Context, location string) (*model.FactCheckResult, error)
}

// CheckOutcome is the result of checking one document in a batch
type CheckOutcome struct {
	Index    int
	Location string
	Result   *model.FactCheckResult
	Err      error
}

// checkJob checks one document
type checkJob struct {
	index    int
	location string
	checker  DocumentChecker
}

func (j checkJob) Execute(ctx context.Context) CheckOutcome {
	result, err := j.checker.CheckDocument(ctx, j.location)
	return CheckOutcome{
		Index:    j.index,
		Location: j.location,
		Result:   result,
		Err:      err,
	}
}

// BatchProcessor checks many documents concurrently
type BatchProcessor struct {
	checker     DocumentChecker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker DocumentChecker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessLocations checks every location; outcomes keep input order
func (b *BatchProcessor) ProcessLocations(ctx context.Context, locations []string) []CheckOutcome {
	if len(locations) == 0 {
		return []CheckOutcome{}
	}

	jobs := make([]Job[CheckOutcome], len(locations))
	for i, loc := range locations {
		jobs[i] = checkJob{index: i, location: loc, checker: b.checker}
	}

	outcomes := NewPool[CheckOutcome](ctx, b.concurrency).Run(jobs)

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Index < outcomes[j].Index
	})
	return outcomes
}

// ProcessFile reads locations from a file and checks them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]CheckOutcome, error) {
	locations, err := ReadLocationsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}

	return b.ProcessLocations(ctx, locations), nil
}

// ReadLocationsFromFile reads document paths or URLs, one per line.
// Blank lines and # comments are skipped; duplicates are dropped.
func ReadLocationsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var locations []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			locations = append(locations, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return locations, nil
}
