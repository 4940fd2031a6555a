package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/rehost/internal/model"
)

// Importer imports one OPDS feed
type Importer interface {
	ImportFeed(ctx context.Context, feedURL string) (*model.ImportReport, error)
}

// ImportJob imports a single feed
type ImportJob struct {
	Index    int
	FeedURL  string
	Importer Importer
}

// Execute executes the import job
func (j *ImportJob) Execute(ctx context.Context) Result {
	report, err := j.Importer.ImportFeed(ctx, j.FeedURL)
	return &ImportResult{
		Index:   j.Index,
		FeedURL: j.FeedURL,
		Report:  report,
		Error:   err,
	}
}

// ImportResult is the outcome of one feed import
type ImportResult struct {
	Index   int
	FeedURL string
	Report  *model.ImportReport
	Error   error
}

// GetError returns the error from the import
func (r *ImportResult) GetError() error {
	return r.Error
}

// BatchProcessor imports multiple feeds concurrently
type BatchProcessor struct {
	importer    Importer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(importer Importer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		importer:    importer,
		concurrency: concurrency,
	}
}

// ProcessURLs imports the feeds and returns results in input order.
// Feeds never started because ctx was cancelled carry ctx's error.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, feedURLs []string) []*ImportResult {
	if len(feedURLs) == 0 {
		return []*ImportResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, feedURL := range feedURLs {
		if ctx.Err() != nil || !pool.Submit(&ImportJob{Index: i, FeedURL: feedURL, Importer: b.importer}) {
			break
		}
	}

	var results []Result
	if ctx.Err() != nil {
		results = pool.Shutdown()
	} else {
		results = pool.Wait()
	}

	ordered := make([]*ImportResult, len(feedURLs))
	for _, result := range results {
		r := result.(*ImportResult)
		ordered[r.Index] = r
	}

	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("import not run")
			}
			ordered[i] = &ImportResult{Index: i, FeedURL: feedURLs[i], Error: err}
		}
	}
	return ordered
}

// ProcessFile reads feed URLs from a file and imports them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ImportResult, error) {
	feedURLs, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, feedURLs), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
