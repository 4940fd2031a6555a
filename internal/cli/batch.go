package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/worker"
)

var (
	concurrency  int
	reportDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Import many OPDS feeds from a file in parallel",
	Long: `Batch imports every feed URL listed in a file (one per line, # comments
allowed), writes a JSON report and Markdown summary per feed, a combined
rights review list, and optionally one catalog covering all feeds.

Example:
  rehost batch feeds.txt
  rehost batch feeds.txt --concurrency 2 --report-dir ./reports --catalog`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent feeds (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&reportDir, "report-dir", "./rehost-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().StringVar(&provider, "provider", "", "force a provider adapter (feedbooks, opds)")
	batchCmd.Flags().BoolVar(&writeCatalog, "catalog", false, "write one open-access catalog for all feeds")
	batchCmd.Flags().BoolVar(&checkLinks, "check-links", false, "drop works whose downloads are unreachable")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the representation cache")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	workers := concurrency
	if workers <= 0 {
		workers = s.cfg.Concurrency.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Report dir:   %s\n", reportDir)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(s.importer, workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	var reports []*model.ImportReport
	var works []*model.Work
	var rows [][]string
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			rows = append(rows, []string{result.FeedURL, "-", "-", "failed: " + result.Error.Error()})
			continue
		}
		reports = append(reports, result.Report)
		works = append(works, result.Report.Works...)
	}

	dead, err := s.publish(ctx, works)
	if err != nil {
		return err
	}

	for _, report := range reports {
		slug := reportFilename(report.FeedURL)
		status := "ok"
		if err := s.renderer.WriteReport(report, filepath.Join(reportDir, slug+".json")); err != nil {
			status = "write JSON: " + err.Error()
		} else {
			summary := s.renderer.RenderSummary(report, dead)
			if err := os.WriteFile(filepath.Join(reportDir, slug+".md"), []byte(summary), 0o644); err != nil {
				status = "write Markdown: " + err.Error()
			}
		}
		rows = append(rows, []string{
			report.FeedURL,
			strconv.Itoa(len(report.Works)),
			strconv.Itoa(len(report.NeedsReview())),
			status,
		})
	}

	fmt.Fprintln(os.Stderr, renderTable([]string{"Feed", "Works", "Review", "Status"}, rows, 1, 2))

	reviewPath := filepath.Join(reportDir, "review.md")
	if err := os.WriteFile(reviewPath, []byte(s.renderer.RenderReview(reports)), 0o644); err != nil {
		return fmt.Errorf("write review: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d feeds\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", len(reports))
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Review:    %s\n", reviewPath)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// reportFilename gives each feed URL its own report name: the readable
// slug plus a short hash of the full URL
func reportFilename(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return sanitizeFilename(feedURL) + "-" + hex.EncodeToString(sum[:4])
}

// sanitizeFilename turns a feed URL into a safe file name
func sanitizeFilename(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")

	s = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"&", "_",
		"=", "_",
		" ", "-",
	).Replace(s)
	s = strings.Trim(s, "_")

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "feed"
	}
	return s
}
