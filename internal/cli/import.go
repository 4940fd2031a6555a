package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rehost/internal/logger"
	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/pipeline"
	"github.com/ppiankov/rehost/internal/validate"
)

var (
	provider     string
	outJSON      string
	outMD        string
	inputFile    string
	writeCatalog bool
	checkLinks   bool
	noCache      bool
	timeout      time.Duration
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <feed-url>",
	Short: "Import one OPDS feed and publish its open-access works",
	Long: `Import fetches an OPDS feed and for every entry:
- shapes its links for the provider (FeedBooks EPUBs become open-access downloads)
- decides whether it may be rehosted in the US and under which license
- replaces short summaries with the full description from the entry's own document

Entries with an unparseable publication year are reported and skipped.

Example:
  rehost import http://www.feedbooks.com/books/top.atom
  rehost import http://www.feedbooks.com/books/top.atom --catalog --check-links
  rehost import http://example.org/opds.xml --file saved.atom --md summary.md`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&provider, "provider", "", "force a provider adapter (feedbooks, opds)")
	importCmd.Flags().StringVar(&outJSON, "json", "", "write the import report as JSON")
	importCmd.Flags().StringVar(&outMD, "md", "", "write a Markdown summary")
	importCmd.Flags().StringVar(&inputFile, "file", "", "read the feed from a local file; the argument is its base URL")
	importCmd.Flags().BoolVar(&writeCatalog, "catalog", false, "write the open-access catalog pages")
	importCmd.Flags().BoolVar(&checkLinks, "check-links", false, "drop works whose downloads are unreachable")
	importCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the representation cache")
	importCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall import timeout")
}

// session bundles what every command needs
type session struct {
	cfg      *model.Config
	log      logger.Logger
	importer *pipeline.Importer
	renderer *pipeline.Renderer
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("no-cache"); f != nil && f.Changed {
		cfg.Cache.Enabled = !noCache
	}
	if f := cmd.Flags().Lookup("check-links"); f != nil && f.Changed {
		cfg.Catalog.CheckLinks = checkLinks
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	importer := pipeline.NewImporter(cfg, log)
	if provider != "" {
		if err := importer.SetProvider(provider); err != nil {
			return nil, err
		}
	}

	return &session{
		cfg:      cfg,
		log:      log,
		importer: importer,
		renderer: pipeline.NewRenderer(cfg.Catalog),
	}, nil
}

// close releases the cache and flushes the logger
func (s *session) close() {
	if err := s.importer.Close(); err != nil {
		s.log.Warn("closing cache", logger.Error(err))
	}
	_ = s.log.Sync()
}

// unfulfillable checks downloads when link checking is enabled
func (s *session) unfulfillable(ctx context.Context, works []*model.Work) map[string]bool {
	if !s.cfg.Catalog.CheckLinks {
		return nil
	}
	checker := validate.NewChecker(s.cfg.HTTP, s.cfg.Concurrency.LinkCheckWorkers, s.importer.Limiter())

	_, dead := checker.CheckWorks(ctx, pipeline.CatalogWorks(works, nil))
	for id := range dead {
		s.log.Warn("unfulfillable work", logger.String("identifier", id))
	}
	return dead
}

func (s *session) publish(ctx context.Context, works []*model.Work) (map[string]bool, error) {
	dead := s.unfulfillable(ctx, works)
	if !writeCatalog {
		return dead, nil
	}
	written, err := s.renderer.WriteCatalog(works, dead)
	if err != nil {
		return dead, fmt.Errorf("write catalog: %w", err)
	}
	s.log.Info("wrote catalog", logger.Int("pages", len(written)), logger.String("dir", s.cfg.Catalog.OutputDir))
	return dead, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	feedURL := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var report *model.ImportReport
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("read feed file: %w", err)
		}
		report, err = s.importer.ImportDocument(ctx, feedURL, data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
	} else {
		report, err = s.importer.ImportFeed(ctx, feedURL)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
	}

	dead, err := s.publish(ctx, report.Works)
	if err != nil {
		return err
	}

	if outJSON != "" {
		if err := s.renderer.WriteReport(report, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	summary := s.renderer.RenderSummary(report, dead)
	if outMD != "" {
		if err := os.WriteFile(outMD, []byte(summary), 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	} else {
		fmt.Print(summary)
	}
	return nil
}
