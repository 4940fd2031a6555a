package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rehost/internal/model"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <feed-url>",
	Short: "List the works of a feed whose rights need manual review",
	Long: `Audit imports a feed without publishing anything and prints the works
whose rehosting status could not be determined, with the signals the
provider supplied, so they can be checked by hand.

Example:
  rehost audit http://www.feedbooks.com/books/top.atom`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&provider, "provider", "", "force a provider adapter (feedbooks, opds)")
	auditCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the representation cache")
	auditCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall import timeout")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	report, err := s.importer.ImportFeed(ctx, args[0])
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	fmt.Print(s.renderer.RenderReview([]*model.ImportReport{report}))
	for _, f := range report.Failures {
		fmt.Printf("- failed: %s: %s\n", f.Identifier, f.Error)
	}
	return nil
}
