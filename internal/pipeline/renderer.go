package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/ppiankov/rehost/internal/extract"
	"github.com/ppiankov/rehost/internal/model"
)

const (
	descriptionExcerptRunes = 280
	catalogLockFile         = ".rehost.lock"
)

// ErrCatalogLocked means another run is writing the same catalog directory
var ErrCatalogLocked = errors.New("catalog output directory is locked by another run")

// CatalogPage is one static page of the open-access catalog
type CatalogPage struct {
	Title      string           `json:"title"`
	Order      Order            `json:"order"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	TotalWorks int              `json:"total_works"`
	Next       string           `json:"next,omitempty"`
	Previous   string           `json:"previous,omitempty"`
	Facets     map[Order]string `json:"facets"`
	Generated  time.Time        `json:"generated"`
	Works      []CatalogEntry   `json:"works"`
}

// CatalogEntry is a work as published in the catalog
type CatalogEntry struct {
	Identifier  string             `json:"identifier"`
	Title       string             `json:"title"`
	Authors     []string           `json:"authors,omitempty"`
	Language    string             `json:"language,omitempty"`
	Rights      model.RightsStatus `json:"rights"`
	RightsName  string             `json:"rights_name"`
	Description string             `json:"description,omitempty"`
	Downloads   []model.Link       `json:"downloads"`
	Images      []model.Link       `json:"images,omitempty"`
}

// Renderer writes the catalog pages and Markdown reports
type Renderer struct {
	cfg model.CatalogConfig
	now func() time.Time
}

// NewRenderer creates a renderer for the catalog settings
func NewRenderer(cfg model.CatalogConfig) *Renderer {
	return &Renderer{cfg: cfg, now: time.Now}
}

// WriteCatalog writes every page of every ordering into the output
// directory and returns the written paths
func (r *Renderer) WriteCatalog(works []*model.Work, unfulfillable map[string]bool) ([]string, error) {
	defaultOrder, err := ParseOrder(r.cfg.DefaultOrder)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(r.cfg.OutputDir, catalogLockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, ErrCatalogLocked
	}
	defer func() { _ = lock.Unlock() }()

	entries := CatalogWorks(works, unfulfillable)
	facets := make(map[Order]string, len(Orders))
	for _, o := range Orders {
		facets[o] = PageFilename(r.cfg.BaseFilename, o, defaultOrder, 1)
	}

	var written []string
	for _, order := range Orders {
		pages := Paginate(SortWorks(entries, order), r.cfg.PageSize)
		for i, pageWorks := range pages {
			page := i + 1
			doc := CatalogPage{
				Title:      "Open Access",
				Order:      order,
				Page:       page,
				TotalPages: len(pages),
				TotalWorks: len(entries),
				Facets:     facets,
				Generated:  r.now().UTC(),
				Works:      make([]CatalogEntry, 0, len(pageWorks)),
			}
			if page < len(pages) {
				doc.Next = PageFilename(r.cfg.BaseFilename, order, defaultOrder, page+1)
			}
			if page > 1 {
				doc.Previous = PageFilename(r.cfg.BaseFilename, order, defaultOrder, page-1)
			}
			for _, w := range pageWorks {
				doc.Works = append(doc.Works, catalogEntry(w))
			}

			path := filepath.Join(r.cfg.OutputDir, PageFilename(r.cfg.BaseFilename, order, defaultOrder, page))
			if err := writeJSON(path, doc); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func catalogEntry(w *model.Work) CatalogEntry {
	entry := CatalogEntry{
		Identifier: w.Identifier,
		Title:      w.Title,
		Authors:    w.Authors,
		Language:   CanonicalLanguage(w.Language),
		Rights:     w.DefaultRightsURI,
		RightsName: w.DefaultRightsURI.Name(),
		Downloads:  w.OpenAccessLinks(),
		Images:     append(model.LinksWithRel(w.Links, model.RelImage), model.LinksWithRel(w.Links, model.RelThumbnail)...),
	}
	if d := bestDescription(w.Descriptions()); d != nil {
		entry.Description = extract.Excerpt(*d, descriptionExcerptRunes)
	}
	return entry
}

// bestDescription prefers the longest description, which after a merge
// is usually the full one from the alternate entry
func bestDescription(ds []model.Link) *model.Link {
	var best *model.Link
	for i := range ds {
		if best == nil || len(ds[i].Content) > len(best.Content) {
			best = &ds[i]
		}
	}
	return best
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteReport writes an import report as JSON
func (r *Renderer) WriteReport(report *model.ImportReport, path string) error {
	return writeJSON(path, report)
}

// RenderSummary renders a Markdown summary of one import
func (r *Renderer) RenderSummary(report *model.ImportReport, unfulfillable map[string]bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Import: %s\n\n", report.FeedURL)
	fmt.Fprintf(&b, "- Provider: %s\n", report.Provider)
	fmt.Fprintf(&b, "- Fetched: %s\n", report.FetchedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Works: %d\n", len(report.Works))
	fmt.Fprintf(&b, "- Failed entries: %d\n", len(report.Failures))
	fmt.Fprintf(&b, "- Improved descriptions: %d\n", report.Improved)
	fmt.Fprintf(&b, "- Catalog entries: %d\n", len(CatalogWorks(report.Works, unfulfillable)))
	if len(unfulfillable) > 0 {
		fmt.Fprintf(&b, "- Unfulfillable: %d\n", len(unfulfillable))
	}
	b.WriteString("\n## Rights\n\n| Status | Works |\n|---|---|\n")

	statuses := make([]model.RightsStatus, 0, len(report.RightsTally))
	for s := range report.RightsTally {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name() < statuses[j].Name() })
	for _, s := range statuses {
		fmt.Fprintf(&b, "| %s | %d |\n", s.Name(), report.RightsTally[s])
	}

	if len(report.Failures) > 0 {
		b.WriteString("\n## Failed entries\n\n")
		for _, f := range report.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Identifier, f.Error)
		}
	}

	b.WriteString("\n## Works\n\n")
	for _, w := range report.Works {
		fmt.Fprintf(&b, "### %s\n\n", w.Title)
		if len(w.Authors) > 0 {
			fmt.Fprintf(&b, "*%s*\n\n", strings.Join(w.Authors, ", "))
		}
		fmt.Fprintf(&b, "Rights: %s", w.DefaultRightsURI.Name())
		if unfulfillable[w.Identifier] {
			b.WriteString(" (unfulfillable)")
		}
		b.WriteString("\n\n")
		if d := bestDescription(w.Descriptions()); d != nil {
			fmt.Fprintf(&b, "> %s\n\n", extract.Excerpt(*d, descriptionExcerptRunes))
		}
	}
	return b.String()
}

// RenderReview renders the works whose rights must be checked by hand
func (r *Renderer) RenderReview(reports []*model.ImportReport) string {
	var b strings.Builder
	b.WriteString("# Rights review\n\n")

	total := 0
	for _, report := range reports {
		pending := report.NeedsReview()
		if len(pending) == 0 {
			continue
		}
		total += len(pending)
		fmt.Fprintf(&b, "## %s\n\n", report.FeedURL)
		for _, w := range pending {
			fmt.Fprintf(&b, "- %s (`%s`)\n", w.Title, w.Identifier)
			if w.Rights != "" {
				fmt.Fprintf(&b, "  - rights: %s\n", w.Rights)
			}
			if w.Source != "" {
				fmt.Fprintf(&b, "  - source: %s\n", w.Source)
			}
			if w.Issued != "" {
				fmt.Fprintf(&b, "  - issued: %s\n", w.Issued)
			}
		}
		b.WriteString("\n")
	}

	if total == 0 {
		b.WriteString("No works need review.\n")
	}
	return b.String()
}
