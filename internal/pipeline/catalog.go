package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/rehost/internal/model"
)

// Order is a catalog facet ordering
type Order string

const (
	OrderTitle  Order = "title"
	OrderAuthor Order = "author"
)

// Orders lists the supported orderings
var Orders = []Order{OrderTitle, OrderAuthor}

// ParseOrder validates an ordering name
func ParseOrder(s string) (Order, error) {
	o := Order(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Orders {
		if o == known {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown order: %q (supported: title, author)", s)
}

// CatalogWorks filters works down to what the open-access catalog may
// publish: an open-access rights status, at least one open-access download
// and not marked unfulfillable
func CatalogWorks(works []*model.Work, unfulfillable map[string]bool) []*model.Work {
	var out []*model.Work
	for _, w := range works {
		if !w.DefaultRightsURI.OpenAccess() {
			continue
		}
		if len(w.OpenAccessLinks()) == 0 || unfulfillable[w.Identifier] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// SortWorks returns a copy of works ordered by the facet; ties fall back
// to the identifier so output is stable across runs
func SortWorks(works []*model.Work, order Order) []*model.Work {
	sorted := make([]*model.Work, len(works))
	copy(sorted, works)

	fold := cases.Fold()
	key := func(w *model.Work) string {
		if order == OrderAuthor && len(w.Authors) > 0 {
			return fold.String(w.Authors[0]) + "\x00" + fold.String(w.Title)
		}
		return fold.String(w.Title)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki < kj
		}
		return sorted[i].Identifier < sorted[j].Identifier
	})
	return sorted
}

// CanonicalLanguage normalizes a BCP 47 tag; unparseable values are kept as given
func CanonicalLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return t.String()
}

// Paginate splits works into pages of size; there is always at least one page
func Paginate(works []*model.Work, size int) [][]*model.Work {
	if size <= 0 || len(works) <= size {
		return [][]*model.Work{works}
	}
	var pages [][]*model.Work
	for start := 0; start < len(works); start += size {
		end := start + size
		if end > len(works) {
			end = len(works)
		}
		pages = append(pages, works[start:end])
	}
	return pages
}

// PageFilename names a static catalog page: <base>[_<order>][_<page>].json.
// The order is omitted for the default ordering and the page for page 1.
func PageFilename(base string, order, defaultOrder Order, page int) string {
	name := base
	if order != defaultOrder {
		name += "_" + string(order)
	}
	if page > 1 {
		name += "_" + strconv.Itoa(page)
	}
	return name + ".json"
}
