package library

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey string

const (
	SortRecent SortKey = "recent"
	SortTitle  SortKey = "title"
	SortAuthor SortKey = "author"
	SortSeries SortKey = "series"
	SortGroup  SortKey = "group"
)

var sortKeys = []SortKey{SortRecent, SortTitle, SortAuthor, SortSeries, SortGroup}

// ParseSortKey maps user input to a SortKey. An empty string means recent.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortRecent, nil
	}
	for _, k := range sortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errcodes.ValidationError(`"sort" must be one of recent, title, author, series, group`)
}

// Query selects and orders groups. A nil Group means no group filter.
type Query struct {
	Text    string
	Group   *string
	Sort    SortKey
	Reverse bool
}

// collators wraps the two orderings used for display. A collate.Collator
// keeps internal buffers, so a fresh set is built per call.
type collators struct {
	text    *collate.Collator
	numeric *collate.Collator
}

func newCollators() *collators {
	return &collators{
		text:    collate.New(language.English, collate.IgnoreCase),
		numeric: collate.New(language.English, collate.IgnoreCase, collate.Numeric),
	}
}

// FilterAndSort returns the groups matching q in q's order. The input slice
// is not modified.
func FilterAndSort(groups []*BookGroup, q Query) []*BookGroup {
	out := make([]*BookGroup, 0, len(groups))
	needle := normalize(q.Text)
	for _, g := range groups {
		if matchesText(g, needle) && matchesGroup(g, q.Group) {
			out = append(out, g)
		}
	}

	c := newCollators()
	slices.SortStableFunc(out, func(a, b *BookGroup) int {
		return c.compare(a, b, q.Sort, q.Reverse)
	})
	return out
}

func matchesText(g *BookGroup, needle string) bool {
	if needle == "" {
		return true
	}
	r := g.Representative()
	fields := []string{
		r.DisplayTitle(),
		r.DisplayAuthor(),
		models.StringValue(r.SeriesTitle),
		models.StringValue(r.Group),
	}
	for _, f := range fields {
		if strings.Contains(normalize(f), needle) {
			return true
		}
	}
	return false
}

func matchesGroup(g *BookGroup, group *string) bool {
	if group == nil {
		return true
	}
	return models.StringValue(g.Representative().Group) == *group
}

// compare orders a before b. reverse flips the comparison on the sort key
// itself, but books missing a series or group stay at the end either way.
func (c *collators) compare(a, b *BookGroup, key SortKey, reverse bool) int {
	flip := func(n int) int {
		if reverse {
			return -n
		}
		return n
	}
	ra, rb := a.Representative(), b.Representative()

	switch key {
	case SortTitle:
		return flip(c.text.CompareString(ra.DisplayTitle(), rb.DisplayTitle()))
	case SortAuthor:
		return flip(c.text.CompareString(ra.DisplayAuthor(), rb.DisplayAuthor()))
	case SortSeries:
		sa, sb := models.StringValue(ra.SeriesTitle), models.StringValue(rb.SeriesTitle)
		switch {
		case sa != "" && sb == "":
			return -1
		case sa == "" && sb != "":
			return 1
		case sa == "" && sb == "":
			return flip(c.text.CompareString(ra.DisplayTitle(), rb.DisplayTitle()))
		}
		if n := c.numeric.CompareString(sa, sb); n != 0 {
			return flip(n)
		}
		return flip(c.numeric.CompareString(models.StringValue(ra.SeriesIndex), models.StringValue(rb.SeriesIndex)))
	case SortGroup:
		ga, gb := models.StringValue(ra.Group), models.StringValue(rb.Group)
		switch {
		case ga != "" && gb == "":
			return -1
		case ga == "" && gb != "":
			return 1
		}
		if n := c.text.CompareString(ga, gb); n != 0 {
			return flip(n)
		}
		return c.text.CompareString(ra.DisplayTitle(), rb.DisplayTitle())
	default:
		return flip(cmp.Compare(b.LatestAddedAt(), a.LatestAddedAt()))
	}
}
