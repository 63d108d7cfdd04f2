package library

import (
	"slices"
	"strings"

	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
)

type LayoutMode string

const (
	LayoutSeries LayoutMode = "series"
	LayoutGroup  LayoutMode = "group"
)

const (
	SeriesFallbackSection = "Other Stories"
	GroupFallbackSection  = "Ungrouped"
)

func ParseLayoutMode(s string) (LayoutMode, error) {
	switch LayoutMode(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutSeries:
		return LayoutSeries, nil
	case LayoutGroup:
		return LayoutGroup, nil
	}
	return "", errcodes.ValidationError(`"mode" must be one of series, group`)
}

// Section is a named shelf of groups.
type Section struct {
	Name   string       `json:"name"`
	Groups []*BookGroup `json:"groups"`
}

// LayoutBySeriesOrGroup buckets groups by their representative's series title
// or group. Named sections are alphabetical and the fallback section for
// groups with neither comes last. A series or group named like the fallback
// shares its section. Groups keep their input order inside a section.
func LayoutBySeriesOrGroup(groups []*BookGroup, mode LayoutMode) []Section {
	fallback := SeriesFallbackSection
	if mode == LayoutGroup {
		fallback = GroupFallbackSection
	}

	named := []*Section{}
	byName := map[string]*Section{}
	var rest *Section

	for _, g := range groups {
		r := g.Representative()
		name := models.StringValue(r.SeriesTitle)
		if mode == LayoutGroup {
			name = models.StringValue(r.Group)
		}

		if name == "" || name == fallback {
			if rest == nil {
				rest = &Section{Name: fallback}
			}
			rest.Groups = append(rest.Groups, g)
			continue
		}

		s, ok := byName[name]
		if !ok {
			s = &Section{Name: name}
			byName[name] = s
			named = append(named, s)
		}
		s.Groups = append(s.Groups, g)
	}

	c := newCollators()
	slices.SortStableFunc(named, func(a, b *Section) int {
		return c.text.CompareString(a.Name, b.Name)
	})

	out := make([]Section, 0, len(named)+1)
	for _, s := range named {
		out = append(out, *s)
	}
	if rest != nil {
		out = append(out, *rest)
	}
	return out
}
