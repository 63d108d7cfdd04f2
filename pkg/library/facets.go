package library

import (
	"slices"

	"github.com/shishobooks/folio/pkg/models"
)

// GroupFacet is one user-defined group offered as a filter.
type GroupFacet struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
	Count int     `json:"count"`
}

// ExtractGroupFacets lists the distinct non-empty group names across all
// records. The color comes from the most recently added record of the group
// that has one, whatever order the records are passed in. Facets are ordered
// by record count, largest first, ties in discovery order.
func ExtractGroupFacets(records []*models.Book) []GroupFacet {
	facets := []*GroupFacet{}
	byName := map[string]*GroupFacet{}
	colorAddedAt := map[string]int64{}

	for _, r := range records {
		name := models.StringValue(r.Group)
		if name == "" {
			continue
		}
		f, ok := byName[name]
		if !ok {
			f = &GroupFacet{Name: name}
			byName[name] = f
			facets = append(facets, f)
		}
		f.Count++
		if c := models.StringValue(r.GroupColor); c != "" {
			if at, seen := colorAddedAt[name]; seen && r.AddedAt < at {
				continue
			}
			color := c
			f.Color = &color
			colorAddedAt[name] = r.AddedAt
		}
	}

	slices.SortStableFunc(facets, func(a, b *GroupFacet) int {
		return b.Count - a.Count
	})

	out := make([]GroupFacet, 0, len(facets))
	for _, f := range facets {
		out = append(out, *f)
	}
	return out
}
