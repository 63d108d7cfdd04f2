package bulk

import (
	"github.com/shishobooks/folio/pkg/models"
)

// nameColors holds the color each group name and series title already has in
// the library, taken from the most recently added record carrying one.
type nameColors struct {
	group  map[string]*models.Book
	series map[string]*models.Book
}

func colorsByName(records []*models.Book) nameColors {
	nc := nameColors{group: map[string]*models.Book{}, series: map[string]*models.Book{}}
	for _, r := range records {
		if name := models.StringValue(r.Group); name != "" && models.StringValue(r.GroupColor) != "" {
			if cur, ok := nc.group[name]; !ok || r.AddedAt > cur.AddedAt {
				nc.group[name] = r
			}
		}
		if title := models.StringValue(r.SeriesTitle); title != "" && models.StringValue(r.SeriesColor) != "" {
			if cur, ok := nc.series[title]; !ok || r.AddedAt > cur.AddedAt {
				nc.series[title] = r
			}
		}
	}
	return nc
}

// groupColor is nil when no record in the group has a color.
func (nc nameColors) groupColor(name string) *string {
	if r, ok := nc.group[name]; ok {
		return models.NonEmpty(*r.GroupColor)
	}
	return nil
}

func (nc nameColors) seriesColor(title string) *string {
	if r, ok := nc.series[title]; ok {
		return models.NonEmpty(*r.SeriesColor)
	}
	return nil
}

// needsColor reports whether req sets a group or series without saying which
// color it should have.
func needsColor(req Request) bool {
	return (req.Group.Mode == ModeSet && req.Group.Color == nil) ||
		(req.Series.Mode == ModeSet && req.Series.Color == nil)
}

// inheritColors gives a group or series set without a color the color that
// name already has, so every record sharing the name ends up matching.
func inheritColors(req Request, records []*models.Book) Request {
	nc := colorsByName(records)
	if req.Group.Mode == ModeSet && req.Group.Color == nil {
		req.Group.Color = nc.groupColor(req.Group.Name)
	}
	if req.Series.Mode == ModeSet && req.Series.Color == nil {
		req.Series.Color = nc.seriesColor(req.Series.Title)
	}
	return req
}
