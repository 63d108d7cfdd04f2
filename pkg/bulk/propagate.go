package bulk

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/models"
)

// ApplyEdit stores an edited record as given. The caller passes the complete
// record. Colors on related records are left alone; see PropagateColors.
func (e *Engine) ApplyEdit(ctx context.Context, book *models.Book) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Put(ctx, book)
}

// PropagateColors copies source's group color to every other record in the
// same group, and its series color to every other record in the same series.
// Names match exactly. It returns how many records were rewritten; a record
// matched by both rules is written once.
func (e *Engine) PropagateColors(ctx context.Context, source *models.Book) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.propagate(ctx, source)
}

// Edit stores book and then propagates its colors, as one serialized step.
func (e *Engine) Edit(ctx context.Context, book *models.Book) (*EditResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Put(ctx, book); err != nil {
		return nil, err
	}
	n, err := e.propagate(ctx, book)
	if err != nil {
		return &EditResult{Propagated: n}, err
	}
	return &EditResult{Propagated: n}, nil
}

func (e *Engine) propagate(ctx context.Context, source *models.Book) (int, error) {
	group := models.StringValue(source.Group)
	groupColor := models.StringValue(source.GroupColor)
	byGroup := group != "" && groupColor != ""

	series := models.StringValue(source.SeriesTitle)
	seriesColor := models.StringValue(source.SeriesColor)
	bySeries := series != "" && seriesColor != ""

	if !byGroup && !bySeries {
		return 0, nil
	}

	current, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	log := logger.FromContext(ctx)
	count := 0
	for _, r := range current {
		if source.ID != "" && r.ID == source.ID {
			continue
		}

		updated := r.Clone()
		changed := false
		if byGroup && models.StringValue(r.Group) == group && models.StringValue(r.GroupColor) != groupColor {
			c := groupColor
			updated.GroupColor = &c
			changed = true
		}
		if bySeries && models.StringValue(r.SeriesTitle) == series && models.StringValue(r.SeriesColor) != seriesColor {
			c := seriesColor
			updated.SeriesColor = &c
			changed = true
		}
		if !changed {
			continue
		}

		if err := ctx.Err(); err != nil {
			return count, errors.WithStack(err)
		}
		if err := e.store.Put(ctx, updated); err != nil {
			log.Err(err).Error("can't propagate color", logger.Data{"book_id": r.ID})
			return count, err
		}
		count++
	}

	if count > 0 {
		log.Info("propagated colors", logger.Data{"group": group, "series": series, "count": count})
	}
	return count, nil
}
