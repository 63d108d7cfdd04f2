package bulk

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/library"
	"github.com/shishobooks/folio/pkg/models"
)

// Summarize is what the advisor is told about a record.
func Summarize(b *models.Book) advisor.BookSummary {
	return advisor.BookSummary{
		ID:            b.ID,
		Title:         b.DisplayTitle(),
		Author:        b.DisplayAuthor(),
		FileName:      b.FileName,
		CurrentSeries: models.StringValue(b.SeriesTitle),
		CurrentGroup:  models.StringValue(b.Group),
	}
}

// AutoOrganize asks the advisor to reorganize the whole library and applies
// the suggestions it returns. Only the fields a suggestion names are
// overwritten, plus the color of a group or series a record moves into.
// Suggestions for unknown ids are counted as ignored. When the
// advisor fails nothing changes and AdvisorFailed is set.
func (e *Engine) AutoOrganize(ctx context.Context, instruction string) (*OrganizeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := logger.FromContext(ctx)
	result := &OrganizeResult{Failed: []Failure{}}

	current, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return result, nil
	}

	colors := colorsByName(current)
	summaries := make([]advisor.BookSummary, 0, len(current))
	byID := make(map[string]*models.Book, len(current))
	for _, b := range current {
		summaries = append(summaries, Summarize(b))
		byID[b.ID] = b
	}

	updates, err := e.advisor.Organize(ctx, summaries, instruction)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn("advisor gave no organize suggestion", logger.Data{"err": err.Error()})
		result.AdvisorFailed = true
		return result, nil
	}
	result.Suggested = len(updates)

	for _, u := range updates {
		rec, ok := byID[u.ID]
		if !ok {
			result.Ignored++
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, errors.WithStack(err)
		}

		// A record moved to another group or series takes on that name's
		// color rather than keeping the old one.
		merged := rec.Clone()
		if u.SeriesTitle != nil {
			if *u.SeriesTitle != models.StringValue(rec.SeriesTitle) {
				merged.SeriesColor = colors.seriesColor(*u.SeriesTitle)
			}
			merged.SeriesTitle = u.SeriesTitle
		}
		if u.SeriesIndex != nil {
			merged.SeriesIndex = u.SeriesIndex
		}
		if u.Group != nil {
			if *u.Group != models.StringValue(rec.Group) {
				merged.GroupColor = colors.groupColor(*u.Group)
			}
			merged.Group = u.Group
		}

		if err := e.store.Put(ctx, merged); err != nil {
			if errors.Is(err, errcodes.StorageUnavailable("")) {
				return result, err
			}
			result.Failed = append(result.Failed, newFailure(u.ID, err))
			continue
		}
		result.Updated++
	}

	log.Info("auto-organize finished", logger.Data{
		"suggested": result.Suggested,
		"updated":   result.Updated,
		"ignored":   result.Ignored,
	})
	return result, nil
}

// SuggestGroupName asks the advisor to name a group for the selection. An
// empty name means there's no suggestion.
func (e *Engine) SuggestGroupName(ctx context.Context, groups []*library.BookGroup) (string, error) {
	if len(groups) == 0 {
		return "", nil
	}
	summaries := make([]advisor.BookSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, Summarize(g.Representative()))
	}

	name, err := e.advisor.SuggestGroupName(ctx, summaries)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		logger.FromContext(ctx).Warn("advisor gave no group name", logger.Data{"err": err.Error()})
		return "", nil
	}
	return name, nil
}
