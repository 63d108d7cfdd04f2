// Package bulk applies edits to the library: batch edits over a selection,
// single-record edits with color propagation, advisor-driven organizing and
// deletes. Every mutation runs under one engine-wide lock, so propagation
// always reads a snapshot consistent with the writes around it.
package bulk

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/library"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/records"
	"golang.org/x/sync/errgroup"
)

type Engine struct {
	store       records.Store
	advisor     advisor.Advisor
	concurrency int

	mu sync.Mutex
}

// NewEngine returns an engine writing through store. concurrency bounds how
// many writes a batch issues at once; 1 or less writes sequentially in plan
// order.
func NewEngine(store records.Store, adv advisor.Advisor, concurrency int) *Engine {
	if adv == nil {
		adv = advisor.Disabled{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{store: store, advisor: adv, concurrency: concurrency}
}

// Execute runs the writes of plan against the current contents of the store.
// It stops at the first storage outage. When ctx is cancelled no further
// writes are issued and the partial result is returned with ctx's error.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execute(ctx, plan)
}

// BulkEdit plans req over groups, executes it, then spreads a newly set group
// or series color to every other record sharing the name. A group or series
// set without a color takes the color the name already has in the library.
func (e *Engine) BulkEdit(ctx context.Context, groups []*library.BookGroup, req Request) (*Result, error) {
	plan, err := NewPlan(groups, req)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if needsColor(plan.Request) {
		current, err := e.store.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		plan, err = NewPlan(groups, inheritColors(plan.Request, current))
		if err != nil {
			return nil, err
		}
	}

	result, err := e.execute(ctx, plan)
	if err != nil {
		return result, err
	}

	source := &models.Book{}
	if plan.Request.Group.Mode == ModeSet {
		source.Group = &plan.Request.Group.Name
		source.GroupColor = plan.Request.Group.Color
	}
	if plan.Request.Series.Mode == ModeSet {
		source.SeriesTitle = &plan.Request.Series.Title
		source.SeriesColor = plan.Request.Series.Color
	}
	n, err := e.propagate(ctx, source)
	result.Propagated = n
	if err != nil {
		return result, err
	}

	logger.FromContext(ctx).Info("bulk edit finished", logger.Data{
		"requested":  result.Requested,
		"updated":    result.Updated,
		"failed":     len(result.Failed),
		"propagated": result.Propagated,
	})
	return result, nil
}

func (e *Engine) execute(ctx context.Context, plan *Plan) (*Result, error) {
	result := &Result{Requested: len(plan.Writes), Failed: []Failure{}}
	if len(plan.Writes) == 0 {
		return result, nil
	}

	current, err := e.store.ListAll(ctx)
	if err != nil {
		return result, err
	}
	byID := make(map[string]*models.Book, len(current))
	for _, b := range current {
		byID[b.ID] = b
	}

	var resMu sync.Mutex
	write := func(ctx context.Context, w Write) error {
		rec, ok := byID[w.RecordID]
		if !ok {
			resMu.Lock()
			result.Failed = append(result.Failed, newFailure(w.RecordID, errcodes.NotFound("Book")))
			resMu.Unlock()
			return nil
		}
		merged := rec.Clone()
		w.Changes.Apply(merged)

		err := e.store.Put(ctx, merged)

		resMu.Lock()
		defer resMu.Unlock()
		if err != nil {
			if errors.Is(err, errcodes.StorageUnavailable("")) {
				return err
			}
			result.Failed = append(result.Failed, newFailure(w.RecordID, err))
			return nil
		}
		result.Updated++
		return nil
	}

	if e.concurrency <= 1 {
		for _, w := range plan.Writes {
			if ctx.Err() != nil {
				return result, errors.WithStack(ctx.Err())
			}
			if err := write(ctx, w); err != nil {
				return result, err
			}
		}
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, w := range plan.Writes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return write(gctx, w)
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if ctx.Err() != nil {
		return result, errors.WithStack(ctx.Err())
	}
	return result, nil
}

// DeleteGroup removes every variant of a logical book.
func (e *Engine) DeleteGroup(ctx context.Context, group *library.BookGroup) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := group.IDs()
	if dm, ok := e.store.(interface {
		DeleteMany(ctx context.Context, ids []string) error
	}); ok {
		return dm.DeleteMany(ctx, ids)
	}
	for _, id := range ids {
		if err := e.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
