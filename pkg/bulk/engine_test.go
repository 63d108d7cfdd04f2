package bulk

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/library"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func strPtr(s string) *string {
	return &s
}

func newBook(id, title string, addedAt int64) *models.Book {
	return &models.Book{
		ID:         id,
		Title:      title,
		Author:     "Author",
		FileName:   id + ".epub",
		FileType:   "epub",
		FileSize:   1,
		AddedAt:    addedAt,
		CoverColor: "#000000",
		FileData:   []byte{1},
	}
}

func TestNewPlan_AutoIndexAcrossVariants(t *testing.T) {
	t.Parallel()

	a1 := newBook("a1", "A", 1)
	a2 := newBook("a2", "A", 2)
	b := newBook("b", "B", 3)
	c := newBook("c", "C", 4)
	groups := library.GroupByIdentity([]*models.Book{a1, a2, b, c})
	require.Len(t, groups, 3)

	plan, err := NewPlan(groups, Request{
		Series: SeriesEdit{Mode: ModeSet, Title: "Saga", IndexMode: IndexAuto, IndexStart: 5},
	})
	require.NoError(t, err)
	require.Len(t, plan.Writes, 4)

	indices := map[string]string{}
	for _, w := range plan.Writes {
		require.NotNil(t, w.Changes.SeriesIndex)
		indices[w.RecordID] = *w.Changes.SeriesIndex.Value
	}
	assert.Equal(t, map[string]string{"a1": "5", "a2": "5", "b": "6", "c": "7"}, indices)
}

func TestNewPlan_FractionalAndSameIndex(t *testing.T) {
	t.Parallel()

	groups := library.GroupByIdentity([]*models.Book{newBook("a", "A", 1), newBook("b", "B", 2)})

	plan, err := NewPlan(groups, Request{
		Series: SeriesEdit{Mode: ModeSet, Title: "Saga", IndexMode: IndexAuto, IndexStart: 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.5", *plan.Writes[0].Changes.SeriesIndex.Value)
	assert.Equal(t, "2.5", *plan.Writes[1].Changes.SeriesIndex.Value)

	plan, err = NewPlan(groups, Request{
		Series: SeriesEdit{Mode: ModeSet, Title: "Saga", IndexMode: IndexSame, IndexValue: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "3", *plan.Writes[0].Changes.SeriesIndex.Value)
	assert.Equal(t, "3", *plan.Writes[1].Changes.SeriesIndex.Value)

	plan, err = NewPlan(groups, Request{
		Series: SeriesEdit{Mode: ModeSet, Title: "Saga"},
	})
	require.NoError(t, err)
	assert.Nil(t, plan.Writes[0].Changes.SeriesIndex)
}

func TestNewPlan_Validation(t *testing.T) {
	t.Parallel()

	groups := library.GroupByIdentity([]*models.Book{newBook("a", "A", 1)})

	tests := []struct {
		name string
		req  Request
	}{
		{"group set without name", Request{Group: GroupEdit{Mode: ModeSet, Name: "  "}}},
		{"series set without title", Request{Series: SeriesEdit{Mode: ModeSet}}},
		{"same index without value", Request{Series: SeriesEdit{Mode: ModeSet, Title: "S", IndexMode: IndexSame}}},
		{"unknown index mode", Request{Series: SeriesEdit{Mode: ModeSet, Title: "S", IndexMode: "random"}}},
		{"status set without value", Request{Status: StatusEdit{Mode: ModeSet}}},
		{"unknown mode", Request{Group: GroupEdit{Mode: "toggle"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(groups, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errcodes.ValidationError("")))
		})
	}
}

func TestNewPlan_KeepEverythingWritesNothing(t *testing.T) {
	t.Parallel()

	groups := library.GroupByIdentity([]*models.Book{newBook("a", "A", 1)})
	plan, err := NewPlan(groups, Request{})
	require.NoError(t, err)
	assert.Empty(t, plan.Writes)
}

func TestBulkEdit_GroupSetAndClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := newBook("a", "A", 1)
	a.Status = strPtr("reading")
	b := newBook("b", "B", 2)
	store := newMemStore(a, b)
	engine := NewEngine(store, nil, 1)
	groups := library.GroupByIdentity([]*models.Book{a, b})

	result, err := engine.BulkEdit(ctx, groups, Request{
		Group:  GroupEdit{Mode: ModeSet, Name: "Shelf", Color: strPtr("#ff0000")},
		Status: StatusEdit{Mode: ModeClear},
	})
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.Equal(t, 2, result.Updated)

	got := store.get("a")
	assert.Equal(t, "Shelf", *got.Group)
	assert.Equal(t, "#ff0000", *got.GroupColor)
	assert.Nil(t, got.Status)
	assert.Equal(t, []byte{1}, got.FileData)

	_, err = engine.BulkEdit(ctx, groups, Request{Group: GroupEdit{Mode: ModeClear}})
	require.NoError(t, err)
	assert.Nil(t, store.get("b").Group)
	assert.Nil(t, store.get("b").GroupColor)
}

func TestBulkEdit_SeriesClear(t *testing.T) {
	t.Parallel()

	a := newBook("a", "A", 1)
	a.SeriesTitle = strPtr("Saga")
	a.SeriesIndex = strPtr("1")
	a.SeriesColor = strPtr("#00ff00")
	store := newMemStore(a)
	engine := NewEngine(store, nil, 1)

	_, err := engine.BulkEdit(context.Background(), library.GroupByIdentity([]*models.Book{a}), Request{
		Series: SeriesEdit{Mode: ModeClear},
	})
	require.NoError(t, err)

	got := store.get("a")
	assert.Nil(t, got.SeriesTitle)
	assert.Nil(t, got.SeriesIndex)
	assert.Nil(t, got.SeriesColor)
}

func TestBulkEdit_PropagatesNewColorOutsideSelection(t *testing.T) {
	t.Parallel()

	selected := newBook("sel", "Selected", 1)
	other := newBook("other", "Other", 2)
	other.Group = strPtr("Shelf")
	other.GroupColor = strPtr("#0000ff")
	store := newMemStore(selected, other)
	engine := NewEngine(store, nil, 1)

	result, err := engine.BulkEdit(context.Background(), library.GroupByIdentity([]*models.Book{selected}), Request{
		Group: GroupEdit{Mode: ModeSet, Name: "Shelf", Color: strPtr("#ff0000")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Propagated)
	assert.Equal(t, "#ff0000", *store.get("other").GroupColor)
}

func TestBulkEdit_GroupSetWithoutColorMakesMembersMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := newBook("a", "A", 1)
	a.Group = strPtr("Old1")
	a.GroupColor = strPtr("#111111")
	b := newBook("b", "B", 2)
	b.Group = strPtr("Old2")
	b.GroupColor = strPtr("#222222")
	store := newMemStore(a, b)
	engine := NewEngine(store, nil, 1)

	result, err := engine.BulkEdit(ctx, library.GroupByIdentity([]*models.Book{a, b}), Request{
		Group: GroupEdit{Mode: ModeSet, Name: "Sci-Fi"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)

	for _, id := range []string{"a", "b"} {
		got := store.get(id)
		assert.Equal(t, "Sci-Fi", *got.Group)
		assert.Nil(t, got.GroupColor, id)
	}
}

func TestBulkEdit_SetWithoutColorTakesExistingColor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	member := newBook("member", "Member", 1)
	member.Group = strPtr("Sci-Fi")
	member.GroupColor = strPtr("#0000ff")
	member.SeriesTitle = strPtr("Saga")
	member.SeriesColor = strPtr("#00ff00")
	joining := newBook("joining", "Joining", 2)
	joining.Group = strPtr("Old")
	joining.GroupColor = strPtr("#111111")
	joining.SeriesTitle = strPtr("Other")
	joining.SeriesColor = strPtr("#222222")
	store := newMemStore(member, joining)
	engine := NewEngine(store, nil, 1)

	result, err := engine.BulkEdit(ctx, library.GroupByIdentity([]*models.Book{joining}), Request{
		Group:  GroupEdit{Mode: ModeSet, Name: "Sci-Fi"},
		Series: SeriesEdit{Mode: ModeSet, Title: "Saga"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Propagated)

	got := store.get("joining")
	assert.Equal(t, "#0000ff", *got.GroupColor)
	assert.Equal(t, "#00ff00", *got.SeriesColor)
	assert.Equal(t, "#0000ff", *store.get("member").GroupColor)
}

func TestExecute_PartialFailure(t *testing.T) {
	t.Parallel()

	a := newBook("a", "A", 1)
	b := newBook("b", "B", 2)
	c := newBook("c", "C", 3)
	store := newMemStore(a, b, c)
	store.PutFunc = func(book *models.Book) error {
		if book.ID == "b" {
			return errors.New("UNIQUE constraint failed")
		}
		return nil
	}
	engine := NewEngine(store, nil, 1)

	groups := library.GroupByIdentity([]*models.Book{a, b, c, newBook("gone", "Gone", 4)})
	plan, err := NewPlan(groups, Request{Status: StatusEdit{Mode: ModeSet, Value: "done"}})
	require.NoError(t, err)

	result, err := engine.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Requested)
	assert.Equal(t, 2, result.Updated)
	require.Len(t, result.Failed, 2)

	var partial *PartialFailureError
	require.True(t, errors.As(result.Err(), &partial))
	assert.Equal(t, 4, partial.Requested)
	assert.Equal(t, 2, partial.Updated)

	// Records written before the failure stay written.
	assert.Equal(t, "done", *store.get("a").Status)
	assert.Equal(t, "done", *store.get("c").Status)
	assert.Nil(t, store.get("b").Status)
}

func TestExecute_StorageUnavailableAborts(t *testing.T) {
	t.Parallel()

	a := newBook("a", "A", 1)
	b := newBook("b", "B", 2)
	store := newMemStore(a, b)
	store.PutFunc = func(*models.Book) error {
		return errors.WithStack(errcodes.StorageUnavailable(""))
	}
	engine := NewEngine(store, nil, 1)

	plan, err := NewPlan(library.GroupByIdentity([]*models.Book{a, b}), Request{Status: StatusEdit{Mode: ModeSet, Value: "x"}})
	require.NoError(t, err)

	result, err := engine.Execute(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcodes.StorageUnavailable("")))
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Failed)
}

func TestExecute_ParallelKeepsPlannedValues(t *testing.T) {
	t.Parallel()

	books := []*models.Book{}
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		books = append(books, newBook(id, id, int64(i)))
	}
	store := newMemStore(books...)
	engine := NewEngine(store, nil, 4)

	result, err := engine.BulkEdit(context.Background(), library.GroupByIdentity(books), Request{
		Series: SeriesEdit{Mode: ModeSet, Title: "Saga", IndexMode: IndexAuto, IndexStart: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Updated)

	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, FormatIndex(float64(i+1)), *store.get(id).SeriesIndex)
	}
}

func TestExecute_CancelledContextStopsWrites(t *testing.T) {
	t.Parallel()

	a := newBook("a", "A", 1)
	store := newMemStore(a)
	engine := NewEngine(store, nil, 1)

	plan, err := NewPlan(library.GroupByIdentity([]*models.Book{a}), Request{Status: StatusEdit{Mode: ModeSet, Value: "x"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Execute(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, store.putCount())
}

func TestEdit_PropagatesColorToSameGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := records.NewService(setupTestDB(t))
	engine := NewEngine(svc, nil, 1)

	a := newBook("a", "A", 1)
	a.Group = strPtr("Classics")
	a.GroupColor = strPtr("#blue")
	b := newBook("b", "B", 2)
	b.Group = strPtr("Classics")
	b.GroupColor = strPtr("#blue")
	b.SeriesTitle = strPtr("Saga")
	c := newBook("c", "C", 3)
	c.Group = strPtr("classics")
	c.GroupColor = strPtr("#blue")
	for _, book := range []*models.Book{a, b, c} {
		require.NoError(t, svc.Put(ctx, book))
	}

	edited := a.Clone()
	edited.GroupColor = strPtr("#red")
	edited.SeriesTitle = strPtr("Saga")
	edited.SeriesColor = strPtr("#green")

	result, err := engine.Edit(ctx, edited)
	require.NoError(t, err)
	// b matches both rules but is written once.
	assert.Equal(t, 1, result.Propagated)

	got, err := svc.Retrieve(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "#red", *got.GroupColor)
	assert.Equal(t, "#green", *got.SeriesColor)

	got, err = svc.Retrieve(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "#blue", *got.GroupColor)
}

func TestApplyEditThenPropagate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := newBook("a", "A", 1)
	b := newBook("b", "B", 2)
	b.Group = strPtr("G")
	store := newMemStore(a, b)
	engine := NewEngine(store, nil, 1)

	edited := a.Clone()
	edited.Group = strPtr("G")
	edited.GroupColor = strPtr("#123456")
	require.NoError(t, engine.ApplyEdit(ctx, edited))
	assert.Nil(t, store.get("b").GroupColor)

	n, err := engine.PropagateColors(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "#123456", *store.get("b").GroupColor)

	// Nothing left to recolor.
	n, err = engine.PropagateColors(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAutoOrganize(t *testing.T) {
	t.Parallel()

	a := newBook("a", "A", 1)
	a.Group = strPtr("Keep Me")
	a.SeriesIndex = strPtr("9")
	b := newBook("b", "B", 2)
	store := newMemStore(a, b)

	var sent []advisor.BookSummary
	adv := &fakeAdvisor{
		OrganizeFunc: func(_ context.Context, books []advisor.BookSummary, instruction string) ([]advisor.OrganizeUpdate, error) {
			sent = books
			assert.Equal(t, "by series", instruction)
			return []advisor.OrganizeUpdate{
				{ID: "a", SeriesTitle: strPtr("Saga")},
				{ID: "b", Group: strPtr("New")},
				{ID: "ghost", Group: strPtr("Nowhere")},
			}, nil
		},
	}
	engine := NewEngine(store, adv, 1)

	result, err := engine.AutoOrganize(context.Background(), "by series")
	require.NoError(t, err)
	assert.False(t, result.AdvisorFailed)
	assert.Equal(t, 3, result.Suggested)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Ignored)
	require.NoError(t, result.Err())

	require.Len(t, sent, 2)
	for _, s := range sent {
		assert.NotEmpty(t, s.FileName)
	}

	got := store.get("a")
	assert.Equal(t, "Saga", *got.SeriesTitle)
	assert.Equal(t, "9", *got.SeriesIndex)
	assert.Equal(t, "Keep Me", *got.Group)
	assert.Equal(t, "New", *store.get("b").Group)
	assert.Nil(t, store.get("ghost"))
}

func TestAutoOrganize_MovedRecordsTakeTheNewColor(t *testing.T) {
	t.Parallel()

	member := newBook("member", "Member", 1)
	member.Group = strPtr("Sci-Fi")
	member.GroupColor = strPtr("#0000ff")
	moved := newBook("moved", "Moved", 2)
	moved.Group = strPtr("Old")
	moved.GroupColor = strPtr("#111111")
	fresh := newBook("fresh", "Fresh", 3)
	fresh.Group = strPtr("Old")
	fresh.GroupColor = strPtr("#111111")
	fresh.SeriesTitle = strPtr("Saga")
	fresh.SeriesColor = strPtr("#222222")
	stays := newBook("stays", "Stays", 4)
	stays.Group = strPtr("Old")
	stays.GroupColor = strPtr("#111111")
	store := newMemStore(member, moved, fresh, stays)

	adv := &fakeAdvisor{
		OrganizeFunc: func(_ context.Context, _ []advisor.BookSummary, _ string) ([]advisor.OrganizeUpdate, error) {
			return []advisor.OrganizeUpdate{
				{ID: "moved", Group: strPtr("Sci-Fi")},
				{ID: "fresh", Group: strPtr("Brand New"), SeriesTitle: strPtr("Other Saga")},
				{ID: "stays", Group: strPtr("Old"), SeriesIndex: strPtr("2")},
			}, nil
		},
	}
	engine := NewEngine(store, adv, 1)

	result, err := engine.AutoOrganize(context.Background(), "tidy up")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)

	assert.Equal(t, "#0000ff", *store.get("moved").GroupColor)
	assert.Nil(t, store.get("fresh").GroupColor)
	assert.Nil(t, store.get("fresh").SeriesColor)
	assert.Equal(t, "#111111", *store.get("stays").GroupColor)
}

func TestAutoOrganize_AdvisorFailureChangesNothing(t *testing.T) {
	t.Parallel()

	a := newBook("a", "A", 1)
	store := newMemStore(a)
	engine := NewEngine(store, &fakeAdvisor{}, 1)

	result, err := engine.AutoOrganize(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, result.AdvisorFailed)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, store.putCount())
}

func TestAutoOrganize_StorageUnavailable(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.ListAllFunc = func() error {
		return errors.WithStack(errcodes.StorageUnavailable(""))
	}
	engine := NewEngine(store, &fakeAdvisor{}, 1)

	_, err := engine.AutoOrganize(context.Background(), "")
	assert.True(t, errors.Is(err, errcodes.StorageUnavailable("")))
}

func TestSuggestGroupName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	groups := library.GroupByIdentity([]*models.Book{newBook("a", "Dune", 1)})

	engine := NewEngine(newMemStore(), &fakeAdvisor{
		SuggestGroupNameFunc: func(_ context.Context, books []advisor.BookSummary) (string, error) {
			require.Len(t, books, 1)
			assert.Equal(t, "Dune", books[0].Title)
			return "Desert Planets", nil
		},
	}, 1)
	name, err := engine.SuggestGroupName(ctx, groups)
	require.NoError(t, err)
	assert.Equal(t, "Desert Planets", name)

	engine = NewEngine(newMemStore(), &fakeAdvisor{}, 1)
	name, err = engine.SuggestGroupName(ctx, groups)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestDeleteGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := records.NewService(setupTestDB(t))
	engine := NewEngine(svc, nil, 1)

	epub := newBook("epub", "Dune", 1)
	pdf := newBook("pdf", "Dune", 2)
	pdf.FileType = "pdf"
	other := newBook("other", "Emma", 3)
	for _, b := range []*models.Book{epub, pdf, other} {
		require.NoError(t, svc.Put(ctx, b))
	}

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	group, ok := library.FindGroup(library.GroupByIdentity(all), "epub")
	require.True(t, ok)
	require.Len(t, group.Variants, 2)

	require.NoError(t, engine.DeleteGroup(ctx, group))

	all, err = svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "other", all[0].ID)

	// memStore has no DeleteMany, so the engine falls back to single deletes.
	store := newMemStore(epub, pdf)
	require.NoError(t, NewEngine(store, nil, 1).DeleteGroup(ctx, library.GroupByIdentity([]*models.Book{epub, pdf})[0]))
	assert.Nil(t, store.get("epub"))
	assert.Nil(t, store.get("pdf"))
}
