package records

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/settings"
	"github.com/uptrace/bun"
)

// Store is the durable home of book records and settings. Every derived view
// is recomputed from ListAll; nothing else holds authoritative state.
type Store interface {
	ListAll(ctx context.Context) ([]*models.Book, error)
	Put(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
	GetSetting(ctx context.Context, key string) (*string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Columns replaced by Put when the record already exists. created_at is
// deliberately absent.
var upsertColumns = []string{
	"updated_at",
	"title",
	"author",
	"description",
	"genre",
	"release_date",
	"language",
	"status",
	"series_title",
	"series_index",
	"series_color",
	"group_name",
	"group_color",
	"file_name",
	"file_type",
	"file_size",
	"added_at",
	"cover_color",
	"file_data",
}

type Service struct {
	db       *bun.DB
	settings *settings.Service
}

var _ Store = (*Service)(nil)

func NewService(db *bun.DB) *Service {
	return &Service{db: db, settings: settings.NewService(db)}
}

// ListAll returns every record, newest first, including file payloads.
func (svc *Service) ListAll(ctx context.Context) ([]*models.Book, error) {
	books := []*models.Book{}
	err := svc.db.NewSelect().
		Model(&books).
		Order("b.added_at DESC", "b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return books, nil
}

// ListSummaries is ListAll without the file payloads, for building views.
func (svc *Service) ListSummaries(ctx context.Context) ([]*models.Book, error) {
	books := []*models.Book{}
	err := svc.db.NewSelect().
		Model(&books).
		ExcludeColumn("file_data").
		Order("b.added_at DESC", "b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return books, nil
}

func (svc *Service) Retrieve(ctx context.Context, id string) (*models.Book, error) {
	book := &models.Book{}
	err := svc.db.NewSelect().
		Model(book).
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, storageError(err)
	}
	return book, nil
}

// Put inserts book or replaces every column of the existing record with the
// same id. Callers pass the complete record; nothing is merged here.
func (svc *Service) Put(ctx context.Context, book *models.Book) error {
	if err := validate(book); err != nil {
		return err
	}

	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	q := svc.db.NewInsert().
		Model(book).
		On("CONFLICT (id) DO UPDATE")
	for _, col := range upsertColumns {
		q = q.Set(col + " = EXCLUDED." + col)
	}

	if _, err := q.Exec(ctx); err != nil {
		return storageError(err)
	}
	return nil
}

// Delete removes the record. Deleting an id that doesn't exist is a no-op.
func (svc *Service) Delete(ctx context.Context, id string) error {
	_, err := svc.db.NewDelete().
		Model((*models.Book)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageError(err)
	}
	return nil
}

// DeleteMany removes every listed record in one transaction, which is how a
// whole multi-format book is deleted.
func (svc *Service) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.Book)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (svc *Service) GetSetting(ctx context.Context, key string) (*string, error) {
	v, err := svc.settings.Get(ctx, key)
	if err != nil {
		return nil, storageError(err)
	}
	return v, nil
}

func (svc *Service) PutSetting(ctx context.Context, key, value string) error {
	if err := svc.settings.Put(ctx, key, value); err != nil {
		return storageError(err)
	}
	return nil
}

// Settings exposes the settings service for callers that need more than
// get/put.
func (svc *Service) Settings() *settings.Service {
	return svc.settings
}

func validate(book *models.Book) error {
	switch {
	case book == nil:
		return errcodes.ValidationError("book is required")
	case strings.TrimSpace(book.ID) == "":
		return errcodes.ValidationError(`"id" is required`)
	case strings.TrimSpace(book.Title) == "":
		return errcodes.ValidationError(`"title" is required`)
	case strings.TrimSpace(book.Author) == "":
		return errcodes.ValidationError(`"author" is required`)
	case len(book.FileData) == 0:
		return errcodes.ValidationError(`"file_data" is required`)
	}
	return nil
}

// Failures that mean the datastore itself is gone, as opposed to a bad
// query or constraint violation.
var unavailableMarkers = []string{
	"database is closed",
	"unable to open database file",
	"disk I/O error",
	"attempt to write a readonly database",
	"database disk image is malformed",
	"no such table",
}

func storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) {
		return errors.Wrap(errcodes.StorageUnavailable(""), err.Error())
	}
	msg := err.Error()
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return errors.Wrap(errcodes.StorageUnavailable(""), msg)
		}
	}
	return errors.WithStack(err)
}
