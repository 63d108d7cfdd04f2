// Package importer turns uploaded files into book records.
package importer

import (
	"context"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/records"
)

// Placeholder metadata for a book nothing is known about.
const (
	DefaultAuthor   = "Unknown Author"
	DefaultGenre    = "General"
	DefaultLanguage = "en"
)

type Importer struct {
	store      records.Store
	advisor    advisor.Advisor
	useAdvisor bool
	clock      *clock
}

func New(store records.Store, adv advisor.Advisor, useAdvisor bool) *Importer {
	if adv == nil {
		adv = advisor.Disabled{}
	}
	return &Importer{
		store:      store,
		advisor:    adv,
		useAdvisor: useAdvisor,
		clock:      &clock{now: time.Now},
	}
}

// File is one file handed to ImportAll.
type File struct {
	Name string
	Data []byte
}

// Outcome is the result of importing one file. Exactly one of Book and Err
// is set.
type Outcome struct {
	FileName string
	Book     *models.Book
	Err      error
}

// ImportAll imports each file independently. A rejected or failed file
// doesn't stop the others, except when storage becomes unavailable.
func (i *Importer) ImportAll(ctx context.Context, files []File) []Outcome {
	outcomes := make([]Outcome, 0, len(files))
	for idx, f := range files {
		if err := ctx.Err(); err != nil {
			for _, rest := range files[idx:] {
				outcomes = append(outcomes, Outcome{FileName: rest.Name, Err: errors.WithStack(err)})
			}
			break
		}
		book, err := i.Import(ctx, f.Name, f.Data)
		outcomes = append(outcomes, Outcome{FileName: f.Name, Book: book, Err: err})
		if errors.Is(err, errcodes.StorageUnavailable("")) {
			for _, rest := range files[idx+1:] {
				outcomes = append(outcomes, Outcome{FileName: rest.Name, Err: err})
			}
			break
		}
	}
	return outcomes
}

// Import creates and stores a record for one file. Files without a
// recognized ebook extension are rejected before anything is stored.
func (i *Importer) Import(ctx context.Context, fileName string, data []byte) (*models.Book, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"file_name": fileName})

	if !Accepts(fileName) {
		return nil, errors.WithStack(errcodes.UnsupportedFileType(fileName))
	}
	if len(data) == 0 {
		return nil, errors.WithStack(errcodes.ValidationError("The file is empty."))
	}

	fileType := FileType(fileName)
	if expected, ok := expectedMimeTypes[fileType]; ok {
		mtype := mimetype.Detect(data)
		if _, ok := expected[mtype.String()]; !ok {
			log.Warn("mime type is not expected for extension", logger.Data{"mimetype": mtype.String()})
		}
	}

	embedded, err := embeddedMetadata(fileName, fileType, data)
	if err != nil {
		log.Warn("can't read embedded metadata", logger.Data{"err": err.Error()})
		embedded = nil
	}

	var inferred *advisor.Metadata
	if i.useAdvisor {
		inferred, err = i.advisor.InferMetadata(ctx, advisor.InferRequest{
			FileName: fileName,
			FileType: fileType,
			FileSize: int64(len(data)),
			Embedded: embedded,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Warn("advisor gave no metadata, using defaults", logger.Data{"err": err.Error()})
			inferred = nil
		}
	}

	book := &models.Book{
		ID:       uuid.New().String(),
		Title:    BaseTitle(fileName),
		Author:   DefaultAuthor,
		Genre:    models.NonEmpty(DefaultGenre),
		Language: models.NonEmpty(DefaultLanguage),
		FileName: fileName,
		FileType: fileType,
		FileSize: int64(len(data)),
		FileData: data,
	}
	if book.Title == "" {
		book.Title = fileName
	}
	overlay(book, embedded)
	overlay(book, inferred)

	book.AddedAt = i.clock.next()
	book.CoverColor = CoverColor(book.Title, book.Author)

	if err := i.store.Put(ctx, book); err != nil {
		return nil, err
	}

	log.Info("imported book", logger.Data{"book_id": book.ID, "title": book.Title})
	return book, nil
}

// overlay copies every field md knows onto book.
func overlay(book *models.Book, md *advisor.Metadata) {
	if md == nil {
		return
	}
	if t := models.NonEmpty(md.Title); t != nil {
		book.Title = *t
	}
	if a := models.NonEmpty(md.Author); a != nil {
		book.Author = *a
	}
	for _, f := range []struct {
		src *string
		dst **string
	}{
		{md.Description, &book.Description},
		{md.Genre, &book.Genre},
		{md.ReleaseDate, &book.ReleaseDate},
		{md.Language, &book.Language},
		{md.SeriesTitle, &book.SeriesTitle},
		{md.SeriesIndex, &book.SeriesIndex},
	} {
		if v := models.NonEmpty(models.StringValue(f.src)); v != nil {
			*f.dst = v
		}
	}
}

// clock hands out strictly increasing millisecond timestamps, so books
// imported in the same millisecond still have a defined order.
type clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (c *clock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}
