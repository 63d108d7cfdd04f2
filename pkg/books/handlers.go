package books

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/shishobooks/folio/pkg/bulk"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/importer"
	"github.com/shishobooks/folio/pkg/library"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/records"
)

type handler struct {
	recordService *records.Service
	engine        *bulk.Engine
	importer      *importer.Importer
}

// groups loads every record without its file contents and groups them into
// logical books.
func (h *handler) groups(c echo.Context) ([]*library.BookGroup, error) {
	all, err := h.recordService.ListSummaries(c.Request().Context())
	if err != nil {
		return nil, err
	}
	return library.GroupByIdentity(all), nil
}

func (h *handler) list(c echo.Context) error {
	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	sortKey, err := library.ParseSortKey(params.Sort)
	if err != nil {
		return err
	}

	groups, err := h.groups(c)
	if err != nil {
		return err
	}
	groups = library.FilterAndSort(groups, library.Query{
		Text:    models.StringValue(params.Search),
		Group:   params.Group,
		Sort:    sortKey,
		Reverse: params.Reverse,
	})

	response := map[string]interface{}{
		"books": groups,
		"total": len(groups),
	}
	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) layout(c echo.Context) error {
	params := LayoutQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	mode, err := library.ParseLayoutMode(params.Mode)
	if err != nil {
		return err
	}
	sortKey, err := library.ParseSortKey(params.Sort)
	if err != nil {
		return err
	}

	groups, err := h.groups(c)
	if err != nil {
		return err
	}
	groups = library.FilterAndSort(groups, library.Query{
		Text:    models.StringValue(params.Search),
		Group:   params.Group,
		Sort:    sortKey,
		Reverse: params.Reverse,
	})

	response := map[string]interface{}{
		"mode":     mode,
		"sections": library.LayoutBySeriesOrGroup(groups, mode),
	}
	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) groupFacets(c echo.Context) error {
	all, err := h.recordService.ListSummaries(c.Request().Context())
	if err != nil {
		return err
	}
	response := map[string]interface{}{
		"groups": library.ExtractGroupFacets(all),
	}
	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	book, err := h.recordService.Retrieve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) download(c echo.Context) error {
	book, err := h.recordService.Retrieve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition", "attachment; filename=\""+book.FileName+"\"")
	return errors.WithStack(c.Blob(http.StatusOK, mimetype.Detect(book.FileData).String(), book.FileData))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.recordService.Retrieve(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	if params.Title != nil {
		book.Title = *params.Title
	}
	if params.Author != nil {
		book.Author = *params.Author
	}
	for _, f := range []struct {
		src *string
		dst **string
	}{
		{params.Description, &book.Description},
		{params.Genre, &book.Genre},
		{params.ReleaseDate, &book.ReleaseDate},
		{params.Language, &book.Language},
		{params.Status, &book.Status},
		{params.SeriesTitle, &book.SeriesTitle},
		{params.SeriesIndex, &book.SeriesIndex},
		{params.SeriesColor, &book.SeriesColor},
		{params.Group, &book.Group},
		{params.GroupColor, &book.GroupColor},
	} {
		if f.src != nil {
			*f.dst = models.NonEmpty(*f.src)
		}
	}

	result, err := h.engine.Edit(ctx, book)
	if err != nil {
		return err
	}

	response := struct {
		*models.Book
		Propagated int `json:"propagated"`
	}{book, result.Propagated}
	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) deleteBook(c echo.Context) error {
	if err := h.recordService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) deleteGroup(c echo.Context) error {
	params := DeleteGroupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	groups, err := h.groups(c)
	if err != nil {
		return err
	}
	group, ok := library.FindGroup(groups, params.ID)
	if !ok {
		return errcodes.NotFound("Book")
	}
	if err := h.engine.DeleteGroup(c.Request().Context(), group); err != nil {
		return err
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

// selectGroups resolves record ids to their logical books, keeping the order
// the ids were given in and listing each book once.
func selectGroups(groups []*library.BookGroup, ids []string) ([]*library.BookGroup, error) {
	selected := make([]*library.BookGroup, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		g, ok := library.FindGroup(groups, id)
		if !ok {
			return nil, errcodes.NotFound("Book")
		}
		if _, dup := seen[g.Key]; dup {
			continue
		}
		seen[g.Key] = struct{}{}
		selected = append(selected, g)
	}
	return selected, nil
}

func (h *handler) bulkEdit(c echo.Context) error {
	ctx := c.Request().Context()

	params := BulkEditPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	groups, err := h.groups(c)
	if err != nil {
		return err
	}
	selected, err := selectGroups(groups, params.IDs)
	if err != nil {
		return err
	}

	result, err := h.engine.BulkEdit(ctx, selected, bulkRequest(params))
	if err != nil && result == nil {
		return err
	}
	if err != nil {
		logger.FromEchoContext(c).Err(err).Warn("bulk edit stopped early")
		if errors.Is(err, errcodes.StorageUnavailable("")) {
			return err
		}
	}
	return errors.WithStack(c.JSON(http.StatusOK, result))
}

func bulkRequest(p BulkEditPayload) bulk.Request {
	req := bulk.Request{}
	if p.Group != nil {
		req.Group = bulk.GroupEdit{
			Mode:  bulk.Mode(p.Group.Mode),
			Name:  p.Group.Name,
			Color: p.Group.Color,
		}
	}
	if p.Series != nil {
		req.Series = bulk.SeriesEdit{
			Mode:       bulk.Mode(p.Series.Mode),
			Title:      p.Series.Title,
			Color:      p.Series.Color,
			IndexMode:  bulk.IndexMode(p.Series.IndexMode),
			IndexStart: 1,
			IndexValue: p.Series.IndexValue,
		}
		if p.Series.IndexStart != nil {
			req.Series.IndexStart = *p.Series.IndexStart
		}
	}
	if p.Status != nil {
		req.Status = bulk.StatusEdit{
			Mode:  bulk.Mode(p.Status.Mode),
			Value: p.Status.Value,
		}
	}
	return req
}

func (h *handler) organize(c echo.Context) error {
	params := OrganizePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.engine.AutoOrganize(c.Request().Context(), params.Instruction)
	if err != nil && result == nil {
		return err
	}
	if err != nil {
		logger.FromEchoContext(c).Err(err).Warn("auto-organize stopped early")
		if errors.Is(err, errcodes.StorageUnavailable("")) {
			return err
		}
	}
	return errors.WithStack(c.JSON(http.StatusOK, result))
}

func (h *handler) suggestGroup(c echo.Context) error {
	params := SuggestGroupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	groups, err := h.groups(c)
	if err != nil {
		return err
	}
	selected, err := selectGroups(groups, params.IDs)
	if err != nil {
		return err
	}

	name, err := h.engine.SuggestGroupName(c.Request().Context(), selected)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"name": name}))
}

type importOutcome struct {
	FileName string       `json:"file_name"`
	Book     *models.Book `json:"book,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (h *handler) importFiles(c echo.Context) error {
	ctx := c.Request().Context()

	params := ImportPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	var files []importer.File
	for _, fh := range params.Files.Sorted() {
		data, err := readFormFile(fh)
		if err != nil {
			return err
		}
		files = append(files, importer.File{Name: fh.Filename, Data: data})
	}
	if len(files) == 0 {
		return errcodes.ValidationError("At least one file is required.")
	}

	outcomes := h.importer.ImportAll(ctx, files)
	response := make([]importOutcome, 0, len(outcomes))
	imported := 0
	for _, o := range outcomes {
		if errors.Is(o.Err, errcodes.StorageUnavailable("")) {
			return o.Err
		}
		out := importOutcome{FileName: o.FileName, Book: o.Book}
		if o.Err != nil {
			out.Error = o.Err.Error()
		} else {
			imported++
		}
		response = append(response, out)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"imported": imported,
		"results":  response,
	}))
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	return data, errors.WithStack(err)
}
