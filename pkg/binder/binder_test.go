package binder

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Hello string  `json:"hello" mod:"trim" validate:"max=9"`
	Color *string `json:"color,omitempty" validate:"omitempty,color"`
	Sort  string  `json:"sort" default:"recent"`
	Omit  string  `json:"-"`
}

type uploadParams struct {
	Note  string  `form:"note" json:"note"`
	Files Uploads `json:"-"`
}

type listParams struct {
	Search  string `query:"search" json:"search" mod:"trim"`
	Reverse bool   `query:"reverse" json:"reverse"`
	Sort    string `query:"sort" json:"sort" default:"recent" validate:"oneof=recent title"`
}

var (
	goodJSON             = `{"hello":" world "}`
	unknownFieldsErrJSON = `{"hello":"world","foo":"bar"}`
	typeErrJSON          = `{"hello":123}`
	validationErrJSON    = `{"hello":"0123456789"}`
	badColorJSON         = `{"hello":"world","color":"blue"}`
	goodColorJSON        = `{"hello":"world","color":"#2B6CB0"}`
)

func TestNew(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Run("only allows application/json and application/x-www-form-urlencoded", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationXML)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(typeErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"hello" should be of type string`)
	})

	t.Run("use mod tag to modify params", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "world", p.Hello)
	})

	t.Run("use validate tag to validate params", func(tt *testing.T) {
		c := newContext(validationErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "length must be less than or equal to 9 characters")
	})

	t.Run("validates colors", func(tt *testing.T) {
		c := newContext(badColorJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"color" should be a hex color`)

		c = newContext(goodColorJSON, echo.MIMEApplicationJSON)
		p = params{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "#2B6CB0", *p.Color)
	})

	t.Run("fills in defaults", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "recent", p.Sort)
	})

	t.Run("keeps every uploaded file", func(tt *testing.T) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		require.NoError(tt, mw.WriteField("note", "hi"))
		for _, name := range []string{"a.epub", "b.pdf"} {
			fw, err := mw.CreateFormFile("files", name)
			require.NoError(tt, err)
			_, err = fw.Write([]byte(name))
			require.NoError(tt, err)
		}
		require.NoError(tt, mw.Close())

		c := newContext(body.String(), mw.FormDataContentType())
		p := uploadParams{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "hi", p.Note)
		require.Len(tt, p.Files["files"], 2)
		assert.Equal(tt, "a.epub", p.Files["files"][0].Filename)
		assert.Equal(tt, "b.pdf", p.Files["files"][1].Filename)
	})

	t.Run("binds the query string of body-less GETs", func(tt *testing.T) {
		c := newQueryContext("/?search=+dune+&reverse=true")
		p := listParams{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "dune", p.Search)
		assert.True(tt, p.Reverse)
		assert.Equal(tt, "recent", p.Sort)
	})

	t.Run("rejects unknown query parameters", func(tt *testing.T) {
		c := newQueryContext("/?colour=red")
		p := listParams{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "colour"`)
	})

	t.Run("reports query type errors", func(tt *testing.T) {
		c := newQueryContext("/?reverse=sometimes")
		p := listParams{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"reverse" should be of type bool`)
	})

	t.Run("requires a body for POST", func(tt *testing.T) {
		c := newContext("", echo.MIMEApplicationJSON)
		p := params{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "can't be empty")
	})
}

func TestUploadsSorted(t *testing.T) {
	t.Parallel()

	u := Uploads{
		"b": {{Filename: "3.pdf"}},
		"a": {{Filename: "1.epub"}, {Filename: "2.cbz"}},
	}
	names := []string{}
	for _, fh := range u.Sorted() {
		names = append(names, fh.Filename)
	}
	assert.Equal(t, []string{"1.epub", "2.cbz", "3.pdf"}, names)
	assert.Empty(t, Uploads(nil).Sorted())
}

func newQueryContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.GET, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func newContext(payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.POST, "/", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, mime)
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}
