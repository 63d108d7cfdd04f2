// Package binder decodes request payloads into handler params. Query strings
// and forms go through gorilla/schema, JSON bodies through encoding/json.
// Every payload is then trimmed by mold, filled in with defaults, and
// validated.
package binder

import (
	"encoding/json"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/shishobooks/folio/pkg/errcodes"
)

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// Uploads holds the files of a multipart request keyed by form field name.
// A params struct receives them by declaring a field of this type.
type Uploads map[string][]*multipart.FileHeader

var uploadsType = reflect.TypeOf(Uploads{})

// Sorted returns every uploaded file ordered by field name, keeping the order
// files were sent in within a field.
func (u Uploads) Sorted() []*multipart.FileHeader {
	files := []*multipart.FileHeader{}
	for _, key := range slices.Sorted(maps.Keys(u)) {
		files = append(files, u[key]...)
	}
	return files
}

// Binder implements echo.Binder.
type Binder struct {
	queryDecoder *schema.Decoder
	formDecoder  *schema.Decoder
	conform      *mold.Transformer
	validate     *validator.Validate
}

func New() (*Binder, error) {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")
	formDecoder := schema.NewDecoder()
	formDecoder.SetAliasTag("form")

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation(color, colorValidator); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Binder{
		queryDecoder: queryDecoder,
		formDecoder:  formDecoder,
		conform:      modifiers.New(),
		validate:     validate,
	}, nil
}

// Bind decodes the request into i, then trims, defaults, and validates it.
// Requests without a body are only accepted for GET and DELETE, which bind
// from the query string instead.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	var err error
	switch {
	case req.ContentLength > 0 || req.ContentLength == -1:
		err = b.bindBody(i, c)
	case req.Method == http.MethodGet || req.Method == http.MethodDelete:
		err = b.decodeValues(i, c.QueryParams(), b.queryDecoder)
	default:
		err = errcodes.EmptyRequestBody()
	}
	if err != nil {
		return err
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}
	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}
	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return errcodes.ValidationError(formatValidationError(errs[0]))
		}
		return errors.WithStack(err)
	}
	return nil
}

func (b *Binder) bindBody(i interface{}, c echo.Context) error {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		return b.bindJSON(i, c)
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		if err := b.bindForm(i, c); err != nil {
			return err
		}
		return b.bindUploads(i, c)
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		return b.bindForm(i, c)
	default:
		return errcodes.UnsupportedMediaType()
	}
}

func (b *Binder) bindJSON(i interface{}, c echo.Context) error {
	body := c.Request().Body
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		if matches := unknownFieldsRE.FindStringSubmatch(err.Error()); len(matches) > 1 {
			return errcodes.UnknownParameter(matches[1])
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return errcodes.ValidationTypeError(formatUnmarshalTypeError(typeErr))
		}
		logger.FromEchoContext(c).Err(err).Warn("can't decode json payload")
		return errcodes.MalformedPayload()
	}
	return nil
}

func (b *Binder) bindForm(i interface{}, c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return errcodes.MalformedPayload()
	}
	return b.decodeValues(i, params, b.formDecoder)
}

// bindUploads stores the multipart files in the first field of type Uploads.
func (b *Binder) bindUploads(i interface{}, c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return errcodes.MalformedPayload()
	}

	v := reflect.ValueOf(i).Elem()
	for idx := 0; idx < v.NumField(); idx++ {
		field := v.Field(idx)
		if field.Type() != uploadsType || !field.CanSet() {
			continue
		}
		field.Set(reflect.ValueOf(Uploads(form.File)))
		return nil
	}
	return nil
}

func (b *Binder) decodeValues(i interface{}, values url.Values, decoder *schema.Decoder) error {
	err := decoder.Decode(i, values)
	if err == nil {
		return nil
	}

	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return errors.WithStack(err)
	}
	// Report one problem at a time, the first in key order.
	for _, key := range slices.Sorted(maps.Keys(multi)) {
		switch e := multi[key].(type) {
		case schema.ConversionError:
			return errcodes.ValidationTypeError(formatSchemaConversionError(e))
		case schema.UnknownKeyError:
			return errcodes.UnknownParameter(e.Key)
		default:
			return errors.WithStack(e)
		}
	}
	return errors.WithStack(err)
}
