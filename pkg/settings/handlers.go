package settings

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
)

// Keys under this prefix belong to the lock and are only changed through its
// routes.
const reservedPrefix = "lock."

type handler struct {
	store Store
}

func checkKey(key string) error {
	if key == "" || len(key) > 200 {
		return errcodes.ValidationError(`"key" length must be between 1 and 200 characters`)
	}
	if strings.HasPrefix(key, reservedPrefix) {
		return errcodes.NotFound("Setting")
	}
	return nil
}

func (h *handler) retrieve(c echo.Context) error {
	key := c.Param("key")
	if err := checkKey(key); err != nil {
		return err
	}

	value, err := h.store.GetSetting(c.Request().Context(), key)
	if err != nil {
		return err
	}
	if value == nil {
		return errcodes.NotFound("Setting")
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": *value,
	}))
}

func (h *handler) update(c echo.Context) error {
	key := c.Param("key")
	if err := checkKey(key); err != nil {
		return err
	}

	params := PutSettingPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	if err := h.store.PutSetting(c.Request().Context(), key, params.Value); err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": params.Value,
	}))
}
