package lock

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	lockService *Service
}

func (h *handler) status(c echo.Context) error {
	status, err := h.lockService.Status(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, status))
}

func (h *handler) lock(c echo.Context) error {
	if err := h.lockService.Lock(c.Request().Context()); err != nil {
		return err
	}
	return h.status(c)
}

func (h *handler) unlock(c echo.Context) error {
	params := UnlockPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	if err := h.lockService.Unlock(c.Request().Context(), params.Passcode); err != nil {
		return err
	}
	return h.status(c)
}

func (h *handler) setPasscode(c echo.Context) error {
	params := SetPasscodePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	if err := h.lockService.SetPasscode(c.Request().Context(), params.Current, params.Passcode); err != nil {
		return err
	}
	return h.status(c)
}

func (h *handler) setAutoLock(c echo.Context) error {
	params := AutoLockPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	if err := h.lockService.SetAutoLockMinutes(c.Request().Context(), params.Minutes); err != nil {
		return err
	}
	return h.status(c)
}
