package settings

import (
	"context"

	"github.com/labstack/echo/v4"
)

// Store reads and writes settings, reporting storage outages the way the
// record store does.
type Store interface {
	GetSetting(ctx context.Context, key string) (*string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// RegisterRoutesWithGroup registers settings routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, store Store) {
	h := &handler{store: store}

	g.GET("/:key", h.retrieve)
	g.PUT("/:key", h.update)
}
