package lock

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the lock routes. They stay reachable while the
// library is locked.
func RegisterRoutes(e *echo.Echo, lockService *Service) {
	h := &handler{lockService: lockService}

	g := e.Group("/lock")
	g.GET("", h.status)
	g.POST("", h.lock)
	g.PUT("/passcode", h.setPasscode)
	g.PUT("/auto-lock", h.setAutoLock)

	e.POST("/unlock", h.unlock)
}
