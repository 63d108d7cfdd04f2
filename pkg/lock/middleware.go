package lock

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/folio/pkg/errcodes"
)

// Middleware guards routes that show or change the library.
type Middleware struct {
	lockService *Service
}

func NewMiddleware(lockService *Service) *Middleware {
	return &Middleware{lockService: lockService}
}

// RequireUnlocked answers 423 while the library is locked. Any other request
// counts as activity for the auto-lock timer.
func (m *Middleware) RequireUnlocked(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		locked, err := m.lockService.IsLocked(c.Request().Context())
		if err != nil {
			return err
		}
		if locked {
			return errcodes.Locked()
		}
		m.lockService.Touch()
		return next(c)
	}
}
