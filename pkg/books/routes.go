package books

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shishobooks/folio/pkg/bulk"
	"github.com/shishobooks/folio/pkg/importer"
	"github.com/shishobooks/folio/pkg/records"
)

const importBodyLimit = "1G"

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, recordService *records.Service, engine *bulk.Engine, imp *importer.Importer) {
	h := &handler{
		recordService: recordService,
		engine:        engine,
		importer:      imp,
	}

	g.GET("", h.list)
	g.GET("/layout", h.layout)
	g.GET("/facets/groups", h.groupFacets)
	g.POST("/import", h.importFiles, middleware.BodyLimit(importBodyLimit))
	g.POST("/bulk", h.bulkEdit)
	g.POST("/organize", h.organize)
	g.POST("/suggest-group", h.suggestGroup)
	g.POST("/groups/delete", h.deleteGroup)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/file", h.download)
	g.POST("/:id", h.update)
	g.DELETE("/:id", h.deleteBook)
}
