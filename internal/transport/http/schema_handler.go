package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
	"github.com/io-pipeline/platform-registration-service/internal/schema"
)

// Retriever is the slice of C7 this handler drives.
type Retriever interface {
	GetModuleSchema(ctx context.Context, moduleName, version string) (*model.ModuleSchemaResponse, error)
}

// SchemaHandler exposes GetModuleSchema over HTTP.
type SchemaHandler struct {
	retriever Retriever
	logger    config.Logger
}

// NewSchemaHandler builds a SchemaHandler.
func NewSchemaHandler(retriever Retriever, logger config.Logger) *SchemaHandler {
	return &SchemaHandler{retriever: retriever, logger: logger}
}

// RegisterRoutes mounts the schema endpoint under the given group.
func (h *SchemaHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/modules/:name/schema", h.getModuleSchema)
}

func (h *SchemaHandler) getModuleSchema(c echo.Context) error {
	name := c.Param("name")
	version := c.QueryParam("version")

	resp, err := h.retriever.GetModuleSchema(c.Request().Context(), name, version)
	if err != nil {
		if errors.Is(err, schema.ErrSchemaNotFound) {
			return fail(c, http.StatusNotFound, err.Error())
		}
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, resp)
}
