package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/discovery"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

// Surface is the slice of C8 this handler drives.
type Surface interface {
	ListServices(ctx context.Context) model.ServiceListResponse
	ListModules(ctx context.Context) model.ModuleListResponse
	GetServiceByName(ctx context.Context, name string) (*model.ServiceDetails, error)
	GetModuleByName(ctx context.Context, name string) (*model.ModuleDetails, error)
	GetServiceByID(ctx context.Context, id string) (*model.ServiceDetails, error)
	GetModuleByID(ctx context.Context, id string) (*model.ModuleDetails, error)
	ResolveService(ctx context.Context, req model.ServiceResolveRequest) model.ServiceResolveResponse
	WatchServices(ctx context.Context) <-chan model.ServiceListResponse
	WatchModules(ctx context.Context) <-chan model.ModuleListResponse
}

// DiscoveryHandler exposes ListServices/ListModules/GetService/GetModule/
// ResolveService/WatchServices/WatchModules over HTTP.
type DiscoveryHandler struct {
	surface Surface
	logger  config.Logger
}

// NewDiscoveryHandler builds a DiscoveryHandler.
func NewDiscoveryHandler(surface Surface, logger config.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{surface: surface, logger: logger}
}

// RegisterRoutes mounts the discovery endpoints under the given group.
func (h *DiscoveryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/services", h.listServices)
	g.GET("/services/watch", h.watchServices)
	g.GET("/services/:nameOrId", h.getService)
	g.POST("/services/resolve", h.resolveService)

	g.GET("/modules", h.listModules)
	g.GET("/modules/watch", h.watchModules)
	g.GET("/modules/:nameOrId", h.getModule)
}

func (h *DiscoveryHandler) listServices(c echo.Context) error {
	return ok(c, h.surface.ListServices(c.Request().Context()))
}

func (h *DiscoveryHandler) listModules(c echo.Context) error {
	return ok(c, h.surface.ListModules(c.Request().Context()))
}

// getService tries nameOrId as a serviceId first and falls back to a
// by-name lookup whenever the id lookup fails (malformed id or no exact
// match), so names that themselves contain dashes still resolve.
func (h *DiscoveryHandler) getService(c echo.Context) error {
	nameOrID := c.Param("nameOrId")
	ctx := c.Request().Context()

	if svc, err := h.surface.GetServiceByID(ctx, nameOrID); err == nil {
		return ok(c, svc)
	}
	svc, err := h.surface.GetServiceByName(ctx, nameOrID)
	if err != nil {
		return serviceLookupError(c, err)
	}
	return ok(c, svc)
}

func (h *DiscoveryHandler) getModule(c echo.Context) error {
	nameOrID := c.Param("nameOrId")
	ctx := c.Request().Context()

	if mod, err := h.surface.GetModuleByID(ctx, nameOrID); err == nil {
		return ok(c, mod)
	}
	mod, err := h.surface.GetModuleByName(ctx, nameOrID)
	if err != nil {
		return serviceLookupError(c, err)
	}
	return ok(c, mod)
}

func serviceLookupError(c echo.Context, err error) error {
	if errors.Is(err, discovery.ErrNotFound) {
		return fail(c, http.StatusNotFound, err.Error())
	}
	return fail(c, http.StatusInternalServerError, err.Error())
}

func (h *DiscoveryHandler) resolveService(c echo.Context) error {
	req := new(model.ServiceResolveRequest)
	if err := c.Bind(req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return ok(c, h.surface.ResolveService(c.Request().Context(), *req))
}

func (h *DiscoveryHandler) watchServices(c echo.Context) error {
	return sseStream(c, func(ctx context.Context) <-chan model.ServiceListResponse {
		return h.surface.WatchServices(ctx)
	})
}

func (h *DiscoveryHandler) watchModules(c echo.Context) error {
	return sseStream(c, func(ctx context.Context) <-chan model.ModuleListResponse {
		return h.surface.WatchModules(ctx)
	})
}

// sseStream writes every value received on the opened channel as one SSE
// "data:" frame, terminating when the request's context is cancelled.
func sseStream[T any](c echo.Context, open func(ctx context.Context) <-chan T) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	ch := open(c.Request().Context())
	for snapshot := range ch {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Response().Flush()
	}
	return nil
}
