package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

// Orchestrator is the slice of C6 this handler drives.
type Orchestrator interface {
	RegisterService(ctx context.Context, req model.ServiceRegistrationRequest) <-chan model.RegistrationEvent
	RegisterModule(ctx context.Context, req model.ModuleRegistrationRequest) <-chan model.RegistrationEvent
	UnregisterService(ctx context.Context, req model.UnregisterRequest) model.UnregisterResponse
	UnregisterModule(ctx context.Context, req model.UnregisterRequest) model.UnregisterResponse
}

// RegistrationHandler exposes RegisterService/RegisterModule/UnregisterService/
// UnregisterModule over HTTP, streaming progress as chunked NDJSON.
type RegistrationHandler struct {
	orchestrator Orchestrator
	logger       config.Logger
}

// NewRegistrationHandler builds a RegistrationHandler.
func NewRegistrationHandler(orchestrator Orchestrator, logger config.Logger) *RegistrationHandler {
	return &RegistrationHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes mounts the registration endpoints under the given group.
func (h *RegistrationHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/services", h.registerService)
	g.DELETE("/services/:name/:host/:port", h.unregisterService)
	g.POST("/modules", h.registerModule)
	g.DELETE("/modules/:name/:host/:port", h.unregisterModule)
}

func (h *RegistrationHandler) registerService(c echo.Context) error {
	req := new(model.ServiceRegistrationRequest)
	if err := c.Bind(req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	events := h.orchestrator.RegisterService(c.Request().Context(), *req)
	return streamEvents(c, events)
}

func (h *RegistrationHandler) registerModule(c echo.Context) error {
	req := new(model.ModuleRegistrationRequest)
	if err := c.Bind(req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	events := h.orchestrator.RegisterModule(c.Request().Context(), *req)
	return streamEvents(c, events)
}

// streamEvents writes each RegistrationEvent as one NDJSON line, flushing
// after every write so the client observes progress as it happens.
func streamEvents(c echo.Context, events <-chan model.RegistrationEvent) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response())
	for event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
		c.Response().Flush()
	}
	return nil
}

func unregisterParams(c echo.Context) (model.UnregisterRequest, error) {
	port, err := strconv.Atoi(c.Param("port"))
	if err != nil {
		return model.UnregisterRequest{}, err
	}
	return model.UnregisterRequest{
		ServiceName: c.Param("name"),
		Host:        c.Param("host"),
		Port:        port,
	}, nil
}

func (h *RegistrationHandler) unregisterService(c echo.Context) error {
	req, err := unregisterParams(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid port: "+err.Error())
	}
	resp := h.orchestrator.UnregisterService(c.Request().Context(), req)
	return ok(c, resp)
}

func (h *RegistrationHandler) unregisterModule(c echo.Context) error {
	req, err := unregisterParams(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid port: "+err.Error())
	}
	resp := h.orchestrator.UnregisterModule(c.Request().Context(), req)
	return ok(c, resp)
}
