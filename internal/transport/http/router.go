// Package http implements the external interface (A3): an echo-based HTTP
// surface mapping the RPC method shapes of §6 onto JSON, chunked NDJSON,
// and SSE bodies.
package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/io-pipeline/platform-registration-service/internal/config"
)

// apiResponse is the uniform envelope the teacher's handlers use.
type apiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, apiResponse{Code: http.StatusOK, Message: "ok", Data: data})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, apiResponse{Code: status, Message: message})
}

// Server wires every handler group onto one echo.Echo instance.
type Server struct {
	echo   *echo.Echo
	logger config.Logger
}

// NewServer builds the HTTP surface from its handler groups.
func NewServer(logger config.Logger, registration *RegistrationHandler, discovery *DiscoveryHandler, schema *SchemaHandler, readiness *ReadinessHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	v1 := e.Group("/v1")
	registration.RegisterRoutes(v1)
	discovery.RegisterRoutes(v1)
	schema.RegisterRoutes(v1)
	readiness.RegisterRoutes(e)

	return &Server{echo: e, logger: logger}
}

// Start runs the HTTP server; it blocks until the listener fails or is
// closed via Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
