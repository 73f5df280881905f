package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io-pipeline/platform-registration-service/internal/readiness"
)

type fakeChecker struct{ status readiness.Status }

func (f *fakeChecker) Check(ctx context.Context) readiness.Status { return f.status }

func TestReadyzReturns200WhenUp(t *testing.T) {
	h := NewReadinessHandler(&fakeChecker{status: readiness.Status{Up: true}}, noopLogger{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.readyz(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenDown(t *testing.T) {
	h := NewReadinessHandler(&fakeChecker{status: readiness.Status{Up: false}}, noopLogger{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.readyz(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
