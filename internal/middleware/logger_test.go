package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(original) })
	return &buf
}

func TestFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, custom, FromContext(WithLogger(context.Background(), custom)))
}

func TestLogger_CarriesRequestID(t *testing.T) {
	buf := captureDefaultLogger(t)

	e := echo.New()
	e.Use(echomw.RequestID())
	e.Use(Logger)
	e.GET("/", func(c echo.Context) error {
		FromContext(c.Request().Context()).Info("inside handler")
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	reqID := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, reqID)
	assert.Contains(t, buf.String(), "inside handler")
	assert.Contains(t, buf.String(), "request_id="+reqID)
}

func TestRequestLogger(t *testing.T) {
	buf := captureDefaultLogger(t)

	e := echo.New()
	e.Use(echomw.RequestID())
	e.Use(Logger)
	e.Use(RequestLogger())
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/fail", func(c echo.Context) error { return errors.New("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, buf.String(), "level=INFO msg=\"HTTP request\"")
	assert.Contains(t, buf.String(), "uri=/ok")
	assert.Contains(t, buf.String(), "status=204")

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "error=kaboom")
}
