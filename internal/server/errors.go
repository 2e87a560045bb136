package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/relay/internal/handlers"
	"github.com/nfrund/relay/internal/middleware"
)

// setupErrorHandling installs the central HTTP error handler. Echo errors keep
// their status; anything else is logged with a stack trace and answered 500.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			writeError(c, he.Code, codeFor(he.Code), fmt.Sprint(he.Message))
			return
		}

		ctx := c.Request().Context()
		middleware.FromContext(ctx).ErrorContext(ctx, "Internal Server Error (Unhandled)",
			"error", err.Error(),
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"stack_trace", string(debug.Stack()),
		)
		writeError(c, http.StatusInternalServerError, handlers.CodeInternal, http.StatusText(http.StatusInternalServerError))
	}
}

func writeError(c echo.Context, status int, code, message string) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, handlers.ErrorResponse{Code: code, Message: message})
	}
	if err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to write error response", "error", err)
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return handlers.CodeNotFound
	case http.StatusBadRequest:
		return handlers.CodeBadRequest
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}
