package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONErrorHandler converts every error that escapes a handler or
// middleware into the ErrorResponse shape, so 404s, auth failures and
// rate-limit rejections look the same as handler errors. Messages
// carried by an echo.HTTPError pass through; anything else collapses
// to a generic 500 so internals never leak to clients.
func JSONErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		}

		_ = c.JSON(code, ErrorResponse{Error: msg, Code: code})
	}
}
