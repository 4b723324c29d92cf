// Package response writes the JSON envelope every API endpoint returns and
// renders errors into the same shape.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medq/medq/pkg/models"
)

// OK writes {success:true, data, message} with status 200.
func OK(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, models.Envelope{Success: true, Data: data, Message: message})
}

// Created writes the envelope with status 201.
func Created(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusCreated, models.Envelope{Success: true, Data: data, Message: message})
}

// ErrorHandler renders every error returned by a handler or middleware as
// {success:false, error, detail}. Unknown errors become a 500 whose detail
// is logged but not exposed.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			detail = messageOf(he)
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		body := models.Envelope{
			Success: false,
			Error:   http.StatusText(code),
			Detail:  detail,
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprintf("%v", m)
	}
}
