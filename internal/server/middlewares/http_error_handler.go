package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notepad/internal/resterror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HTTPErrorHandler returns a handler that formats rendered errors as REST error documents.
func HTTPErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		switch cause := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if cause.Internal != nil {
				log.WithError(cause.Internal).Warn("Error [ECHO]")
			}
			render(c, resterror.NewWithCode(cause.Code, code(cause.Code), fmt.Sprint(cause.Message)))
		case *resterror.Error:
			if cause.HTTPCode < 500 {
				render(c, cause)
				return
			}

			internal(log, err, c)
		default:
			internal(log, err, c)
		}
	}
}

func internal(log logrus.FieldLogger, err error, c echo.Context) {
	id := uuid.Must(uuid.NewV4()).String()
	log.WithField("id", id).WithError(err).Error("Unexpected error")

	render(c, resterror.NewWithCode(http.StatusInternalServerError, resterror.CodeInternalServer, fmt.Sprintf("Unexpected error (id: %s)", id)))
}

func render(c echo.Context, err *resterror.Error) {
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(err.HTTPCode)
		return
	}
	_ = c.JSON(err.HTTPCode, err)
}

func code(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return resterror.CodeUnauthorized
	case http.StatusNotFound:
		return resterror.CodeUnknownTable
	}
	return resterror.CodeBadRequest
}
