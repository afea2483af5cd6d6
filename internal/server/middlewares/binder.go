package middlewares

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notepad/internal/resterror"
)

type binder struct {
	echo.DefaultBinder
	methodsWithBody map[string]bool
}

// NewBinder returns a wrapp of the default binder implementation with extra checks.
func NewBinder() echo.Binder {
	return &binder{
		methodsWithBody: map[string]bool{
			http.MethodPost:  true,
			http.MethodPatch: true,
			http.MethodPut:   true,
		},
	}
}

// Bind implements the echo.Bind interface.
func (b *binder) Bind(i any, c echo.Context) (err error) {
	if c.Request().ContentLength == 0 && b.methodsWithBody[c.Request().Method] {
		return resterror.NewWithCode(http.StatusBadRequest, resterror.CodeEmptyBody, "Request body can't be empty")
	}

	if err = b.DefaultBinder.BindBody(c, i); err != nil {
		return resterror.NewWithCode(http.StatusBadRequest, resterror.CodeBadRequest, "Could not parse request body").
			WithDetails(err.Error())
	}
	return nil
}
