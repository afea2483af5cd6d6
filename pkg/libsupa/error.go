package libsupa

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// An APIError represents an error document returned by the datastore REST API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func parseAPIError(r io.Reader, code int) error {
	apierr := APIError{StatusCode: code}

	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(payload, &apierr); err != nil || apierr.Message == "" {
		// Proxies and gateways render plain text or HTML.
		apierr.Message = fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	return &apierr
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// StatusCode returns the HTTP status code carried by err, 0 when err is not an APIError.
func StatusCode(err error) int {
	if apierr, ok := errors.Cause(err).(*APIError); ok {
		return apierr.StatusCode
	}
	return 0
}
