// Package sharelink builds and reads the URLs used to share a sync identifier between devices.
package sharelink

import (
	"net/url"

	"github.com/mdouchement/notepad/internal/notify"
	"github.com/pkg/errors"
)

// Param is the query parameter carrying the anonymous user identifier.
const Param = "sync"

// Generate returns the sync URL of the given identifier.
// Existing query parameters of base are dropped.
func Generate(base, anonymousUserID string) (string, error) {
	if anonymousUserID == "" {
		return "", errors.New("missing anonymous user identifier")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "could not parse base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("invalid base URL: %q", base)
	}

	u.RawQuery = url.Values{Param: []string{anonymousUserID}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Detect returns the identifier carried by rawURL when it differs from current.
// A bare identifier is accepted as well as a full URL.
func Detect(rawURL, current string) (string, bool) {
	id := rawURL

	if u, err := url.Parse(rawURL); err == nil && (u.Scheme != "" || u.RawQuery != "") {
		id = u.Query().Get(Param)
	}

	if id == "" || id == current {
		return "", false
	}
	return id, true
}

// Notify reports a detected sync identifier.
func Notify(notifier notify.Notifier) {
	notifier.Notify(notify.Info("Sync URL detected", "Enable cloud sync and refresh to load shared notes."))
}
