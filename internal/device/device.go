package device

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Device classes.
const (
	ClassDesktop = "desktop"
	ClassMobile  = "mobile"
	ClassTablet  = "tablet"
)

var (
	mobile = regexp.MustCompile(`Mobile|Android|iPhone|iPad`)
	tablet = regexp.MustCompile(`iPad`)
)

// Class infers the device class from the given user agent.
func Class(useragent string) string {
	if mobile.MatchString(useragent) {
		if tablet.MatchString(useragent) {
			return ClassTablet
		}
		return ClassMobile
	}
	return ClassDesktop
}

// Label returns the free-text origin label stored in notes for the given user agent.
func Label(useragent string) string {
	switch Class(useragent) {
	case ClassTablet:
		return "📱 Tablet"
	case ClassMobile:
		return "📱 Mobile"
	default:
		return "💻 Desktop"
	}
}

// UserAgent returns the user agent of this program.
func UserAgent(version string) string {
	os := runtime.GOOS
	switch os {
	case "android":
		os = "Android; Mobile"
	case "ios":
		os = "iPhone; Mobile"
	}
	return fmt.Sprintf("notepad/%s (%s; %s)", version, os, runtime.GOARCH)
}

// NewID generates a device identifier like `device-1700000000000-k3j5h2l9x`.
func NewID() string {
	return fmt.Sprintf("device-%d-%s", time.Now().UnixMilli(), random(9))
}

// NewAnonymousUserID generates an anonymous user identifier.
func NewAnonymousUserID() string {
	return "anon-" + uuid.Must(uuid.NewV4()).String()
}

func random(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		id := uuid.Must(uuid.NewV4())
		for _, b := range id.Bytes() {
			sb.WriteString(strconv.FormatInt(int64(b%36), 36))
		}
	}
	return sb.String()[:n]
}
