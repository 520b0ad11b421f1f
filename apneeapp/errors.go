package apneeapp

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// The texts of these errors reach the front-end unchanged.
var (
	// ErrDataFileNotFound is returned when Drive answered the search, but with other files only.
	ErrDataFileNotFound = errors.New("Data file not found on your drive !")
	// ErrFileNotFound is returned when the search matched nothing.
	ErrFileNotFound = errors.New("file not found !")
	// ErrMissingFileID is returned when a save request does not say which file to write.
	ErrMissingFileID = errors.New("missing file id")
	// ErrNotLoggedIn is returned when no token was ever stored.
	ErrNotLoggedIn = errors.New("not logged in. Please run 'apnee login' or authenticate from the application")
	// ErrLoginInProgress is returned when a login is requested while another one waits for the user.
	ErrLoginInProgress = errors.New("a login is already in progress")
)

// ErrorText returns the text forwarded to the front-end for err: the raw body Drive
// answered with when there is one, the error message otherwise. A missing login is
// reported without the request that hit it.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotLoggedIn) {
		return ErrNotLoggedIn.Error()
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && strings.TrimSpace(gerr.Body) != "" {
		return gerr.Body
	}
	return err.Error()
}

// IsUnauthorized returns true if Drive rejected the credentials.
func IsUnauthorized(err error) bool {
	return hasCode(err, http.StatusUnauthorized)
}

// IsNotFound returns true if Drive has no such file.
func IsNotFound(err error) bool {
	return hasCode(err, http.StatusNotFound)
}

// IsRateLimited returns true if Drive asked to slow down.
func IsRateLimited(err error) bool {
	return hasCode(err, http.StatusTooManyRequests)
}

func hasCode(err error, code int) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == code
	}
	return false
}
