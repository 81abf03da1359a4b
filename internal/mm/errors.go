package mm

import (
	"errors"
	"fmt"
)

// ErrAuthFailed is returned by Login when the server rejects the given
// credentials (non-200 on POST users/login).
var ErrAuthFailed = errors.New("authentication failed")

// HttpError wraps a non-200 response from any other endpoint. ServerMessage
// and ServerDetail are populated from the server's error JSON body when
// present ({"message": "...", "detailed_error": "..."}); both are empty if
// the body wasn't JSON or didn't carry those keys.
type HttpError struct {
	Status        int
	ServerMessage string
	ServerDetail  string
	Path          string
}

func (e *HttpError) Error() string {
	if e.ServerMessage != "" {
		return fmt.Sprintf("mm: %s returned %d: %s", e.Path, e.Status, e.ServerMessage)
	}

	return fmt.Sprintf("mm: %s returned %d", e.Path, e.Status)
}

// IsNotFound reports whether err is an HttpError with status 404.
func IsNotFound(err error) bool {
	var he *HttpError

	return errors.As(err, &he) && he.Status == 404
}

// IsUnauthorized reports whether err is an HttpError with status 401.
func IsUnauthorized(err error) bool {
	var he *HttpError

	return errors.As(err, &he) && he.Status == 401
}
