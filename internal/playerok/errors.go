package playerok

import (
	"errors"
	"fmt"
)

// ErrBlocked is returned when the API refuses the current identity (HTTP 403
// or an access-denial marker in the body). The transport rotates its identity
// before returning it; retrying the same call is safe.
var ErrBlocked = errors.New("playerok: access blocked, identity rotated")

// StatusError reports a non-2xx HTTP status from the API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("playerok: unexpected status code %d", e.Code)
}

// MaxRetriesError is returned when all transport attempts are exhausted
// without a decodable success.
type MaxRetriesError struct {
	Attempts int
	Last     error
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("playerok: %d attempts exhausted: %v", e.Attempts, e.Last)
}

func (e *MaxRetriesError) Unwrap() error { return e.Last }

// APIError reports a GraphQL-level error returned in the errors array of an
// otherwise successful response.
type APIError struct {
	Operation string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("playerok: %s: %s", e.Operation, e.Message)
}

// DecodeError reports a structurally wrong payload: a field that is present
// but has the wrong type. Missing fields are never an error, they default.
type DecodeError struct {
	Path string
	Want string
	Got  any
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("playerok: decode %s: want %s, got %T", e.Path, e.Want, e.Got)
}
