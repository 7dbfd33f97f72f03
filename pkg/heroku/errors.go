package heroku

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is returned for every response outside the 2xx range.
type Error struct {
	Operation  string
	StatusCode int
	Body       string

	// Populated when the body is a platform error document.
	ID      string
	Message string
}

func (err *Error) Error() string {
	msg := err.Message
	if len(msg) == 0 {
		msg = err.Body
	}
	return fmt.Sprintf("%s: platform returned %d %s: %s", err.Operation, err.StatusCode, http.StatusText(err.StatusCode), msg)
}

func newError(operation string, statusCode int, body []byte) *Error {
	e := &Error{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       string(body),
	}
	doc := struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}{}
	if json.Unmarshal(body, &doc) == nil {
		e.ID = doc.ID
		e.Message = doc.Message
	}
	return e
}

// AsError extracts the platform error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func statusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.StatusCode
	}
	return 0
}

// IsConflict reports whether the platform rejected a request because the resource already exists,
// such as creating an application whose name is taken.
func IsConflict(err error) bool {
	code := statusCode(err)
	return code == http.StatusConflict || code == http.StatusUnprocessableEntity
}

func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsTransient reports whether a retry of the same request might succeed.
// Network failures, rate limiting and server side errors are transient;
// every other platform response is definitive.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	e, ok := AsError(err)
	if !ok {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
