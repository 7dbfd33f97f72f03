package deployer

import (
	"errors"
	"fmt"

	"github.com/nais/botdeploy/pkg/heroku"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindPlatform   Kind = "platform"
	KindBuild      Kind = "build"
	KindSource     Kind = "source"
	KindTimeout    Kind = "timeout"
	KindInternal   Kind = "internal"
)

type Error struct {
	Kind Kind
	Err  error
}

func (err *Error) Error() string {
	return err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

func ErrorWrap(kind Kind, err error) *Error {
	return &Error{
		Kind: kind,
		Err:  err,
	}
}

// ErrorKind returns the kind of a deployment error. Unclassified errors are internal.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrorPayload is the structured form of a deployment failure.
type ErrorPayload struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Body       string `json:"body,omitempty"`
}

func Payload(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	payload := &ErrorPayload{
		Kind:    ErrorKind(err),
		Message: err.Error(),
	}
	if perr, ok := heroku.AsError(err); ok {
		payload.StatusCode = perr.StatusCode
		payload.Body = perr.Body
	}
	return payload
}
