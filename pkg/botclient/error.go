package botclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nais/botdeploy/pkg/deployer"
)

type ExitCode int

// Keep separate to avoid skewing exit codes
const (
	ExitSuccess ExitCode = iota
	ExitDeploymentFailure
	ExitBuildFailure
	ExitNoDeployment
	ExitUnavailable
	ExitInvocationFailure
	ExitInternalError
	ExitTimeout
	ExitNotFound
)

type Error struct {
	Code ExitCode
	Err  error
}

func (err *Error) Error() string {
	return err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func Errorf(exitCode ExitCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: exitCode,
		Err:  fmt.Errorf(format, args...),
	}
}

func ErrorWrap(exitCode ExitCode, err error) *Error {
	return &Error{
		Code: exitCode,
		Err:  err,
	}
}

func ErrorExitCode(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitInternalError
	}
	return e.Code
}

// KindExitCode maps the kind of a failed deployment to an exit code.
func KindExitCode(kind deployer.Kind) ExitCode {
	switch kind {
	case deployer.KindValidation:
		return ExitNoDeployment
	case deployer.KindPlatform:
		return ExitDeploymentFailure
	case deployer.KindBuild, deployer.KindSource:
		return ExitBuildFailure
	case deployer.KindTimeout:
		return ExitTimeout
	default:
		return ExitInternalError
	}
}

func statusExitCode(statusCode int) ExitCode {
	switch statusCode {
	case http.StatusBadRequest, http.StatusConflict:
		return ExitNoDeployment
	case http.StatusNotFound:
		return ExitNotFound
	case http.StatusUnprocessableEntity:
		return ExitBuildFailure
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusNotImplemented:
		return ExitUnavailable
	case http.StatusGatewayTimeout:
		return ExitTimeout
	default:
		return ExitInternalError
	}
}
