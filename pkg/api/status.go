package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/nais/botdeploy/pkg/deployer"
	"github.com/nais/botdeploy/pkg/github"
	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/management"
	"github.com/nais/botdeploy/pkg/store"
)

type MessageResponse struct {
	Message string `json:"message"`
}

// DeploymentStatusCode maps the kind of a failed deployment to an HTTP status code.
func DeploymentStatusCode(err error) int {
	switch deployer.ErrorKind(err) {
	case deployer.KindValidation:
		return http.StatusBadRequest
	case deployer.KindPlatform:
		if heroku.IsConflict(err) {
			return http.StatusConflict
		}
		return http.StatusBadGateway
	case deployer.KindBuild, deployer.KindSource:
		return http.StatusUnprocessableEntity
	case deployer.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode maps errors from bot management and fork verification to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, management.ErrInvalidName), errors.Is(err, github.ErrEmptyUsername):
		return http.StatusBadRequest
	case store.IsErrNotFound(err), heroku.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, github.ErrGitHubNotEnabled):
		return http.StatusNotImplemented
	}
	if _, ok := heroku.AsError(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respond(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	render.Status(r, code)
	render.JSON(w, r, v)
}

func respondMessage(w http.ResponseWriter, r *http.Request, code int, message string) {
	respond(w, r, code, MessageResponse{Message: message})
}
