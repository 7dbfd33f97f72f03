package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/nais/botdeploy/pkg/api/middleware"
	"github.com/nais/botdeploy/pkg/github"
	log "github.com/sirupsen/logrus"
)

type VerifyResponse struct {
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

type VerifyHandler struct {
	Verifier github.Verifier
}

// ServeHTTP tells whether a GitHub user may deploy, that is whether the user owns a fork of the upstream repository.
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	logger := log.WithFields(middleware.RequestLogFields(r)).WithField("username", username)

	verified, err := h.Verifier.Verify(r.Context(), username)
	if err != nil {
		code := StatusCode(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		logger.Warnf("Verify fork: %s", err)
		respondMessage(w, r, code, err.Error())
		return
	}

	respond(w, r, http.StatusOK, VerifyResponse{
		Username: username,
		Verified: verified,
	})
}
