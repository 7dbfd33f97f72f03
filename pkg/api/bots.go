package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/nais/botdeploy/pkg/api/middleware"
	"github.com/nais/botdeploy/pkg/logging"
	"github.com/nais/botdeploy/pkg/management"
	"github.com/nais/botdeploy/pkg/store"
	log "github.com/sirupsen/logrus"
)

type Manager interface {
	Restart(ctx context.Context, appName string) error
	UpdateConfig(ctx context.Context, appName, value string) (*store.Record, error)
	Delete(ctx context.Context, appName string) error
	List(ctx context.Context) ([]management.Bot, error)
	LogSession(ctx context.Context, appName string) (string, error)
}

var _ Manager = &management.Manager{}

type UpdateSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type LogSessionResponse struct {
	LogplexURL string `json:"logplexUrl"`
}

type BotHandler struct {
	Manager Manager
}

func (h *BotHandler) logger(r *http.Request) *log.Entry {
	return log.WithFields(middleware.RequestLogFields(r)).WithField(logging.FieldApp, chi.URLParam(r, "appName"))
}

func (h *BotHandler) fail(w http.ResponseWriter, r *http.Request, logger *log.Entry, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		logger.Error(err)
	} else {
		logger.Info(err)
	}
	respondMessage(w, r, code, err.Error())
}

func (h *BotHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := log.WithFields(middleware.RequestLogFields(r))

	bots, err := h.Manager.List(r.Context())
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}
	if bots == nil {
		bots = make([]management.Bot, 0)
	}

	respond(w, r, http.StatusOK, bots)
}

func (h *BotHandler) Restart(w http.ResponseWriter, r *http.Request) {
	logger := h.logger(r)
	name := chi.URLParam(r, "appName")

	err := h.Manager.Restart(r.Context(), name)
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}

	respondMessage(w, r, http.StatusOK, fmt.Sprintf("Restarted %s", name))
}

func (h *BotHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	logger := h.logger(r)

	req := UpdateSessionRequest{}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, "unable to decode request body: "+err.Error())
		return
	}
	if len(req.SessionID) == 0 {
		respondMessage(w, r, http.StatusBadRequest, "sessionId must be set")
		return
	}

	record, err := h.Manager.UpdateConfig(r.Context(), chi.URLParam(r, "appName"), req.SessionID)
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}

	respond(w, r, http.StatusOK, record)
}

func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := h.logger(r)
	name := chi.URLParam(r, "appName")

	err := h.Manager.Delete(r.Context(), name)
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}

	respondMessage(w, r, http.StatusOK, fmt.Sprintf("Deleted %s", name))
}

func (h *BotHandler) LogSession(w http.ResponseWriter, r *http.Request) {
	logger := h.logger(r)

	url, err := h.Manager.LogSession(r.Context(), chi.URLParam(r, "appName"))
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}

	respond(w, r, http.StatusOK, LogSessionResponse{LogplexURL: url})
}
