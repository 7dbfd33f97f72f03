package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/nais/botdeploy/pkg/api/middleware"
	"github.com/nais/botdeploy/pkg/api/sse"
	"github.com/nais/botdeploy/pkg/deployer"
	log "github.com/sirupsen/logrus"
)

type Deployer interface {
	Deploy(ctx context.Context, req deployer.Request, reporter deployer.Reporter) (*deployer.Result, error)
}

var _ Deployer = &deployer.Orchestrator{}

type DeploymentResponse struct {
	App           string                 `json:"app"`
	URL           string                 `json:"url,omitempty"`
	Role          string                 `json:"role,omitempty"`
	BuildID       string                 `json:"buildId,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Events        []deployer.Event       `json:"events"`
	Error         *deployer.ErrorPayload `json:"error,omitempty"`
}

type DeploymentHandler struct {
	Deployer          Deployer
	HeartbeatInterval time.Duration
}

// Deploy runs a deployment and answers with the result and all events once it has finished.
func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	logger := log.WithFields(middleware.RequestLogFields(r))

	req := deployer.Request{}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, "unable to decode request body: "+err.Error())
		logger.Warnf("Decode deployment request: %s", err)
		return
	}

	collector := &deployer.Collector{}
	result, err := h.Deployer.Deploy(r.Context(), req, collector)

	response := DeploymentResponse{
		Events: collector.Events(),
	}
	if response.Events == nil {
		response.Events = make([]deployer.Event, 0)
	}
	if result != nil {
		response.App = result.App
		response.URL = result.URL
		response.Role = result.Role
		response.BuildID = result.BuildID
		response.CorrelationID = result.CorrelationID
	} else if n := len(response.Events); n > 0 {
		last := response.Events[n-1]
		response.App = last.App
		response.BuildID = last.BuildID
		response.CorrelationID = last.CorrelationID
	}

	if err != nil {
		response.Error = deployer.Payload(err)
		respond(w, r, DeploymentStatusCode(err), response)
		return
	}

	respond(w, r, http.StatusOK, response)
}

// Stream runs a deployment and streams every event as it happens.
// The stream ends after the terminal event.
func (h *DeploymentHandler) Stream(w http.ResponseWriter, r *http.Request) {
	logger := log.WithFields(middleware.RequestLogFields(r))

	query := r.URL.Query()
	req := deployer.Request{
		AppName:   chi.URLParam(r, "appName"),
		Repo:      query.Get("repo"),
		SessionID: query.Get("sessionId"),
		Username:  query.Get("username"),
	}

	stream, err := sse.New(w, logger)
	if err != nil {
		respondMessage(w, r, http.StatusInternalServerError, err.Error())
		logger.Error(err)
		return
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(r.Context())
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		stream.KeepAlive(ctx, h.heartbeatInterval())
	}()
	defer wg.Wait()
	defer cancel()

	reporter := deployer.ReporterFunc(func(event deployer.Event) {
		err := stream.SendMessage(string(event.Step), event.Message)
		if err != nil {
			logger.Debugf("Stream deployment event: %s", err)
		}
	})

	_, _ = h.Deployer.Deploy(r.Context(), req, reporter)
}

func (h *DeploymentHandler) heartbeatInterval() time.Duration {
	if h.HeartbeatInterval <= 0 {
		return DefaultHeartbeatInterval
	}
	return h.HeartbeatInterval
}
