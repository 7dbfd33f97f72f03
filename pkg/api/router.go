package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chi_middleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/nais/botdeploy/pkg/api/middleware"
	"github.com/nais/botdeploy/pkg/github"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultMetricsPath       = "/metrics"
)

var requestTimeout = time.Second * 30

type Config struct {
	Deployer          Deployer
	Manager           Manager
	Events            EventSource
	Verifier          github.Verifier
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	MetricsPath       string
}

func New(cfg Config) chi.Router {
	prometheusMiddleware := middleware.PrometheusMiddleware("botdeployd")

	if len(cfg.MetricsPath) == 0 {
		cfg.MetricsPath = DefaultMetricsPath
	}
	if cfg.Verifier == nil {
		cfg.Verifier = github.FakeVerifier()
	}

	deploymentHandler := &DeploymentHandler{
		Deployer:          cfg.Deployer,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}
	botHandler := &BotHandler{
		Manager: cfg.Manager,
	}
	verifyHandler := &VerifyHandler{
		Verifier: cfg.Verifier,
	}
	eventHandler := &EventHandler{
		Source:            cfg.Events,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}

	// Pre-populate request metrics
	for _, code := range []int{http.StatusOK, http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadGateway, http.StatusGatewayTimeout} {
		prometheusMiddleware.Initialize("/deploy", http.MethodPost, code)
	}

	router := chi.NewRouter()
	router.Use(
		chi_middleware.RequestID,
		chi_middleware.RealIP,
		middleware.RequestLogger(),
		prometheusMiddleware.Handler(),
		chi_middleware.Recoverer,
		chi_middleware.StripSlashes,
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
	)

	router.Get(cfg.MetricsPath, promhttp.Handler().ServeHTTP)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Long running streams, no request timeout
	router.Get("/deploy/{appName}/logs", deploymentHandler.Stream)
	router.Get("/events", eventHandler.ServeHTTP)

	// Deployments run for as long as the build takes
	router.With(chi_middleware.AllowContentType("application/json")).Post("/deploy", deploymentHandler.Deploy)

	router.Group(func(r chi.Router) {
		r.Use(chi_middleware.Timeout(requestTimeout))

		r.Get("/bots", botHandler.List)
		r.Post("/restart/{appName}", botHandler.Restart)
		r.With(chi_middleware.AllowContentType("application/json")).Post("/update-session/{appName}", botHandler.UpdateSession)
		r.Delete("/delete/{appName}", botHandler.Delete)
		r.Get("/logs/{appName}", botHandler.LogSession)
		r.Get("/verify/{username}", verifyHandler.ServeHTTP)
	})

	return router
}
