package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "botdeploy"

	StatusOK    = "ok"
	StatusError = "error"

	LabelStatus     = "status"
	LabelStatusCode = "status_code"
	LabelOperation  = "operation"
	LabelOutcome    = "outcome"
	LabelBackend    = "backend"
	LabelResult     = "result"
)

func statusLabel(err error) string {
	if err == nil {
		return StatusOK
	}
	return StatusError
}

// PlatformRequest counts one call to the Heroku Platform API.
// A status code of zero means the request never got a response.
func PlatformRequest(operation string, statusCode int) {
	platformRequests.With(prometheus.Labels{
		LabelOperation:  operation,
		LabelStatusCode: strconv.Itoa(statusCode),
	}).Inc()
}

func DatabaseQuery(backend string, t time.Time, err error) {
	elapsed := time.Since(t)
	databaseQueries.With(prometheus.Labels{
		LabelBackend: backend,
		LabelStatus:  statusLabel(err),
	}).Observe(elapsed.Seconds())
}

func BuildPoll() {
	buildPolls.Inc()
}

func DeploymentStarted() {
	inFlight.Inc()
}

func DeploymentFinished(outcome string, started time.Time) {
	inFlight.Dec()
	deployments.With(prometheus.Labels{
		LabelOutcome: outcome,
	}).Inc()
	deployDuration.With(prometheus.Labels{
		LabelOutcome: outcome,
	}).Observe(time.Since(started).Seconds())
}

func ForkCheck(result string) {
	forkChecks.With(prometheus.Labels{
		LabelResult: result,
	}).Inc()
}

func SetEventSubscribers(n int) {
	eventSubscribers.Set(float64(n))
}

var (
	platformRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "platform_requests",
		Help:      "number of Heroku Platform API requests made",
		Namespace: namespace,
	},
		[]string{
			LabelOperation,
			LabelStatusCode,
		},
	)

	databaseQueries = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "database_queries",
		Help:      "time to execute record store queries",
		Namespace: namespace,
		Buckets:   prometheus.LinearBuckets(0.005, 0.005, 20),
	},
		[]string{
			LabelBackend,
			LabelStatus,
		},
	)

	buildPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "build_polls",
		Help:      "number of build status checks",
		Namespace: namespace,
	})

	inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "deployments_in_flight",
		Help:      "number of unfinished deployments",
		Namespace: namespace,
	})

	deployments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "deployments",
		Help:      "finished deployments by outcome",
		Namespace: namespace,
	},
		[]string{
			LabelOutcome,
		},
	)

	deployDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "deployment_duration_seconds",
		Help:      "time from deployment request to terminal state",
		Namespace: namespace,
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
	},
		[]string{
			LabelOutcome,
		},
	)

	forkChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "fork_checks",
		Help:      "fork eligibility lookups, partitioned by cache result",
		Namespace: namespace,
	},
		[]string{
			LabelResult,
		},
	)

	eventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "event_subscribers",
		Help:      "number of connected dashboard event streams",
		Namespace: namespace,
	})
)

func init() {
	prometheus.MustRegister(platformRequests)
	prometheus.MustRegister(databaseQueries)
	prometheus.MustRegister(buildPolls)
	prometheus.MustRegister(inFlight)
	prometheus.MustRegister(deployments)
	prometheus.MustRegister(deployDuration)
	prometheus.MustRegister(forkChecks)
	prometheus.MustRegister(eventSubscribers)
}
