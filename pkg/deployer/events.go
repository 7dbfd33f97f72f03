package deployer

import (
	"sync"
	"time"
)

type Step string

const (
	StepCreated        Step = "created"
	StepConfigured     Step = "configured"
	StepSourceResolved Step = "source_resolved"
	StepBuilding       Step = "building"
	StepScaled         Step = "scaled"
	StepSucceeded      Step = "succeeded"
	StepFailed         Step = "failed"
	StepTimeout        Step = "timeout"
)

// Terminal steps end a deployment. Exactly one of them is reported per deployment.
func (s Step) Terminal() bool {
	return s == StepSucceeded || s == StepFailed || s == StepTimeout
}

const (
	MessageSucceeded = "Deployment succeeded"
	MessageFailed    = "Deployment failed"
)

type Event struct {
	Step          Step          `json:"step"`
	Message       string        `json:"message"`
	App           string        `json:"app"`
	BuildID       string        `json:"buildId,omitempty"`
	CorrelationID string        `json:"correlationId"`
	Time          time.Time     `json:"time"`
	Error         *ErrorPayload `json:"error,omitempty"`
}

// Reporter receives deployment events in order. Report must not block for long.
type Reporter interface {
	Report(event Event)
}

type ReporterFunc func(event Event)

func (f ReporterFunc) Report(event Event) {
	f(event)
}

// Collector keeps every reported event, for request/response style clients.
type Collector struct {
	lock   sync.Mutex
	events []Event
}

var _ Reporter = &Collector{}

func (c *Collector) Report(event Event) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events = append(c.events, event)
}

func (c *Collector) Events() []Event {
	c.lock.Lock()
	defer c.lock.Unlock()
	events := make([]Event, len(c.events))
	copy(events, c.events)
	return events
}

// Discard drops all events.
var Discard Reporter = ReporterFunc(func(Event) {})
