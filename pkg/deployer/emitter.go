package deployer

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// emitter forwards events to a reporter for as long as the requesting context lives,
// and makes sure at most one terminal event is reported.
type emitter struct {
	ctx           context.Context
	reporter      Reporter
	logger        *log.Entry
	app           string
	correlationID string
	terminal      bool
	disconnected  bool
}

func newEmitter(ctx context.Context, reporter Reporter, logger *log.Entry, app, correlationID string) *emitter {
	if reporter == nil {
		reporter = Discard
	}
	return &emitter{
		ctx:           ctx,
		reporter:      reporter,
		logger:        logger,
		app:           app,
		correlationID: correlationID,
	}
}

func (e *emitter) report(event Event) {
	if e.terminal {
		return
	}
	e.terminal = event.Step.Terminal()

	if e.ctx.Err() != nil {
		if !e.disconnected {
			e.disconnected = true
			e.logger.Warnf("Client went away; deployment continues without reporting progress")
		}
		return
	}

	event.App = e.app
	event.CorrelationID = e.correlationID
	event.Time = time.Now()
	e.reporter.Report(event)
}

func (e *emitter) emit(step Step, message, buildID string) {
	e.report(Event{
		Step:    step,
		Message: message,
		BuildID: buildID,
	})
}

func (e *emitter) succeed(url, buildID string) {
	e.report(Event{
		Step:    StepSucceeded,
		Message: fmt.Sprintf("%s: %s", MessageSucceeded, url),
		BuildID: buildID,
	})
}

func (e *emitter) fail(err error, buildID string) {
	step := StepFailed
	if ErrorKind(err) == KindTimeout {
		step = StepTimeout
	}
	e.report(Event{
		Step:    step,
		Message: fmt.Sprintf("%s: %s", MessageFailed, err),
		BuildID: buildID,
		Error:   Payload(err),
	})
}
