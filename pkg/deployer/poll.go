package deployer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/metrics"
	"github.com/nais/botdeploy/pkg/telemetry"
)

// pollBuild waits for the build to reach a final status.
// It gives up after the configured number of attempts or when the poll timeout expires.
func (o *Orchestrator) pollBuild(d *deployment) (*heroku.Build, error) {
	ctx, span := telemetry.Tracer().Start(d.ctx, "poll_build")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.PollTimeout)
	defer cancel()

	timer := time.NewTimer(o.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= o.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			err := o.pollTimeout(ctx.Err(), d.buildID)
			telemetry.MarkFailed(span, err)
			return nil, err
		case <-timer.C:
		}

		build, err := o.getBuild(ctx, d.name, d.buildID)
		if err != nil {
			if ctx.Err() != nil {
				err = o.pollTimeout(ctx.Err(), d.buildID)
			} else {
				err = ErrorWrap(KindPlatform, err)
			}
			telemetry.MarkFailed(span, err)
			return nil, err
		}

		d.logger.Debugf("Build status after %d polls: %s", attempt, build.Status)

		if build.Status.Finished() {
			return build, nil
		}

		timer.Reset(o.cfg.PollInterval)
	}

	err := Errorf(KindTimeout, "build %s did not finish after %d status checks", d.buildID, o.cfg.PollMaxAttempts)
	telemetry.MarkFailed(span, err)
	return nil, err
}

func (o *Orchestrator) pollTimeout(err error, buildID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Errorf(KindTimeout, "build %s did not finish within %s", buildID, o.cfg.PollTimeout)
	}
	return ErrorWrap(KindInternal, err)
}

// getBuild fetches the build status, retrying transient failures with exponential backoff.
func (o *Orchestrator) getBuild(ctx context.Context, name, buildID string) (*heroku.Build, error) {
	var build *heroku.Build

	operation := func() error {
		var err error
		metrics.BuildPoll()
		build, err = o.platform.GetBuild(ctx, name, buildID)
		if err != nil && !heroku.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.cfg.PollInterval
	policy.MaxInterval = 4 * o.cfg.PollInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(o.cfg.PollTransientRetries)), ctx))
	if err != nil {
		return nil, err
	}

	return build, nil
}
