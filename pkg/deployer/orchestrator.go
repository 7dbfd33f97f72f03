package deployer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nais/botdeploy/pkg/appname"
	"github.com/nais/botdeploy/pkg/github"
	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/logging"
	"github.com/nais/botdeploy/pkg/metrics"
	"github.com/nais/botdeploy/pkg/source"
	"github.com/nais/botdeploy/pkg/store"
	"github.com/nais/botdeploy/pkg/telemetry"
	log "github.com/sirupsen/logrus"
	otrace "go.opentelemetry.io/otel/trace"
)

// SourceResolver turns repository references into archives and picks the role to run.
type SourceResolver interface {
	ArchiveURL(repoRef string) (string, error)
	Probe(ctx context.Context, archiveURL string) error
	DetectRole(ctx context.Context, archiveURL string) source.RoleSelection
}

var _ SourceResolver = &source.Resolver{}

type Request struct {
	AppName   string `json:"appName"`
	Repo      string `json:"repo"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username,omitempty"`
}

type Result struct {
	App           string `json:"app"`
	URL           string `json:"url"`
	Role          string `json:"role"`
	BuildID       string `json:"buildId"`
	CorrelationID string `json:"correlationId"`
}

type Orchestrator struct {
	platform  heroku.Client
	resolver  SourceResolver
	store     store.Store
	verifier  github.Verifier
	templates *Templates
	cfg       Config
}

func New(cfg Config, platform heroku.Client, resolver SourceResolver, records store.Store, verifier github.Verifier) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	templates, err := NewTemplates(cfg.URLTemplate, cfg.ConfigVarsFile)
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		verifier = github.FakeVerifier()
	}
	return &Orchestrator{
		platform:  platform,
		resolver:  resolver,
		store:     records,
		verifier:  verifier,
		templates: templates,
		cfg:       cfg,
	}, nil
}

// deployment holds the state of one run through the workflow.
type deployment struct {
	ctx           context.Context
	logger        *log.Entry
	span          otrace.Span
	emitter       *emitter
	name          string
	repo          string
	archiveURL    string
	configVars    map[string]string
	selection     source.RoleSelection
	buildID       string
	created       bool
	buildStarted  bool
	correlationID string
}

// Deploy runs a deployment to completion and reports every step to reporter.
//
// The deployment is detached from ctx: when ctx is canceled, for instance because the
// client disconnected, the deployment goes on but no further events are reported.
func (o *Orchestrator) Deploy(ctx context.Context, req Request, reporter Reporter) (*Result, error) {
	started := time.Now()
	metrics.DeploymentStarted()

	correlationID := uuid.New().String()
	name := appname.Sanitize(req.AppName)

	workCtx, span := telemetry.Tracer().Start(context.WithoutCancel(ctx), "deploy")
	defer span.End()
	span.SetAttributes(
		telemetry.AttributeApp.String(name),
		telemetry.AttributeCorrelationID.String(correlationID),
		telemetry.AttributeRepository.String(req.Repo),
	)

	logger := log.WithFields(logging.DeploymentFields(name, correlationID, source.NormalizeReference(req.Repo)))

	d := &deployment{
		ctx:           workCtx,
		logger:        logger,
		span:          span,
		name:          name,
		repo:          source.NormalizeReference(req.Repo),
		correlationID: correlationID,
		emitter:       newEmitter(ctx, reporter, logger, name, correlationID),
	}

	result, err := o.run(d, req)

	outcome := string(StepSucceeded)
	if err != nil {
		outcome = string(StepFailed)
		if ErrorKind(err) == KindTimeout {
			outcome = string(StepTimeout)
		}
		telemetry.MarkFailed(span, err)
		o.rollback(d)
		d.emitter.fail(err, d.buildID)
		logger.WithField(logging.FieldBuildID, d.buildID).Errorf("Deployment failed after %s: %s", time.Since(started).Round(time.Millisecond), err)
	} else {
		d.emitter.succeed(result.URL, d.buildID)
		logger.WithField(logging.FieldBuildID, d.buildID).Infof("Deployment succeeded after %s", time.Since(started).Round(time.Millisecond))
	}

	metrics.DeploymentFinished(outcome, started)

	return result, err
}

func (o *Orchestrator) run(d *deployment, req Request) (*Result, error) {
	err := o.validate(d, req)
	if err != nil {
		return nil, err
	}

	err = o.step(d, StepCreated, func(ctx context.Context) (string, error) {
		_, err := o.platform.CreateApp(ctx, d.name)
		if err != nil {
			return "", ErrorWrap(KindPlatform, err)
		}
		d.created = true
		return fmt.Sprintf("App %s created", d.name), nil
	})
	if err != nil {
		return nil, err
	}

	err = o.step(d, StepConfigured, func(ctx context.Context) (string, error) {
		err := o.platform.SetConfig(ctx, d.name, d.configVars)
		if err != nil {
			return "", ErrorWrap(KindPlatform, err)
		}
		return fmt.Sprintf("Configured %d config vars", len(d.configVars)), nil
	})
	if err != nil {
		return nil, err
	}

	err = o.step(d, StepSourceResolved, func(ctx context.Context) (string, error) {
		err := o.resolver.Probe(ctx, d.archiveURL)
		if err != nil {
			return "", ErrorWrap(KindSource, err)
		}
		d.selection = o.resolver.DetectRole(ctx, d.archiveURL)
		d.span.SetAttributes(telemetry.AttributeRole.String(d.selection.Role))
		d.logger = d.logger.WithField(logging.FieldRole, d.selection.Role)
		origin := "Procfile"
		if !d.selection.FromProcfile {
			origin = "default"
		}
		return fmt.Sprintf("Source %s resolved, running process type '%s' (%s)", d.archiveURL, d.selection.Role, origin), nil
	})
	if err != nil {
		return nil, err
	}

	err = o.step(d, StepBuilding, func(ctx context.Context) (string, error) {
		build, err := o.platform.StartBuild(ctx, d.name, d.archiveURL)
		if err != nil {
			return "", ErrorWrap(KindPlatform, err)
		}
		d.buildID = build.ID
		d.buildStarted = true
		d.span.SetAttributes(telemetry.AttributeBuildID.String(build.ID))
		d.logger = d.logger.WithField(logging.FieldBuildID, build.ID)
		return fmt.Sprintf("Build %s started", build.ID), nil
	})
	if err != nil {
		return nil, err
	}

	build, err := o.pollBuild(d)
	if err != nil {
		return nil, err
	}
	if build.Status == heroku.BuildFailed {
		return nil, Errorf(KindBuild, "build %s failed", build.ID)
	}

	err = o.step(d, StepScaled, func(ctx context.Context) (string, error) {
		updates := source.Formation(d.selection.Role, d.selection.Declared, o.cfg.Baseline)
		err := o.platform.SetFormation(ctx, d.name, updates)
		if err != nil {
			return "", ErrorWrap(KindPlatform, err)
		}
		return fmt.Sprintf("Scaled process type '%s' to 1 dyno", d.selection.Role), nil
	})
	if err != nil {
		return nil, err
	}

	url, err := o.templates.URL(d.name)
	if err != nil {
		return nil, ErrorWrap(KindInternal, err)
	}

	err = o.store.Upsert(d.ctx, store.Record{
		Name:        d.name,
		Repo:        d.repo,
		ConfigValue: req.SessionID,
		URL:         url,
		Role:        d.selection.Role,
	})
	if err != nil {
		return nil, Errorf(KindInternal, "persist bot record: %s", err)
	}

	return &Result{
		App:           d.name,
		URL:           url,
		Role:          d.selection.Role,
		BuildID:       d.buildID,
		CorrelationID: d.correlationID,
	}, nil
}

// validate rejects a request before any remote call is made.
func (o *Orchestrator) validate(d *deployment, req Request) error {
	if err := appname.Validate(d.name); err != nil {
		return Errorf(KindValidation, "invalid app name '%s': %s", req.AppName, err)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if len(sessionID) == 0 {
		return Errorf(KindValidation, "session id is required")
	}

	archiveURL, err := o.resolver.ArchiveURL(req.Repo)
	if err != nil {
		return ErrorWrap(KindValidation, err)
	}
	d.archiveURL = archiveURL

	if o.cfg.RequireFork {
		eligible, err := o.verifier.Verify(d.ctx, req.Username)
		switch {
		case errors.Is(err, github.ErrEmptyUsername):
			return Errorf(KindValidation, "a GitHub username is required")
		case err != nil:
			return Errorf(KindInternal, "verify GitHub user: %s", err)
		case !eligible:
			return Errorf(KindValidation, "GitHub user '%s' has not forked the bot repository", req.Username)
		}
	}

	vars, err := o.templates.ConfigVars(templateVariables(d.name, d.repo, sessionID))
	if err != nil {
		return ErrorWrap(KindValidation, err)
	}
	vars[o.cfg.ConfigVarKey] = sessionID
	d.configVars = vars

	return nil
}

// step runs one workflow step in its own span, and reports it when it succeeds.
func (o *Orchestrator) step(d *deployment, step Step, fn func(ctx context.Context) (string, error)) error {
	ctx, span := telemetry.Tracer().Start(d.ctx, string(step))
	defer span.End()

	message, err := fn(ctx)
	if err != nil {
		telemetry.MarkFailed(span, err)
		return err
	}

	d.logger.WithField(logging.FieldStep, step).Info(message)
	d.emitter.emit(step, message, d.buildID)

	return nil
}

// rollback deletes an app that was created by a deployment which failed before its build started.
func (o *Orchestrator) rollback(d *deployment) {
	if !o.cfg.RollbackOnFailure || !d.created || d.buildStarted {
		return
	}
	err := o.platform.DeleteApp(d.ctx, d.name)
	if err != nil {
		d.logger.Errorf("Rollback: delete app: %s", err)
		return
	}
	d.logger.Infof("Rollback: deleted app %s", d.name)
}
