package deployer_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nais/botdeploy/pkg/deployer"
	"github.com/nais/botdeploy/pkg/github"
	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/source"
	"github.com/nais/botdeploy/pkg/store"
	"github.com/nais/botdeploy/pkg/store/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	appName   = "my-bot"
	buildID   = "01234567-89ab-cdef-0123-456789abcdef"
	archive   = "https://github.com/owner/repo/archive/HEAD.tar.gz"
	sessionID = "session-abc"
)

type fakeResolver struct {
	archives  *source.Resolver
	probeErr  error
	selection source.RoleSelection
}

func (r *fakeResolver) ArchiveURL(repoRef string) (string, error) {
	return r.archives.ArchiveURL(repoRef)
}

func (r *fakeResolver) Probe(ctx context.Context, archiveURL string) error {
	return r.probeErr
}

func (r *fakeResolver) DetectRole(ctx context.Context, archiveURL string) source.RoleSelection {
	return r.selection
}

type verifierFunc func(username string) (bool, error)

func (f verifierFunc) Verify(ctx context.Context, username string) (bool, error) {
	return f(username)
}

type fixture struct {
	platform *heroku.MockClient
	resolver *fakeResolver
	store    store.Store
	cfg      deployer.Config
}

func newFixture(t *testing.T) *fixture {
	records, err := filestore.New(filepath.Join(t.TempDir(), "bots.json"))
	require.NoError(t, err)

	cfg := deployer.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.PollTimeout = 5 * time.Second

	return &fixture{
		platform: heroku.NewMockClient(t),
		resolver: &fakeResolver{
			archives: source.NewResolver(source.Config{}),
			selection: source.RoleSelection{
				Role:     "worker",
				Declared: []string{},
			},
		},
		store: records,
		cfg:   cfg,
	}
}

func (f *fixture) orchestrator(t *testing.T, verifier github.Verifier) *deployer.Orchestrator {
	o, err := deployer.New(f.cfg, f.platform, f.resolver, f.store, verifier)
	require.NoError(t, err)
	return o
}

func request() deployer.Request {
	return deployer.Request{
		AppName:   "My Bot!!",
		Repo:      "https://github.com/ owner/repo",
		SessionID: sessionID,
	}
}

func build(status heroku.BuildStatus) *heroku.Build {
	return &heroku.Build{ID: buildID, Status: status}
}

func steps(events []deployer.Event) []deployer.Step {
	result := make([]deployer.Step, len(events))
	for i := range events {
		result[i] = events[i].Step
	}
	return result
}

func (f *fixture) expectUntilBuilding() {
	f.platform.On("CreateApp", mock.Anything, appName).Return(&heroku.App{Name: appName}, nil).Once()
	f.platform.On("SetConfig", mock.Anything, appName, map[string]string{"SESSION_ID": sessionID}).Return(nil).Once()
	f.platform.On("StartBuild", mock.Anything, appName, archive).Return(build(heroku.BuildPending), nil).Once()
}

func (f *fixture) assertNoRecord(t *testing.T) {
	_, err := f.store.Get(context.Background(), appName)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeploySucceedsOnThirdPoll(t *testing.T) {
	f := newFixture(t)
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildPending), nil).Once()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildBuilding), nil).Once()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildSucceeded), nil).Once()
	f.platform.On("SetFormation", mock.Anything, appName, []heroku.FormationUpdate{
		{Type: "worker", Quantity: 1},
		{Type: "web", Quantity: 0},
	}).Return(nil).Once()

	collector := &deployer.Collector{}
	result, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
	require.NoError(t, err)

	f.platform.AssertNumberOfCalls(t, "GetBuild", 3)

	events := collector.Events()
	assert.Equal(t, []deployer.Step{
		deployer.StepCreated,
		deployer.StepConfigured,
		deployer.StepSourceResolved,
		deployer.StepBuilding,
		deployer.StepScaled,
		deployer.StepSucceeded,
	}, steps(events))
	assert.Equal(t, buildID, events[3].BuildID)
	assert.True(t, strings.HasPrefix(events[5].Message, deployer.MessageSucceeded))
	for _, event := range events {
		assert.Equal(t, appName, event.App)
		assert.Equal(t, result.CorrelationID, event.CorrelationID)
		assert.Nil(t, event.Error)
	}

	assert.Equal(t, appName, result.App)
	assert.Equal(t, "https://my-bot.herokuapp.com/", result.URL)
	assert.Equal(t, "worker", result.Role)
	assert.Equal(t, buildID, result.BuildID)

	record, err := f.store.Get(context.Background(), appName)
	require.NoError(t, err)
	assert.Equal(t, "https://my-bot.herokuapp.com/", record.URL)
	assert.Equal(t, sessionID, record.ConfigValue)
	assert.Equal(t, "https://github.com/owner/repo", record.Repo)
	assert.Equal(t, "worker", record.Role)
}

func TestDeployScalesDeclaredRoles(t *testing.T) {
	f := newFixture(t)
	f.resolver.selection = source.RoleSelection{
		Role:         "web",
		Declared:     []string{"web", "clock"},
		FromProcfile: true,
	}
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildSucceeded), nil).Once()
	f.platform.On("SetFormation", mock.Anything, appName, []heroku.FormationUpdate{
		{Type: "web", Quantity: 1},
		{Type: "clock", Quantity: 0},
		{Type: "worker", Quantity: 0},
	}).Return(nil).Once()

	result, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), nil)
	require.NoError(t, err)
	assert.Equal(t, "web", result.Role)
}

func TestDeployNameTaken(t *testing.T) {
	f := newFixture(t)
	conflict := &heroku.Error{
		Operation:  "create_app",
		StatusCode: http.StatusUnprocessableEntity,
		Body:       `{"id":"invalid_params","message":"Name my-bot is already taken"}`,
		ID:         "invalid_params",
		Message:    "Name my-bot is already taken",
	}
	f.platform.On("CreateApp", mock.Anything, appName).Return(nil, conflict).Once()
	f.cfg.RollbackOnFailure = true

	collector := &deployer.Collector{}
	result, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, deployer.KindPlatform, deployer.ErrorKind(err))

	events := collector.Events()
	require.Len(t, events, 1)
	assert.Equal(t, deployer.StepFailed, events[0].Step)
	assert.True(t, strings.HasPrefix(events[0].Message, deployer.MessageFailed))
	require.NotNil(t, events[0].Error)
	assert.Equal(t, deployer.KindPlatform, events[0].Error.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, events[0].Error.StatusCode)
	assert.Contains(t, events[0].Error.Body, "already taken")

	f.platform.AssertNumberOfCalls(t, "CreateApp", 1)
	f.platform.AssertNotCalled(t, "SetConfig", mock.Anything, mock.Anything, mock.Anything)
	f.platform.AssertNotCalled(t, "DeleteApp", mock.Anything, mock.Anything)
	f.assertNoRecord(t)
}

func TestDeployValidation(t *testing.T) {
	for _, tc := range []struct {
		name    string
		request deployer.Request
	}{
		{"empty name", deployer.Request{AppName: "!!!", Repo: "owner/repo", SessionID: sessionID}},
		{"leading digit", deployer.Request{AppName: "1bot", Repo: "owner/repo", SessionID: sessionID}},
		{"empty session", deployer.Request{AppName: appName, Repo: "owner/repo", SessionID: "  "}},
		{"malformed repository", deployer.Request{AppName: appName, Repo: "not a repository", SessionID: sessionID}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			collector := &deployer.Collector{}
			_, err := f.orchestrator(t, nil).Deploy(context.Background(), tc.request, collector)
			require.Error(t, err)
			assert.Equal(t, deployer.KindValidation, deployer.ErrorKind(err))

			events := collector.Events()
			require.Len(t, events, 1)
			assert.Equal(t, deployer.StepFailed, events[0].Step)
			assert.Equal(t, deployer.KindValidation, events[0].Error.Kind)
			assert.Empty(t, f.platform.Calls)
		})
	}
}

func TestDeployRequiresFork(t *testing.T) {
	f := newFixture(t)
	f.cfg.RequireFork = true
	o := f.orchestrator(t, verifierFunc(func(username string) (bool, error) {
		switch username {
		case "":
			return false, github.ErrEmptyUsername
		case "broken":
			return false, errors.New("GitHub is down")
		}
		return username == "alice", nil
	}))

	for username, kind := range map[string]deployer.Kind{
		"":        deployer.KindValidation,
		"mallory": deployer.KindValidation,
		"broken":  deployer.KindInternal,
	} {
		req := request()
		req.Username = username
		_, err := o.Deploy(context.Background(), req, nil)
		assert.Equal(t, kind, deployer.ErrorKind(err), "username %q", username)
	}

	assert.Empty(t, f.platform.Calls)
}

func TestDeployBuildFailed(t *testing.T) {
	f := newFixture(t)
	f.cfg.RollbackOnFailure = true
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildFailed), nil).Once()

	collector := &deployer.Collector{}
	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
	require.Error(t, err)
	assert.Equal(t, deployer.KindBuild, deployer.ErrorKind(err))

	events := collector.Events()
	assert.Equal(t, []deployer.Step{
		deployer.StepCreated,
		deployer.StepConfigured,
		deployer.StepSourceResolved,
		deployer.StepBuilding,
		deployer.StepFailed,
	}, steps(events))
	assert.Equal(t, buildID, events[4].BuildID)

	f.platform.AssertNotCalled(t, "SetFormation", mock.Anything, mock.Anything, mock.Anything)
	f.platform.AssertNotCalled(t, "DeleteApp", mock.Anything, mock.Anything)
	f.assertNoRecord(t)
}

func TestDeployExhaustsPollAttempts(t *testing.T) {
	f := newFixture(t)
	f.cfg.PollMaxAttempts = 4
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildBuilding), nil)

	collector := &deployer.Collector{}
	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
	require.Error(t, err)
	assert.Equal(t, deployer.KindTimeout, deployer.ErrorKind(err))
	f.platform.AssertNumberOfCalls(t, "GetBuild", 4)

	events := collector.Events()
	last := events[len(events)-1]
	assert.Equal(t, deployer.StepTimeout, last.Step)
	assert.True(t, strings.HasPrefix(last.Message, deployer.MessageFailed))
	assert.Equal(t, deployer.KindTimeout, last.Error.Kind)
	f.assertNoRecord(t)
}

func TestDeployPollTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.PollInterval = 5 * time.Millisecond
	f.cfg.PollTimeout = 30 * time.Millisecond
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildPending), nil)

	started := time.Now()
	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), nil)
	assert.Equal(t, deployer.KindTimeout, deployer.ErrorKind(err))
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestDeployRetriesTransientPollErrors(t *testing.T) {
	f := newFixture(t)
	unavailable := &heroku.Error{Operation: "get_build", StatusCode: http.StatusServiceUnavailable}
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(nil, unavailable).Twice()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildSucceeded), nil).Once()
	f.platform.On("SetFormation", mock.Anything, appName, mock.Anything).Return(nil).Once()

	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), nil)
	require.NoError(t, err)
	f.platform.AssertNumberOfCalls(t, "GetBuild", 3)
}

func TestDeployGivesUpAfterTransientRetries(t *testing.T) {
	f := newFixture(t)
	f.cfg.PollTransientRetries = 2
	unavailable := &heroku.Error{Operation: "get_build", StatusCode: http.StatusBadGateway}
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(nil, unavailable)

	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), nil)
	assert.Equal(t, deployer.KindPlatform, deployer.ErrorKind(err))
	f.platform.AssertNumberOfCalls(t, "GetBuild", 3)
}

func TestDeployDefinitivePollError(t *testing.T) {
	f := newFixture(t)
	notFound := &heroku.Error{Operation: "get_build", StatusCode: http.StatusNotFound}
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(nil, notFound).Once()

	collector := &deployer.Collector{}
	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
	assert.Equal(t, deployer.KindPlatform, deployer.ErrorKind(err))
	f.platform.AssertNumberOfCalls(t, "GetBuild", 1)

	events := collector.Events()
	assert.Equal(t, http.StatusNotFound, events[len(events)-1].Error.StatusCode)
}

func TestDeployRollback(t *testing.T) {
	for _, rollback := range []bool{true, false} {
		f := newFixture(t)
		f.cfg.RollbackOnFailure = rollback
		f.platform.On("CreateApp", mock.Anything, appName).Return(&heroku.App{Name: appName}, nil).Once()
		f.platform.On("SetConfig", mock.Anything, appName, mock.Anything).Return(nil).Once()
		f.resolver.probeErr = source.ErrUnreachable
		if rollback {
			f.platform.On("DeleteApp", mock.Anything, appName).Return(nil).Once()
		}

		collector := &deployer.Collector{}
		_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
		assert.Equal(t, deployer.KindSource, deployer.ErrorKind(err))
		assert.Equal(t, []deployer.Step{
			deployer.StepCreated,
			deployer.StepConfigured,
			deployer.StepFailed,
		}, steps(collector.Events()))

		if rollback {
			f.platform.AssertCalled(t, "DeleteApp", mock.Anything, appName)
		} else {
			f.platform.AssertNotCalled(t, "DeleteApp", mock.Anything, mock.Anything)
		}
	}
}

func TestDeployRecordFailure(t *testing.T) {
	f := newFixture(t)
	records := store.NewMockStore(t)
	records.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	f.store = records
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildSucceeded), nil).Once()
	f.platform.On("SetFormation", mock.Anything, appName, mock.Anything).Return(nil).Once()

	collector := &deployer.Collector{}
	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), collector)
	assert.Equal(t, deployer.KindInternal, deployer.ErrorKind(err))

	events := collector.Events()
	assert.Equal(t, deployer.StepFailed, events[len(events)-1].Step)
}

func TestDeployContinuesAfterClientDisconnect(t *testing.T) {
	f := newFixture(t)
	f.expectUntilBuilding()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildSucceeded), nil).Once()
	f.platform.On("SetFormation", mock.Anything, appName, mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	events := make([]deployer.Event, 0)
	reporter := deployer.ReporterFunc(func(event deployer.Event) {
		events = append(events, event)
		if event.Step == deployer.StepCreated {
			cancel()
		}
	})

	_, err := f.orchestrator(t, nil).Deploy(ctx, request(), reporter)
	require.NoError(t, err)

	assert.Equal(t, []deployer.Step{deployer.StepCreated}, steps(events))

	_, err = f.store.Get(context.Background(), appName)
	assert.NoError(t, err)
}

func TestDeployConfigVarsFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "vars.yaml")
	require.NoError(t, os.WriteFile(path, []byte("BOT_NAME: \"{{name}}\"\nPREFIX: \"!\"\nOWNER_NUMBER: 4712345678\nSOURCE: \"{{repo}}\"\n"), 0o644))
	f.cfg.ConfigVarsFile = path

	f.platform.On("CreateApp", mock.Anything, appName).Return(&heroku.App{Name: appName}, nil).Once()
	f.platform.On("SetConfig", mock.Anything, appName, map[string]string{
		"SESSION_ID":   sessionID,
		"BOT_NAME":     appName,
		"PREFIX":       "!",
		"OWNER_NUMBER": "4712345678",
		"SOURCE":       "https://github.com/owner/repo",
	}).Return(nil).Once()
	f.platform.On("StartBuild", mock.Anything, appName, archive).Return(build(heroku.BuildPending), nil).Once()
	f.platform.On("GetBuild", mock.Anything, appName, buildID).Return(build(heroku.BuildSucceeded), nil).Once()
	f.platform.On("SetFormation", mock.Anything, appName, mock.Anything).Return(nil).Once()

	_, err := f.orchestrator(t, nil).Deploy(context.Background(), request(), nil)
	require.NoError(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t)
	f.cfg.PollInterval = 0
	_, err := deployer.New(f.cfg, f.platform, f.resolver, f.store, nil)
	assert.Error(t, err)
}
