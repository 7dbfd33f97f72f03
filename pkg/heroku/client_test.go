package heroku_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

func newServer(t *testing.T, status int, response string) (heroku.Client, *[]recordedRequest) {
	requests := make([]recordedRequest, 0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   string(body),
			Header: r.Header.Clone(),
		})
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)

	client := heroku.New(heroku.Config{
		APIKey:  "secret-token",
		BaseURL: server.URL,
		Region:  "eu",
	})
	return client, &requests
}

func TestCreateApp(t *testing.T) {
	client, requests := newServer(t, http.StatusCreated, `{"id":"01234567-89ab-cdef-0123-456789abcdef","name":"my-bot","web_url":"https://my-bot.herokuapp.com/"}`)

	app, err := client.CreateApp(context.Background(), "my-bot")
	require.NoError(t, err)
	assert.Equal(t, "my-bot", app.Name)
	assert.Equal(t, "https://my-bot.herokuapp.com/", app.WebURL)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/apps", req.Path)
	assert.JSONEq(t, `{"name":"my-bot","region":"eu"}`, req.Body)
	assert.Equal(t, "Bearer secret-token", req.Header.Get("Authorization"))
	assert.Equal(t, "application/vnd.heroku+json; version=3", req.Header.Get("Accept"))
}

func TestCreateAppConflict(t *testing.T) {
	client, _ := newServer(t, http.StatusUnprocessableEntity, `{"id":"invalid_params","message":"Name my-bot is already taken"}`)

	_, err := client.CreateApp(context.Background(), "my-bot")
	require.Error(t, err)
	assert.True(t, heroku.IsConflict(err))
	assert.False(t, heroku.IsTransient(err))

	perr, ok := heroku.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, perr.StatusCode)
	assert.Equal(t, "invalid_params", perr.ID)
	assert.Equal(t, "Name my-bot is already taken", perr.Message)
	assert.Contains(t, perr.Body, "already taken")
	assert.EqualError(t, err, "create_app: platform returned 422 Unprocessable Entity: Name my-bot is already taken")
}

func TestSetConfig(t *testing.T) {
	client, requests := newServer(t, http.StatusOK, `{"SESSION_ID":"abc"}`)

	err := client.SetConfig(context.Background(), "my-bot", map[string]string{"SESSION_ID": "abc"})
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/apps/my-bot/config-vars", req.Path)
	assert.JSONEq(t, `{"SESSION_ID":"abc"}`, req.Body)
}

func TestBuilds(t *testing.T) {
	client, requests := newServer(t, http.StatusCreated, `{"id":"build-1","status":"pending","output_stream_url":"https://build-output.heroku.com/streams/1"}`)

	build, err := client.StartBuild(context.Background(), "my-bot", "https://github.com/owner/repo/archive/HEAD.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "build-1", build.ID)
	assert.Equal(t, heroku.BuildPending, build.Status)
	assert.False(t, build.Status.Finished())

	_, err = client.GetBuild(context.Background(), "my-bot", "build-1")
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	assert.Equal(t, "/apps/my-bot/builds", (*requests)[0].Path)
	assert.JSONEq(t, `{"source_blob":{"url":"https://github.com/owner/repo/archive/HEAD.tar.gz"}}`, (*requests)[0].Body)
	assert.Equal(t, http.MethodGet, (*requests)[1].Method)
	assert.Equal(t, "/apps/my-bot/builds/build-1", (*requests)[1].Path)
}

func TestStartBuildWithoutID(t *testing.T) {
	client, _ := newServer(t, http.StatusCreated, `{"status":"pending"}`)

	_, err := client.StartBuild(context.Background(), "my-bot", "https://example.com/a.tar.gz")
	assert.Error(t, err)
}

func TestSetFormation(t *testing.T) {
	client, requests := newServer(t, http.StatusOK, `[]`)

	err := client.SetFormation(context.Background(), "my-bot", []heroku.FormationUpdate{
		{Type: "worker", Quantity: 1},
		{Type: "web", Quantity: 0},
	})
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/apps/my-bot/formation", req.Path)
	assert.JSONEq(t, `{"updates":[{"type":"worker","quantity":1},{"type":"web","quantity":0}]}`, req.Body)
}

func TestDeletes(t *testing.T) {
	client, requests := newServer(t, http.StatusAccepted, `{}`)

	require.NoError(t, client.DeleteDynos(context.Background(), "my-bot"))
	require.NoError(t, client.DeleteApp(context.Background(), "my-bot"))

	assert.Equal(t, http.MethodDelete, (*requests)[0].Method)
	assert.Equal(t, "/apps/my-bot/dynos", (*requests)[0].Path)
	assert.Equal(t, http.MethodDelete, (*requests)[1].Method)
	assert.Equal(t, "/apps/my-bot", (*requests)[1].Path)
}

func TestDeleteAppNotFound(t *testing.T) {
	client, _ := newServer(t, http.StatusNotFound, `{"id":"not_found","message":"Couldn't find that app."}`)

	err := client.DeleteApp(context.Background(), "ghost")
	assert.True(t, heroku.IsNotFound(err))
}

func TestCreateLogSession(t *testing.T) {
	client, requests := newServer(t, http.StatusCreated, `{"id":"s1","logplex_url":"https://logs.heroku.com/sessions/s1"}`)

	streamURL, err := client.CreateLogSession(context.Background(), "my-bot")
	require.NoError(t, err)
	assert.Equal(t, "https://logs.heroku.com/sessions/s1", streamURL)

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte((*requests)[0].Body), &body))
	assert.Equal(t, true, body["tail"])
}

func TestListApps(t *testing.T) {
	client, _ := newServer(t, http.StatusOK, `[{"name":"a"},{"name":"b"}]`)

	apps, err := client.ListApps(context.Background())
	require.NoError(t, err)
	assert.Len(t, apps, 2)
	assert.Equal(t, "b", apps[1].Name)
}

func TestServerErrorIsTransient(t *testing.T) {
	client, _ := newServer(t, http.StatusServiceUnavailable, `upstream unavailable`)

	_, err := client.GetBuild(context.Background(), "my-bot", "build-1")
	require.Error(t, err)
	assert.True(t, heroku.IsTransient(err))

	perr, ok := heroku.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "upstream unavailable", perr.Body)
	assert.Empty(t, perr.ID)
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := heroku.New(heroku.Config{
		BaseURL:        server.URL,
		RequestTimeout: 10 * time.Millisecond,
	})

	_, err := client.GetBuild(context.Background(), "my-bot", "build-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, heroku.IsTransient(err))
}
