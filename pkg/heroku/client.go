package heroku

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nais/botdeploy/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL        = "https://api.heroku.com"
	DefaultRequestTimeout = 30 * time.Second

	// Upper bound on how much of an error response body is kept.
	maxErrorBody = 64 * 1024
)

// Client issues the fixed set of Platform API calls needed to run a bot.
// No method retries; callers own the retry policy.
type Client interface {
	CreateApp(ctx context.Context, name string) (*App, error)
	SetConfig(ctx context.Context, name string, vars map[string]string) error
	StartBuild(ctx context.Context, name, sourceURL string) (*Build, error)
	GetBuild(ctx context.Context, name, buildID string) (*Build, error)
	SetFormation(ctx context.Context, name string, updates []FormationUpdate) error
	DeleteApp(ctx context.Context, name string) error
	DeleteDynos(ctx context.Context, name string) error
	CreateLogSession(ctx context.Context, name string) (string, error)
	ListApps(ctx context.Context) ([]App, error)
}

type Config struct {
	APIKey         string
	BaseURL        string
	Region         string
	Stack          string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type client struct {
	baseURL    string
	region     string
	stack      string
	timeout    time.Duration
	httpClient *httpClient
}

var _ Client = &client{}

func New(cfg Config) Client {
	if len(cfg.BaseURL) == 0 {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		region:  cfg.Region,
		stack:   cfg.Stack,
		timeout: cfg.RequestTimeout,
		httpClient: &httpClient{
			client:   cfg.HTTPClient,
			apiToken: cfg.APIKey,
		},
	}
}

func appPath(name string, elements ...string) string {
	parts := append([]string{"apps", url.PathEscape(name)}, elements...)
	return "/" + strings.Join(parts, "/")
}

func (c *client) CreateApp(ctx context.Context, name string) (*App, error) {
	app := &App{}
	req := createAppRequest{
		Name:   name,
		Region: c.region,
		Stack:  c.stack,
	}
	err := c.do(ctx, "create_app", http.MethodPost, "/apps", req, app)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (c *client) SetConfig(ctx context.Context, name string, vars map[string]string) error {
	return c.do(ctx, "set_config", http.MethodPatch, appPath(name, "config-vars"), vars, nil)
}

func (c *client) StartBuild(ctx context.Context, name, sourceURL string) (*Build, error) {
	build := &Build{}
	req := createBuildRequest{
		SourceBlob: SourceBlob{URL: sourceURL},
	}
	err := c.do(ctx, "start_build", http.MethodPost, appPath(name, "builds"), req, build)
	if err != nil {
		return nil, err
	}
	if len(build.ID) == 0 {
		return nil, fmt.Errorf("start_build: platform returned a build without id")
	}
	return build, nil
}

func (c *client) GetBuild(ctx context.Context, name, buildID string) (*Build, error) {
	build := &Build{}
	err := c.do(ctx, "get_build", http.MethodGet, appPath(name, "builds", url.PathEscape(buildID)), nil, build)
	if err != nil {
		return nil, err
	}
	return build, nil
}

func (c *client) SetFormation(ctx context.Context, name string, updates []FormationUpdate) error {
	req := formationRequest{
		Updates: updates,
	}
	return c.do(ctx, "set_formation", http.MethodPatch, appPath(name, "formation"), req, nil)
}

func (c *client) DeleteApp(ctx context.Context, name string) error {
	return c.do(ctx, "delete_app", http.MethodDelete, appPath(name), nil, nil)
}

func (c *client) DeleteDynos(ctx context.Context, name string) error {
	return c.do(ctx, "delete_dynos", http.MethodDelete, appPath(name, "dynos"), nil, nil)
}

func (c *client) CreateLogSession(ctx context.Context, name string) (string, error) {
	session := &logSession{}
	req := logSessionRequest{
		Lines: 100,
		Tail:  true,
	}
	err := c.do(ctx, "create_log_session", http.MethodPost, appPath(name, "log-sessions"), req, session)
	if err != nil {
		return "", err
	}
	return session.LogplexURL, nil
}

func (c *client) ListApps(ctx context.Context) ([]App, error) {
	apps := make([]App, 0)
	err := c.do(ctx, "list_apps", http.MethodGet, "/apps", nil, &apps)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// do performs one request with its own timeout, and decodes a 2xx response body into result.
func (c *client) do(ctx context.Context, operation, method, path string, body, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.PlatformRequest(operation, 0)
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	metrics.PlatformRequest(operation, resp.StatusCode)

	log.WithFields(log.Fields{
		"operation":   operation,
		"status_code": resp.StatusCode,
	}).Tracef("%s %s", method, path)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newError(operation, resp.StatusCode, data)
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}

	return nil
}
