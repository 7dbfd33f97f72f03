package botclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nais/botdeploy/pkg/api"
	"github.com/nais/botdeploy/pkg/deployer"
	"github.com/nais/botdeploy/pkg/management"
	"github.com/nais/botdeploy/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Client talks to the HTTP API of botdeployd.
type Client struct {
	Server     string
	HTTPClient *http.Client
}

func New(server string) *Client {
	return &Client{
		Server:     strings.TrimSuffix(server, "/"),
		HTTPClient: &http.Client{},
	}
}

func (c *Client) url(elements ...string) string {
	escaped := make([]string, len(elements))
	for i := range elements {
		escaped[i] = url.PathEscape(elements[i])
	}
	return c.Server + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return ErrorWrap(ExitInternalError, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Errorf(ExitInvocationFailure, "internal error creating http request: %s", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return unavailable(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable(ctx, err)
	}

	if resp.StatusCode >= 300 {
		message := api.MessageResponse{}
		if json.Unmarshal(data, &message) != nil || len(message.Message) == 0 {
			message.Message = strings.TrimSpace(string(data))
		}
		return Errorf(statusExitCode(resp.StatusCode), "%s: %s", resp.Status, message.Message)
	}

	if result == nil {
		return nil
	}
	err = json.Unmarshal(data, result)
	if err != nil {
		return Errorf(ExitUnavailable, "received invalid response from server: %s", err)
	}
	return nil
}

func unavailable(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return Errorf(ExitTimeout, "timed out: %s", ctx.Err())
	}
	return ErrorWrap(ExitUnavailable, err)
}

// Deploy runs a deployment and waits for its result.
// A failed deployment returns both the response and an error.
func (c *Client) Deploy(ctx context.Context, req deployer.Request) (*api.DeploymentResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, ErrorWrap(ExitInternalError, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("deploy"), bytes.NewReader(data))
	if err != nil {
		return nil, Errorf(ExitInvocationFailure, "internal error creating http request: %s", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	defer resp.Body.Close()

	response := &api.DeploymentResponse{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		if ctx.Err() != nil {
			return nil, unavailable(ctx, err)
		}
		return nil, Errorf(statusExitCode(resp.StatusCode), "%s: received invalid response from server: %s", resp.Status, err)
	}

	if response.Error != nil {
		return response, Errorf(KindExitCode(response.Error.Kind), "%s", response.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return response, Errorf(statusExitCode(resp.StatusCode), "deployment failed: %s", resp.Status)
	}

	return response, nil
}

// StreamEvent is one progress message of a streamed deployment.
type StreamEvent struct {
	Step    deployer.Step
	Message string
}

// StreamDeploy runs a deployment and calls fn for every progress message until the deployment ends.
func (c *Client) StreamDeploy(ctx context.Context, req deployer.Request, fn func(StreamEvent)) error {
	query := url.Values{}
	query.Set("repo", req.Repo)
	query.Set("sessionId", req.SessionID)
	if len(req.Username) > 0 {
		query.Set("username", req.Username)
	}
	target := c.url("deploy", req.AppName, "logs") + "?" + query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Errorf(ExitInvocationFailure, "internal error creating http request: %s", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return unavailable(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Errorf(statusExitCode(resp.StatusCode), "event stream: %s", resp.Status)
	}

	var last *StreamEvent
	err = readEvents(resp.Body, func(event StreamEvent) {
		fn(event)
		if event.Step.Terminal() {
			last = &event
		}
	})
	if err != nil {
		return unavailable(ctx, err)
	}

	switch {
	case last == nil:
		if ctx.Err() != nil {
			return Errorf(ExitTimeout, "timed out: %s", ctx.Err())
		}
		return Errorf(ExitUnavailable, "event stream ended before the deployment finished")
	case last.Step == deployer.StepSucceeded:
		return nil
	case last.Step == deployer.StepTimeout:
		return Errorf(ExitTimeout, "%s", last.Message)
	default:
		return Errorf(ExitDeploymentFailure, "%s", last.Message)
	}
}

// readEvents parses a deployment event stream. The step comes from the id field.
// Frames without one are reported with an empty step.
func readEvents(r io.Reader, fn func(StreamEvent)) error {
	scanner := bufio.NewScanner(r)
	event := StreamEvent{}
	data := make([]string, 0)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case len(line) == 0:
			if len(data) > 0 {
				event.Message = strings.Join(data, "\n")
				fn(event)
			}
			event = StreamEvent{}
			data = data[:0]
		case strings.HasPrefix(line, ":"):
			log.Tracef("Heartbeat from server")
		case strings.HasPrefix(line, "id:"):
			event.Step = deployer.Step(strings.TrimSpace(strings.TrimPrefix(line, "id:")))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	return scanner.Err()
}

func (c *Client) List(ctx context.Context) ([]management.Bot, error) {
	bots := make([]management.Bot, 0)
	err := c.do(ctx, http.MethodGet, c.url("bots"), nil, &bots)
	return bots, err
}

func (c *Client) Restart(ctx context.Context, appName string) error {
	return c.do(ctx, http.MethodPost, c.url("restart", appName), nil, nil)
}

func (c *Client) UpdateSession(ctx context.Context, appName, sessionID string) (*store.Record, error) {
	record := &store.Record{}
	err := c.do(ctx, http.MethodPost, c.url("update-session", appName), api.UpdateSessionRequest{SessionID: sessionID}, record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Delete(ctx context.Context, appName string) error {
	return c.do(ctx, http.MethodDelete, c.url("delete", appName), nil, nil)
}

func (c *Client) LogSession(ctx context.Context, appName string) (string, error) {
	response := api.LogSessionResponse{}
	err := c.do(ctx, http.MethodGet, c.url("logs", appName), nil, &response)
	return response.LogplexURL, err
}

func (c *Client) Verify(ctx context.Context, username string) (bool, error) {
	response := api.VerifyResponse{}
	err := c.do(ctx, http.MethodGet, c.url("verify", username), nil, &response)
	return response.Verified, err
}
