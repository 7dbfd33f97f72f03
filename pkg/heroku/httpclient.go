package heroku

import (
	"net/http"
)

const acceptHeader = "application/vnd.heroku+json; version=3"

type httpClient struct {
	client   *http.Client
	apiToken string
}

func (c *httpClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}
