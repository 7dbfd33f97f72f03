package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v41/github"
	"github.com/nais/botdeploy/pkg/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyUsername    = fmt.Errorf("empty username")
	ErrGitHubNotEnabled = fmt.Errorf("GitHub requests are not enabled")
)

const (
	cacheHit  = "hit"
	cacheMiss = "miss"
	lookupErr = "error"
)

// Verifier decides whether a GitHub user may deploy.
type Verifier interface {
	Verify(ctx context.Context, username string) (bool, error)
}

type Config struct {
	// Owner and name of the upstream repository that users must fork.
	Owner      string
	Repository string
	Token      string
	// API endpoint override, used for GitHub Enterprise and tests.
	BaseURL string
	Cache   Cache
}

type forkChecker struct {
	client     *gh.Client
	owner      string
	repository string
	cache      Cache
	group      singleflight.Group
}

var _ Verifier = &forkChecker{}

func NewForkChecker(ctx context.Context, cfg Config) (Verifier, error) {
	if len(cfg.Owner) == 0 || len(cfg.Repository) == 0 {
		return nil, fmt.Errorf("upstream repository owner and name must be set")
	}

	httpClient := http.DefaultClient
	if len(cfg.Token) > 0 {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	client := gh.NewClient(httpClient)

	if len(cfg.BaseURL) > 0 {
		baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub base URL: %w", err)
		}
		client.BaseURL = baseURL
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(DefaultCacheSize, DefaultCacheTTL)
	}

	return &forkChecker{
		client:     client,
		owner:      cfg.Owner,
		repository: cfg.Repository,
		cache:      cache,
	}, nil
}

// Verify returns true for the upstream owner, and for users owning a fork of the upstream repository.
// Verdicts are cached; lookup errors are not.
func (c *forkChecker) Verify(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return false, ErrEmptyUsername
	}
	if strings.EqualFold(username, c.owner) {
		return true, nil
	}

	logger := log.WithField("username", username)

	eligible, found, err := c.cache.Get(ctx, username)
	if err != nil {
		logger.Warnf("Fork cache lookup failed: %s", err)
	}
	if found {
		metrics.ForkCheck(cacheHit)
		return eligible, nil
	}

	result, err, _ := c.group.Do(cacheKey(username), func() (interface{}, error) {
		eligible, err := c.lookup(ctx, username)
		if err != nil {
			return false, err
		}
		if err := c.cache.Set(ctx, username, eligible); err != nil {
			logger.Warnf("Fork cache update failed: %s", err)
		}
		return eligible, nil
	})
	if err != nil {
		metrics.ForkCheck(lookupErr)
		return false, fmt.Errorf("look up fork of %s/%s: %w", username, c.repository, err)
	}

	metrics.ForkCheck(cacheMiss)
	return result.(bool), nil
}

func (c *forkChecker) lookup(ctx context.Context, username string) (bool, error) {
	repo, resp, err := c.client.Repositories.Get(ctx, username, c.repository)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}

	if !repo.GetFork() || !strings.EqualFold(repo.GetOwner().GetLogin(), username) {
		return false, nil
	}

	if parent := repo.GetParent(); parent != nil {
		return strings.EqualFold(parent.GetOwner().GetLogin(), c.owner), nil
	}

	return true, nil
}
